package bus

import "time"

// Event kinds published by the client. Subscribers filter by namespace
// prefix, e.g. "session." or "message.".
const (
	KindStatusChanged         = "session.status_changed"
	KindLoggedIn              = "session.logged_in"
	KindLoggedOut             = "session.logged_out"
	KindSessionExpired        = "session.expired"
	KindConversationsReplaced = "conversation.list_replaced"
	KindConversationSelected  = "conversation.selected"
	KindMessagesReplaced      = "message.list_replaced"
	KindMessageAppended       = "message.appended"
	KindProfileUpdated        = "profile.updated"
	KindSettingsUpdated       = "settings.updated"
)

// Event is a domain event delivered to subscribers.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
