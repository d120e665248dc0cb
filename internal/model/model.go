package model

// Content types the backend assigns to messages.
const (
	ContentText  = "TEXT"
	ContentImage = "IMAGE"
	ContentFile  = "FILE"
	ContentAudio = "AUDIO"
	ContentVideo = "VIDEO"
)

// Presence statuses reported in user profiles.
const (
	PresenceOnline  = "ONLINE"
	PresenceOffline = "OFFLINE"
	PresenceAway    = "AWAY"
	PresenceBusy    = "BUSY"
)

// Settings holds the per-user preferences stored server-side.
type Settings struct {
	NotificationsEnabled bool   `json:"notificationsEnabled"`
	DarkModeEnabled      bool   `json:"darkModeEnabled"`
	Language             string `json:"language"`
}

// User is the profile snapshot the backend returns. It is replaced wholesale
// on every successful profile fetch or update, never patched field by field.
type User struct {
	ID             int64    `json:"id"`
	Username       string   `json:"username"`
	Email          string   `json:"email"`
	ProfileImage   *string  `json:"profileImage"`
	Bio            *string  `json:"bio"`
	PresenceStatus string   `json:"presenceStatus"`
	LastLoginAt    *string  `json:"lastLoginAt"`
	LastLoginIP    *string  `json:"lastLoginIP"`
	TotalLoginTime int64    `json:"totalLoginTime"`
	LoginCount     int      `json:"loginCount"`
	LastActiveAt   *string  `json:"lastActiveAt"`
	CreatedAt      string   `json:"createdAt"`
	Settings       Settings `json:"settings"`
}

// Message is a single message in a conversation. The id and timestamp are
// always server-assigned; the client never fabricates either.
type Message struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversationId"`
	SenderID       int64  `json:"senderId"`
	Content        string `json:"content"`
	ContentType    string `json:"contentType"`
	Timestamp      string `json:"timestamp"`
}

// Conversation is a direct or group thread. Name is only meaningful for
// groups; participants keep the order the server returned them in.
type Conversation struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name,omitempty"`
	IsGroup      bool     `json:"isGroup"`
	LastMessage  *Message `json:"lastMessage,omitempty"`
	Participants []User   `json:"participants"`
}

// DisplayName returns the title to show for a conversation: the group name
// for groups, otherwise the username of the participant that is not selfID.
func (c *Conversation) DisplayName(selfID int64) string {
	if c.IsGroup {
		return c.Name
	}
	for i := range c.Participants {
		if c.Participants[i].ID != selfID {
			return c.Participants[i].Username
		}
	}
	return c.Name
}
