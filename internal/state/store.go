// Package state holds the client's single source of truth: the authenticated
// session, the conversation list, the active selection and its messages.
// Screens read it and subscribe to the bus; all mutation goes through its
// operations, which call the remote API and commit on success.
package state

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/dmelo/parley/internal/apiclient"
	"github.com/dmelo/parley/internal/bus"
	"github.com/dmelo/parley/internal/cache"
	"github.com/dmelo/parley/internal/creds"
	"github.com/dmelo/parley/internal/model"
	"github.com/dmelo/parley/internal/status"
	"go.uber.org/zap"
)

// ErrNoSelection is returned by operations that require an active conversation.
var ErrNoSelection = errors.New("no conversation selected")

// ErrEmptyMessage is returned when a send is attempted with blank content.
// No request is issued and no state changes.
var ErrEmptyMessage = errors.New("message content is empty")

// API is the remote surface the store depends on. *apiclient.Client
// implements it; tests substitute a fake.
type API interface {
	Login(ctx context.Context, username, password string) (*apiclient.LoginResponse, error)
	Register(ctx context.Context, username, email, password string) error
	GetProfile(ctx context.Context) (*model.User, error)
	UpdateProfile(ctx context.Context, upd apiclient.ProfileUpdate) (*model.User, error)
	GetConversations(ctx context.Context) ([]model.Conversation, error)
	GetMessages(ctx context.Context, conversationID int64) ([]model.Message, error)
	SendMessage(ctx context.Context, conversationID int64, content string) (*model.Message, error)
	UpdateSettings(ctx context.Context, s model.Settings) (*model.Settings, error)
	GetOnlineUsers(ctx context.Context) ([]model.User, error)
}

// Store owns session, conversation and message state. Commits are serialized
// by one mutex; network calls happen outside it, so a slow response can only
// commit if its staleness tag still matches (see refresh/send paths).
type Store struct {
	api     API
	creds   creds.Store
	cache   *cache.DB // optional offline mirror, may be nil
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger

	mu            sync.Mutex
	user          *model.User
	conversations []model.Conversation
	selected      *model.Conversation
	messages      []model.Message
	// selGen is bumped on every selection change. Every in-flight message
	// fetch or send carries the generation observed at dispatch time and is
	// discarded if it no longer matches at commit time.
	selGen uint64
}

// New creates a store. cacheDB may be nil to disable the offline mirror.
func New(api API, cs creds.Store, cacheDB *cache.DB, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		api:     api,
		creds:   cs,
		cache:   cacheDB,
		bus:     b,
		machine: machine,
		logger:  logger,
	}
}

// Login authenticates and establishes the session. On failure nothing is
// committed and the session stays anonymous.
func (s *Store) Login(ctx context.Context, username, password string) (*model.User, error) {
	if err := s.machine.Transition(status.Authenticating); err != nil {
		return nil, err
	}

	resp, err := s.api.Login(ctx, username, password)
	if err != nil {
		_ = s.machine.Transition(status.Anonymous)
		return nil, err
	}

	if err := s.creds.Save(resp.AccessToken); err != nil {
		// Without a persisted token the session invariant cannot hold.
		_ = s.machine.Transition(status.Anonymous)
		return nil, err
	}

	s.mu.Lock()
	user := resp.User
	s.user = &user
	s.mu.Unlock()

	if err := s.machine.Transition(status.Authenticated); err != nil {
		s.logger.Error("login state transition failed", zap.Error(err))
	}
	s.bus.Emit(bus.KindLoggedIn, user.Username)
	s.logger.Info("logged in", zap.String("username", user.Username), zap.Int64("user_id", user.ID))
	return &user, nil
}

// Register creates an account. Registration never authenticates; the caller
// must log in explicitly afterwards.
func (s *Store) Register(ctx context.Context, username, email, password string) error {
	return s.api.Register(ctx, username, email, password)
}

// Resume re-establishes a session from a persisted token by fetching the
// profile. Returns false when no token is stored.
func (s *Store) Resume(ctx context.Context) (bool, error) {
	if _, ok := s.creds.Token(); !ok {
		return false, nil
	}
	if err := s.machine.Transition(status.Authenticating); err != nil {
		return false, err
	}

	user, err := s.api.GetProfile(ctx)
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			// Stored token is stale.
			if cerr := s.creds.Clear(); cerr != nil {
				s.logger.Warn("failed to clear stale token", zap.Error(cerr))
			}
		}
		_ = s.machine.Transition(status.Anonymous)
		return false, err
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()

	if err := s.machine.Transition(status.Authenticated); err != nil {
		s.logger.Error("resume state transition failed", zap.Error(err))
	}
	s.bus.Emit(bus.KindLoggedIn, user.Username)
	return true, nil
}

// Logout clears the session unconditionally: token, conversations, selection,
// messages and cache all go, even if any cleanup step fails. The returned
// error reports cleanup trouble only; local state is always cleared.
func (s *Store) Logout() error {
	s.mu.Lock()
	s.user = nil
	s.conversations = nil
	s.selected = nil
	s.messages = nil
	s.selGen++
	s.mu.Unlock()

	err := s.creds.Clear()
	if err != nil {
		s.logger.Warn("failed to clear credentials on logout", zap.Error(err))
	}
	if s.cache != nil {
		if perr := s.cache.Purge(); perr != nil {
			s.logger.Warn("failed to purge cache on logout", zap.Error(perr))
		}
	}
	if s.machine.Current() != status.Anonymous {
		_ = s.machine.Transition(status.Anonymous)
	}
	s.bus.Emit(bus.KindLoggedOut, nil)
	s.logger.Info("logged out")
	return err
}

// SelectConversation sets the active selection, immediately resetting the
// message list, and refreshes messages when a conversation is selected.
// Passing nil clears the selection.
func (s *Store) SelectConversation(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	if conv == nil {
		s.selected = nil
	} else {
		c := *conv
		s.selected = &c
	}
	s.messages = nil
	s.selGen++
	s.mu.Unlock()

	s.bus.Emit(bus.KindConversationSelected, conv)

	if conv == nil {
		return nil
	}
	return s.RefreshMessages(ctx)
}

// RefreshConversations fetches the conversation list and replaces the whole
// collection atomically. Stale entries are discarded, never merged.
func (s *Store) RefreshConversations(ctx context.Context) error {
	convs, err := s.api.GetConversations(ctx)
	if err != nil {
		return s.checkExpiry(err)
	}

	s.mu.Lock()
	s.conversations = convs
	s.mu.Unlock()

	s.bus.Emit(bus.KindConversationsReplaced, len(convs))
	s.mirrorConversations(convs)
	return nil
}

// RefreshMessages fetches and replaces the message list of the current
// selection. A result that arrives after the selection changed is dropped
// silently: it belongs to a conversation the user is no longer viewing.
func (s *Store) RefreshMessages(ctx context.Context) error {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return ErrNoSelection
	}
	convID := s.selected.ID
	gen := s.selGen
	s.mu.Unlock()

	msgs, err := s.api.GetMessages(ctx, convID)
	if err != nil {
		return s.checkExpiry(err)
	}

	s.mu.Lock()
	if s.selGen != gen {
		s.mu.Unlock()
		s.logger.Debug("discarding stale message refresh",
			zap.Int64("conversation_id", convID),
			zap.Uint64("dispatch_gen", gen))
		return nil
	}
	s.messages = msgs
	s.mu.Unlock()

	s.bus.Emit(bus.KindMessagesReplaced, convID)
	s.mirrorMessages(convID, msgs)
	return nil
}

// SendMessage sends trimmed content to the selected conversation and appends
// the server-authored message on success. Blank content is a no-op error:
// no request goes out and nothing changes.
func (s *Store) SendMessage(ctx context.Context, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return nil, ErrNoSelection
	}
	convID := s.selected.ID
	gen := s.selGen
	s.mu.Unlock()

	msg, err := s.api.SendMessage(ctx, convID, content)
	if err != nil {
		return nil, s.checkExpiry(err)
	}

	s.mu.Lock()
	if s.selGen == gen {
		s.messages = append(s.messages, *msg)
		s.mu.Unlock()
		s.bus.Emit(bus.KindMessageAppended, msg)
	} else {
		// Selection moved on while the send was in flight. The message is
		// on the server; only the local append is dropped.
		s.mu.Unlock()
		s.logger.Debug("discarding late send result",
			zap.Int64("conversation_id", convID),
			zap.Int64("message_id", msg.ID))
	}

	s.mirrorAppend(*msg)
	return msg, nil
}

// FetchProfile retrieves the profile and replaces the user snapshot wholesale.
func (s *Store) FetchProfile(ctx context.Context) (*model.User, error) {
	user, err := s.api.GetProfile(ctx)
	if err != nil {
		return nil, s.checkExpiry(err)
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()

	s.bus.Emit(bus.KindProfileUpdated, user.Username)
	return user, nil
}

// UpdateProfile submits a profile update and replaces the user snapshot with
// the server's response.
func (s *Store) UpdateProfile(ctx context.Context, upd apiclient.ProfileUpdate) (*model.User, error) {
	user, err := s.api.UpdateProfile(ctx, upd)
	if err != nil {
		return nil, s.checkExpiry(err)
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()

	s.bus.Emit(bus.KindProfileUpdated, user.Username)
	return user, nil
}

// UpdateSettings stores new settings server-side and folds the result into
// the user snapshot.
func (s *Store) UpdateSettings(ctx context.Context, settings model.Settings) (*model.Settings, error) {
	stored, err := s.api.UpdateSettings(ctx, settings)
	if err != nil {
		return nil, s.checkExpiry(err)
	}

	s.mu.Lock()
	if s.user != nil {
		u := *s.user
		u.Settings = *stored
		s.user = &u
	}
	s.mu.Unlock()

	s.bus.Emit(bus.KindSettingsUpdated, stored)
	return stored, nil
}

// OnlineUsers fetches the currently online users. Read-only; nothing is
// committed.
func (s *Store) OnlineUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.api.GetOnlineUsers(ctx)
	if err != nil {
		return nil, s.checkExpiry(err)
	}
	return users, nil
}

// User returns the current user snapshot, or nil when anonymous.
func (s *Store) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Conversations returns a snapshot of the conversation list.
func (s *Store) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Selected returns the active conversation, or nil.
func (s *Store) Selected() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	c := *s.selected
	return &c
}

// Messages returns a snapshot of the active conversation's messages.
func (s *Store) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// checkExpiry treats Unauthorized on any authenticated call as session
// expiry: credentials and state are cleared so the UI can force
// re-authentication. The original error is always returned.
func (s *Store) checkExpiry(err error) error {
	if !apiclient.IsUnauthorized(err) {
		return err
	}
	if s.machine.Current() != status.Authenticated {
		return err
	}

	s.mu.Lock()
	s.user = nil
	s.conversations = nil
	s.selected = nil
	s.messages = nil
	s.selGen++
	s.mu.Unlock()

	if cerr := s.creds.Clear(); cerr != nil {
		s.logger.Warn("failed to clear credentials on expiry", zap.Error(cerr))
	}
	if s.cache != nil {
		if perr := s.cache.Purge(); perr != nil {
			s.logger.Warn("failed to purge cache on expiry", zap.Error(perr))
		}
	}
	_ = s.machine.Transition(status.Anonymous)
	s.bus.Emit(bus.KindSessionExpired, nil)
	s.logger.Info("session expired")
	return err
}

// Cache mirroring is best-effort: a cache failure never fails the operation.

func (s *Store) mirrorConversations(convs []model.Conversation) {
	if s.cache == nil {
		return
	}
	if err := s.cache.ReplaceConversations(convs); err != nil {
		s.logger.Warn("failed to mirror conversations", zap.Error(err))
	}
}

func (s *Store) mirrorMessages(convID int64, msgs []model.Message) {
	if s.cache == nil {
		return
	}
	if err := s.cache.ReplaceMessages(convID, msgs); err != nil {
		s.logger.Warn("failed to mirror messages", zap.Error(err))
	}
}

func (s *Store) mirrorAppend(m model.Message) {
	if s.cache == nil {
		return
	}
	if err := s.cache.AppendMessage(m); err != nil {
		s.logger.Warn("failed to mirror sent message", zap.Error(err))
	}
}
