// Package apiclient wraps the chat backend's HTTP contract. It is stateless:
// the current token is read from a TokenSource on every call and attached as
// a bearer header, and every failure is mapped to a typed Error. It never
// writes credentials; that is the state layer's job.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dmelo/parley/internal/model"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenSource exposes the current credential, if any.
type TokenSource interface {
	Token() (string, bool)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Tokens  TokenSource
	Logger  *zap.Logger
}

// Client issues requests against the chat backend.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	User        model.User `json:"user"`
	AccessToken string     `json:"accessToken"`
}

// ProfileUpdate carries the multipart fields of a profile update. Image is
// optional; when set, ImageName names the uploaded file.
type ProfileUpdate struct {
	Username  string
	Email     string
	Bio       string
	Image     io.Reader
	ImageName string
}

// New creates a client for the given backend.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")

	// Attach the bearer token (when present) and a request id to every call.
	// Calls without a token are still issued; the server decides whether an
	// unauthenticated request is acceptable.
	hc.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if opts.Tokens != nil {
			if token, ok := opts.Tokens.Token(); ok {
				req.SetHeader("Authorization", "Bearer "+token)
			}
		}
		req.SetHeader("X-Request-ID", uuid.New().String())
		return nil
	})

	return &Client{http: hc, logger: logger}
}

// Login exchanges credentials for a user and access token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var out LoginResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"username": username, "password": password}).
		SetResult(&out).
		Post("/auth/login")
	if err := c.check(resp, err, "login"); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account. The created user is unused by the client
// beyond success or failure; registration does not authenticate.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"username": username, "email": email, "password": password}).
		Post("/auth/register")
	return c.check(resp, err, "register")
}

// GetProfile fetches the authenticated user's profile.
func (c *Client) GetProfile(ctx context.Context) (*model.User, error) {
	var out model.User
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/profile")
	if err := c.check(resp, err, "get profile"); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile sends a multipart profile update and returns the new profile.
func (c *Client) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*model.User, error) {
	var out model.User
	req := c.http.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{
			"username": upd.Username,
			"email":    upd.Email,
			"bio":      upd.Bio,
		}).
		SetResult(&out)
	if upd.Image != nil {
		req.SetMultipartField("profileImage", upd.ImageName, "application/octet-stream", upd.Image)
	}
	resp, err := req.Put("/profile")
	if err := c.check(resp, err, "update profile"); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversations fetches the conversation list in server order.
func (c *Client) GetConversations(ctx context.Context) ([]model.Conversation, error) {
	var out []model.Conversation
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/conversations")
	if err := c.check(resp, err, "get conversations"); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMessages fetches all messages of one conversation in server order.
func (c *Client) GetMessages(ctx context.Context, conversationID int64) ([]model.Message, error) {
	var out []model.Message
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/messages/%d", conversationID))
	if err := c.check(resp, err, "get messages"); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage posts a message and returns the server-authored message,
// including its id and timestamp.
func (c *Client) SendMessage(ctx context.Context, conversationID int64, content string) (*model.Message, error) {
	var out model.Message
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"content": content}).
		SetResult(&out).
		Post(fmt.Sprintf("/messages/%d", conversationID))
	if err := c.check(resp, err, "send message"); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSettings replaces the user's settings and returns the stored value.
func (c *Client) UpdateSettings(ctx context.Context, s model.Settings) (*model.Settings, error) {
	var out model.Settings
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(s).
		SetResult(&out).
		Put("/profile/settings")
	if err := c.check(resp, err, "update settings"); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOnlineUsers fetches the users currently online.
func (c *Client) GetOnlineUsers(ctx context.Context) ([]model.User, error) {
	var out []model.User
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/profile/online")
	if err := c.check(resp, err, "get online users"); err != nil {
		return nil, err
	}
	return out, nil
}

// check maps a resty response into the typed error taxonomy.
func (c *Client) check(resp *resty.Response, err error, op string) error {
	if err != nil {
		c.logger.Warn("request failed", zap.String("op", op), zap.Error(err))
		return &Error{Kind: NetworkUnavailable, Message: err.Error()}
	}
	if resp.IsError() {
		status := resp.StatusCode()
		apiErr := &Error{
			Kind:       classify(status),
			StatusCode: status,
			Message:    serverMessage(resp.Body()),
		}
		c.logger.Warn("request rejected",
			zap.String("op", op),
			zap.Int("status", status),
			zap.String("kind", string(apiErr.Kind)))
		return apiErr
	}
	return nil
}

// serverMessage pulls a human-readable message out of an error body.
func serverMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return string(body)
}
