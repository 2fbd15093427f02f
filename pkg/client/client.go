// Package client is a Go SDK for the teamchat API: typed calls, reactive
// queries, single-shot mutations, message pagination and the join flow.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
	Fields  []FieldError
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("teamchat: http %d", e.Status)
	}
	return fmt.Sprintf("teamchat: %s (http %d)", e.Message, e.Status)
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []FieldError    `json:"errors"`
}

type Client struct {
	base string
	http *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithToken(token string) Option { return func(c *Client) { c.token = token } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
				MaxIdleConns:    16,
				IdleConnTimeout: 90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// do performs exactly one request. out may be nil; a JSON null data field
// leaves a pointer out untouched at nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		if resp.StatusCode >= 400 {
			return &APIError{Status: resp.StatusCode}
		}
		return fmt.Errorf("teamchat: decode %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: env.Message, Fields: env.Errors}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

type session struct {
	User   *User `json:"user"`
	Tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	} `json:"tokens"`
}

// SignUp registers a password account and keeps its access token.
func (c *Client) SignUp(ctx context.Context, name, email, password string) (*User, error) {
	var s session
	if err := c.do(ctx, http.MethodPost, "/api/auth/sign-up", map[string]string{
		"name": name, "email": email, "password": password,
	}, &s); err != nil {
		return nil, err
	}
	c.SetToken(s.Tokens.AccessToken)
	return s.User, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*User, error) {
	var s session
	if err := c.do(ctx, http.MethodPost, "/api/auth/sign-in", map[string]string{
		"email": email, "password": password,
	}, &s); err != nil {
		return nil, err
	}
	c.SetToken(s.Tokens.AccessToken)
	return s.User, nil
}

// Reads. A nil result with a nil error means the entity is absent or hidden.

func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	return getOne[User](ctx, c, "/api/v1/users/me")
}

func (c *Client) Workspaces(ctx context.Context) ([]Workspace, error) {
	return getList[Workspace](ctx, c, "/api/v1/workspaces")
}

func (c *Client) Workspace(ctx context.Context, id string) (*Workspace, error) {
	return getOne[Workspace](ctx, c, "/api/v1/workspaces/"+url.PathEscape(id))
}

func (c *Client) WorkspaceInfo(ctx context.Context, id string) (*WorkspaceInfo, error) {
	return getOne[WorkspaceInfo](ctx, c, "/api/v1/workspaces/"+url.PathEscape(id)+"/info")
}

func (c *Client) Online(ctx context.Context, workspaceID string) ([]string, error) {
	return getList[string](ctx, c, "/api/v1/workspaces/"+url.PathEscape(workspaceID)+"/presence")
}

func (c *Client) CurrentMember(ctx context.Context, workspaceID string) (*Member, error) {
	return getOne[Member](ctx, c, "/api/v1/workspaces/"+url.PathEscape(workspaceID)+"/members/current")
}

func (c *Client) Members(ctx context.Context, workspaceID string) ([]Member, error) {
	return getList[Member](ctx, c, "/api/v1/workspaces/"+url.PathEscape(workspaceID)+"/members")
}

func (c *Client) Member(ctx context.Context, id string) (*Member, error) {
	return getOne[Member](ctx, c, "/api/v1/members/"+url.PathEscape(id))
}

func (c *Client) Channels(ctx context.Context, workspaceID string) ([]Channel, error) {
	return getList[Channel](ctx, c, "/api/v1/workspaces/"+url.PathEscape(workspaceID)+"/channels")
}

func (c *Client) Channel(ctx context.Context, id string) (*Channel, error) {
	return getOne[Channel](ctx, c, "/api/v1/channels/"+url.PathEscape(id))
}

func (c *Client) Messages(ctx context.Context, scope Scope, cursor string, numItems int) (*MessagePage, error) {
	q := url.Values{}
	if scope.ChannelID != "" {
		q.Set("channel_id", scope.ChannelID)
	}
	if scope.ConversationID != "" {
		q.Set("conversation_id", scope.ConversationID)
	}
	if scope.ParentMessageID != "" {
		q.Set("parent_message_id", scope.ParentMessageID)
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if numItems > 0 {
		q.Set("num_items", strconv.Itoa(numItems))
	}
	var page MessagePage
	if err := c.get(ctx, "/api/v1/messages?"+q.Encode(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) Message(ctx context.Context, id string) (*Message, error) {
	return getOne[Message](ctx, c, "/api/v1/messages/"+url.PathEscape(id))
}

func getOne[T any](ctx context.Context, c *Client, path string) (*T, error) {
	var v *T
	if err := c.get(ctx, path, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func getList[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var out []T
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Writes. Each call is a single attempt.

func (c *Client) CreateWorkspace(ctx context.Context, name string) (*Workspace, error) {
	var w Workspace
	if err := c.do(ctx, http.MethodPost, "/api/v1/workspaces", map[string]string{"name": name}, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (c *Client) JoinWorkspace(ctx context.Context, id, joinCode string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/workspaces/"+url.PathEscape(id)+"/join", map[string]string{"join_code": joinCode}, nil)
}

func (c *Client) CreateChannel(ctx context.Context, workspaceID, name string) (*Channel, error) {
	var ch Channel
	if err := c.do(ctx, http.MethodPost, "/api/v1/workspaces/"+url.PathEscape(workspaceID)+"/channels", map[string]string{"name": name}, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *Client) RenameChannel(ctx context.Context, id, name string) (*Channel, error) {
	var ch Channel
	if err := c.do(ctx, http.MethodPatch, "/api/v1/channels/"+url.PathEscape(id), map[string]string{"name": name}, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// CreateOrGetConversation returns the id of the direct conversation between
// the caller and memberID.
func (c *Client) CreateOrGetConversation(ctx context.Context, workspaceID, memberID string) (string, error) {
	var conv Conversation
	if err := c.do(ctx, http.MethodPost, "/api/v1/workspaces/"+url.PathEscape(workspaceID)+"/conversations", map[string]string{"member_id": memberID}, &conv); err != nil {
		return "", err
	}
	return conv.ID, nil
}

func (c *Client) CreateMessage(ctx context.Context, m NewMessage) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/messages", m, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) UpdateMessage(ctx context.Context, id, body string) error {
	return c.do(ctx, http.MethodPatch, "/api/v1/messages/"+url.PathEscape(id), map[string]string{"body": body}, nil)
}

// ToggleReaction reports whether the caller's reaction is present afterwards.
func (c *Client) ToggleReaction(ctx context.Context, messageID, value string) (bool, error) {
	var out struct {
		Reacted bool `json:"reacted"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/messages/"+url.PathEscape(messageID)+"/reactions", map[string]string{"value": value}, &out); err != nil {
		return false, err
	}
	return out.Reacted, nil
}
