package client

import "time"

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UserID    string    `json:"user_id"`
	JoinCode  string    `json:"join_code"`
	CreatedAt time.Time `json:"created_at"`
}

type WorkspaceInfo struct {
	Name     string `json:"name"`
	IsMember bool   `json:"is_member"`
}

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Member struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	User        *User     `json:"user,omitempty"`
}

type Channel struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
}

type Conversation struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	MemberOneID string    `json:"member_one_id"`
	MemberTwoID string    `json:"member_two_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type Reaction struct {
	Value     string   `json:"value"`
	Count     int      `json:"count"`
	MemberIDs []string `json:"member_ids"`
}

type Message struct {
	ID              string     `json:"id"`
	Body            string     `json:"body"`
	BodyEmpty       bool       `json:"body_empty"`
	Image           string     `json:"image,omitempty"`
	MemberID        string     `json:"member_id"`
	WorkspaceID     string     `json:"workspace_id"`
	ChannelID       string     `json:"channel_id,omitempty"`
	ConversationID  string     `json:"conversation_id,omitempty"`
	ParentMessageID string     `json:"parent_message_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
	Edited          bool       `json:"edited"`
	Member          *Member    `json:"member"`
	User            *User      `json:"user"`
	Reactions       []Reaction `json:"reactions"`
	ThreadCount     int        `json:"thread_count"`
	ThreadImage     string     `json:"thread_image,omitempty"`
	ThreadTimestamp *time.Time `json:"thread_timestamp,omitempty"`
}

// Scope selects a message list. The most specific non-empty field wins on
// the server: thread, then conversation, then channel.
type Scope struct {
	ChannelID       string
	ConversationID  string
	ParentMessageID string
}

func (s Scope) Empty() bool {
	return s.ChannelID == "" && s.ConversationID == "" && s.ParentMessageID == ""
}

// Topic is the live subscription topic covering the scope.
func (s Scope) Topic() string {
	switch {
	case s.ParentMessageID != "":
		return "thread:" + s.ParentMessageID
	case s.ConversationID != "":
		return "conversation:" + s.ConversationID
	case s.ChannelID != "":
		return "channel:" + s.ChannelID
	}
	return ""
}

type MessagePage struct {
	Page           []Message `json:"page"`
	IsDone         bool      `json:"is_done"`
	ContinueCursor string    `json:"continue_cursor"`
}

type NewMessage struct {
	WorkspaceID     string `json:"workspace_id"`
	ChannelID       string `json:"channel_id,omitempty"`
	ConversationID  string `json:"conversation_id,omitempty"`
	ParentMessageID string `json:"parent_message_id,omitempty"`
	Body            string `json:"body"`
	Image           string `json:"image,omitempty"`
}

func WorkspaceTopic(id string) string { return "workspace:" + id }
func UserTopic(id string) string { return "user:" + id }
