package domain

import "time"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleMember }

type ProviderAccount struct {
	Provider  string `bson:"provider" json:"provider"`
	AccountID string `bson:"account_id" json:"account_id"`
}

type User struct {
	ID           string            `bson:"_id" json:"id"`
	Name         string            `bson:"name" json:"name"`
	Email        string            `bson:"email,omitempty" json:"email"`
	Image        string            `bson:"image,omitempty" json:"image,omitempty"`
	PasswordHash string            `bson:"password_hash,omitempty" json:"-"`
	Providers    []ProviderAccount `bson:"providers,omitempty" json:"-"`
	CreatedAt    time.Time         `bson:"created_at" json:"created_at"`
}

type Workspace struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	UserID    string    `bson:"user_id" json:"user_id"`
	JoinCode  string    `bson:"join_code" json:"join_code"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// WorkspaceInfo is what a non-member may learn about a workspace.
type WorkspaceInfo struct {
	Name     string `json:"name"`
	IsMember bool   `json:"is_member"`
}

type Member struct {
	ID          string    `bson:"_id" json:"id"`
	WorkspaceID string    `bson:"workspace_id" json:"workspace_id"`
	UserID      string    `bson:"user_id" json:"user_id"`
	Role        Role      `bson:"role" json:"role"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

func (m *Member) IsAdmin() bool { return m != nil && m.Role == RoleAdmin }

type MemberWithUser struct {
	Member
	User *User `json:"user"`
}

type Channel struct {
	ID          string    `bson:"_id" json:"id"`
	WorkspaceID string    `bson:"workspace_id" json:"workspace_id"`
	Name        string    `bson:"name" json:"name"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

type Conversation struct {
	ID          string    `bson:"_id" json:"id"`
	WorkspaceID string    `bson:"workspace_id" json:"workspace_id"`
	MemberOneID string    `bson:"member_one_id" json:"member_one_id"`
	MemberTwoID string    `bson:"member_two_id" json:"member_two_id"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

// NewConversation orders the pair so one conversation exists per pair.
func NewConversation(id, workspaceID, memberA, memberB string, at time.Time) *Conversation {
	if memberB < memberA {
		memberA, memberB = memberB, memberA
	}
	return &Conversation{ID: id, WorkspaceID: workspaceID, MemberOneID: memberA, MemberTwoID: memberB, CreatedAt: at}
}

func (c *Conversation) Includes(memberID string) bool {
	return memberID != "" && (c.MemberOneID == memberID || c.MemberTwoID == memberID)
}

type Message struct {
	ID              string     `bson:"_id" json:"id"`
	Body            string     `bson:"body" json:"body"`
	Image           string     `bson:"image,omitempty" json:"-"`
	MemberID        string     `bson:"member_id" json:"member_id"`
	WorkspaceID     string     `bson:"workspace_id" json:"workspace_id"`
	ChannelID       string     `bson:"channel_id,omitempty" json:"channel_id,omitempty"`
	ConversationID  string     `bson:"conversation_id,omitempty" json:"conversation_id,omitempty"`
	ParentMessageID string     `bson:"parent_message_id,omitempty" json:"parent_message_id,omitempty"`
	CreatedAt       time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt       *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

func (m *Message) IsEdited() bool { return m.UpdatedAt != nil }

type Reaction struct {
	ID          string    `bson:"_id" json:"id"`
	WorkspaceID string    `bson:"workspace_id" json:"workspace_id"`
	MessageID   string    `bson:"message_id" json:"message_id"`
	MemberID    string    `bson:"member_id" json:"member_id"`
	Value       string    `bson:"value" json:"value"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

type ReactionSummary struct {
	Value     string   `json:"value"`
	Count     int      `json:"count"`
	MemberIDs []string `json:"member_ids"`
}

// MessageView is a message enriched for rendering: author, reactions,
// resolved image URL and the summary of its thread.
type MessageView struct {
	Message
	ImageURL        string            `json:"image,omitempty"`
	BodyEmpty       bool              `json:"body_empty"`
	Edited          bool              `json:"edited"`
	Member          *Member           `json:"member"`
	User            *User             `json:"user"`
	Reactions       []ReactionSummary `json:"reactions"`
	ThreadCount     int               `json:"thread_count"`
	ThreadImage     string            `json:"thread_image,omitempty"`
	ThreadTimestamp *time.Time        `json:"thread_timestamp,omitempty"`
}
