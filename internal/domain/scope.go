package domain

import (
	"fmt"

	"github.com/fathima-sithara/teamchat/internal/apperr"
)

type ScopeKind string

const (
	ScopeChannel      ScopeKind = "channel"
	ScopeConversation ScopeKind = "conversation"
	ScopeThread       ScopeKind = "thread"
)

// MessageScope selects which message list a query reads.
type MessageScope struct {
	ChannelID       string `json:"channel_id,omitempty"`
	ConversationID  string `json:"conversation_id,omitempty"`
	ParentMessageID string `json:"parent_message_id,omitempty"`
}

// Kind picks the most specific selector present: thread, then
// conversation, then channel.
func (s MessageScope) Kind() (ScopeKind, string, error) {
	switch {
	case s.ParentMessageID != "":
		return ScopeThread, s.ParentMessageID, nil
	case s.ConversationID != "":
		return ScopeConversation, s.ConversationID, nil
	case s.ChannelID != "":
		return ScopeChannel, s.ChannelID, nil
	}
	return "", "", fmt.Errorf("one of channel_id, conversation_id or parent_message_id is required: %w", apperr.ErrBadRequest)
}

// Topic is the live subscription room for the scope.
func (s MessageScope) Topic() string {
	kind, id, err := s.Kind()
	if err != nil {
		return ""
	}
	return string(kind) + ":" + id
}

func WorkspaceTopic(id string) string { return "workspace:" + id }

// UserTopic carries changes to the set of workspaces a user belongs to.
func UserTopic(id string) string { return "user:" + id }

func ChannelTopic(id string) string { return string(ScopeChannel) + ":" + id }

func ConversationTopic(id string) string { return string(ScopeConversation) + ":" + id }

func ThreadTopic(id string) string { return string(ScopeThread) + ":" + id }

// Topics lists every room a change to m must invalidate.
func (m *Message) Topics() []string {
	topics := []string{WorkspaceTopic(m.WorkspaceID)}
	if m.ChannelID != "" {
		topics = append(topics, ChannelTopic(m.ChannelID))
	}
	if m.ConversationID != "" {
		topics = append(topics, ConversationTopic(m.ConversationID))
	}
	if m.ParentMessageID != "" {
		topics = append(topics, ThreadTopic(m.ParentMessageID))
	}
	return topics
}
