package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	WorkspaceCreated    = "workspace.created"
	WorkspaceUpdated    = "workspace.updated"
	WorkspaceDeleted    = "workspace.deleted"
	JoinCodeRotated     = "workspace.join_code_rotated"
	MemberJoined        = "member.joined"
	ChannelCreated      = "channel.created"
	ChannelUpdated      = "channel.updated"
	ChannelDeleted      = "channel.deleted"
	ConversationCreated = "conversation.created"
	MessageCreated      = "message.created"
	MessageUpdated      = "message.updated"
	MessageDeleted      = "message.deleted"
	ReactionToggled     = "reaction.toggled"
	PresenceChanged     = "presence.changed"
)

// Event is the domain change record. Topics names every live room whose
// queries the change invalidates.
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	WorkspaceID string          `json:"workspace_id"`
	EntityID    string          `json:"entity_id"`
	ActorID     string          `json:"actor_id,omitempty"`
	Topics      []string        `json:"topics"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	At          time.Time       `json:"at"`
}

func New(typ, workspaceID, entityID, actorID string, topics []string, payload any) Event {
	ev := Event{
		ID:          uuid.NewString(),
		Type:        typ,
		WorkspaceID: workspaceID,
		EntityID:    entityID,
		ActorID:     actorID,
		Topics:      topics,
		At:          time.Now().UTC(),
	}
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			ev.Payload = b
		}
	}
	return ev
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a plain function, used to route events straight to
// the local hub when no broker is configured.
type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Event) error { return nil })
