package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// ErrCancelled is returned when the user declines a confirmation.
var ErrCancelled = errors.New("client: action cancelled")

// ErrNoConfirmer guards destructive calls made without a way to ask.
var ErrNoConfirmer = errors.New("client: confirmer required")

type Prompt struct {
	Title       string
	Description string
}

// Confirmer shows a prompt and blocks until the user answers.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

type ConfirmFunc func(ctx context.Context, p Prompt) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, p Prompt) (bool, error) { return f(ctx, p) }

var (
	PromptRenameWorkspace = Prompt{"Are you sure?", "This name change will be visible to everyone on the workspace."}
	PromptDeleteWorkspace = Prompt{"Are you sure?", "This action is irreversible and no one will be able to access the workspace anymore."}
	PromptNewJoinCode     = Prompt{"Are you sure?", "This will deactivate the current invite code and generate a new one."}
	PromptDeleteChannel   = Prompt{"Are you sure?", "This action will permanently delete this channel, meaning no one can access it."}
	PromptDeleteMessage   = Prompt{"Delete message", "Are you sure? This is an irreversible action that cannot be undone."}
)

// Gate runs action only after cf confirms p. On cancel nothing is called.
func Gate(ctx context.Context, cf Confirmer, p Prompt, action func(context.Context) error) error {
	if cf == nil {
		return ErrNoConfirmer
	}
	ok, err := cf.Confirm(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCancelled
	}
	return action(ctx)
}

func (c *Client) RenameWorkspace(ctx context.Context, cf Confirmer, id, name string) (*Workspace, error) {
	var w Workspace
	err := Gate(ctx, cf, PromptRenameWorkspace, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPatch, "/api/v1/workspaces/"+url.PathEscape(id), map[string]string{"name": name}, &w)
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (c *Client) DeleteWorkspace(ctx context.Context, cf Confirmer, id string) error {
	return Gate(ctx, cf, PromptDeleteWorkspace, func(ctx context.Context) error {
		return c.do(ctx, http.MethodDelete, "/api/v1/workspaces/"+url.PathEscape(id), nil, nil)
	})
}

// NewJoinCode rotates the invite code and returns the updated workspace.
func (c *Client) NewJoinCode(ctx context.Context, cf Confirmer, id string) (*Workspace, error) {
	var w Workspace
	err := Gate(ctx, cf, PromptNewJoinCode, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, "/api/v1/workspaces/"+url.PathEscape(id)+"/join-code", nil, &w)
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (c *Client) DeleteChannel(ctx context.Context, cf Confirmer, id string) error {
	return Gate(ctx, cf, PromptDeleteChannel, func(ctx context.Context) error {
		return c.do(ctx, http.MethodDelete, "/api/v1/channels/"+url.PathEscape(id), nil, nil)
	})
}

func (c *Client) DeleteMessage(ctx context.Context, cf Confirmer, id string) error {
	return Gate(ctx, cf, PromptDeleteMessage, func(ctx context.Context) error {
		return c.do(ctx, http.MethodDelete, "/api/v1/messages/"+url.PathEscape(id), nil, nil)
	})
}
