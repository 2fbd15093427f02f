package client

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

const JoinCodeLength = 6

var ErrJoinCodeLength = errors.New("client: join code must be 6 characters")

const (
	MsgWorkspaceJoined = "Workspace joined"
	MsgJoinFailed      = "Failed to join workspace"
)

type Navigator interface {
	Navigate(path string)
}

type Notifier interface {
	Success(msg string)
	Error(msg string)
}

func WorkspacePath(id string) string { return "/workspace/" + id }

type joinArgs struct {
	workspaceID string
	code        string
}

// JoinFlow drives the join page: look up the workspace, then submit the
// invite code once.
type JoinFlow struct {
	client *Client
	nav    Navigator
	notify Notifier
	join   *Mutation[joinArgs, struct{}]
}

func NewJoinFlow(c *Client, nav Navigator, notify Notifier) *JoinFlow {
	return &JoinFlow{
		client: c,
		nav:    nav,
		notify: notify,
		join: NewMutation(func(ctx context.Context, a joinArgs) (struct{}, error) {
			return struct{}{}, c.JoinWorkspace(ctx, a.workspaceID, a.code)
		}),
	}
}

func (f *JoinFlow) IsPending() bool { return f.join.IsPending() }

// Open resolves what the join page shows. Members are sent straight to the
// workspace. A nil info means the workspace does not exist.
func (f *JoinFlow) Open(ctx context.Context, workspaceID string) (*WorkspaceInfo, error) {
	info, err := f.client.WorkspaceInfo(ctx, workspaceID)
	if err != nil || info == nil {
		return nil, err
	}
	if info.IsMember {
		f.nav.Navigate(WorkspacePath(workspaceID))
	}
	return info, nil
}

// Join submits code. A code of the wrong length fails locally without a
// request or a notification.
func (f *JoinFlow) Join(ctx context.Context, workspaceID, code string) error {
	code = strings.TrimSpace(code)
	if utf8.RuneCountInString(code) != JoinCodeLength {
		return ErrJoinCodeLength
	}
	_, err := f.join.Mutate(ctx, joinArgs{workspaceID: workspaceID, code: code}, Callbacks[struct{}]{
		OnSuccess: func(struct{}) {
			f.notify.Success(MsgWorkspaceJoined)
			f.nav.Navigate(WorkspacePath(workspaceID))
		},
		OnError: func(error) {
			f.notify.Error(MsgJoinFailed)
		},
	})
	return err
}
