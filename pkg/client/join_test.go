package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingUI struct {
	mu       sync.Mutex
	paths    []string
	success  []string
	failures []string
}

func (r *recordingUI) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recordingUI) Success(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success = append(r.success, msg)
}

func (r *recordingUI) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, msg)
}

func TestJoinFlowRejectsBadLengthLocally(t *testing.T) {
	f, c := newFakeAPI(t)
	ui := &recordingUI{}
	flow := NewJoinFlow(c, ui, ui)

	for _, code := range []string{"", "abc12", "abc1234"} {
		assert.ErrorIs(t, flow.Join(context.Background(), "w1", code), ErrJoinCodeLength, code)
	}
	assert.Zero(t, f.hits.Load())
	assert.Empty(t, ui.success)
	assert.Empty(t, ui.failures)
	assert.Empty(t, ui.paths)
}

func TestJoinFlowFailure(t *testing.T) {
	_, c := newFakeAPI(t)
	ui := &recordingUI{}
	flow := NewJoinFlow(c, ui, ui)

	err := flow.Join(context.Background(), "w1", "zzzzzz")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, []string{MsgJoinFailed}, ui.failures)
	assert.Empty(t, ui.paths)
	assert.False(t, flow.IsPending())
}

func TestJoinFlowSuccessThenOpenRedirects(t *testing.T) {
	_, c := newFakeAPI(t)
	ui := &recordingUI{}
	flow := NewJoinFlow(c, ui, ui)
	ctx := context.Background()

	info, err := flow.Open(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Acme", info.Name)
	assert.False(t, info.IsMember)
	assert.Empty(t, ui.paths)

	require.NoError(t, flow.Join(ctx, "w1", "abc123"))
	assert.Equal(t, []string{MsgWorkspaceJoined}, ui.success)
	assert.Equal(t, []string{"/workspace/w1"}, ui.paths)

	info, err = flow.Open(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, info.IsMember)
	assert.Equal(t, []string{"/workspace/w1", "/workspace/w1"}, ui.paths)

	info, err = flow.Open(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, info)
}
