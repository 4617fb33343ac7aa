package impersonation

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var addr = common.HexToAddress("0xDeD796De6a14E255487191963dEe436c45995813")

type fakeNode struct {
	impersonateErr error
	stopErr        error

	impersonated []common.Address
	stopped      []common.Address
}

func (n *fakeNode) Impersonate(_ context.Context, a common.Address) error {
	n.impersonated = append(n.impersonated, a)
	return n.impersonateErr
}

func (n *fakeNode) StopImpersonating(_ context.Context, a common.Address) error {
	n.stopped = append(n.stopped, a)
	return n.stopErr
}

func TestSession_Lifecycle(t *testing.T) {
	node := &fakeNode{}
	s := New(node, addr, nil)
	ctx := context.Background()

	assert.Equal(t, Inactive, s.State())
	assert.Equal(t, addr, s.Address())
	assert.NotEqual(t, uuid.Nil, s.ID())

	require.NoError(t, s.Begin(ctx))
	assert.Equal(t, Active, s.State())
	assert.True(t, s.Active())

	require.NoError(t, s.End(ctx))
	assert.Equal(t, Inactive, s.State())

	assert.Equal(t, []common.Address{addr}, node.impersonated)
	assert.Equal(t, []common.Address{addr}, node.stopped)
}

func TestSession_BeginTwice(t *testing.T) {
	node := &fakeNode{}
	s := New(node, addr, nil)

	require.NoError(t, s.Begin(context.Background()))
	err := s.Begin(context.Background())
	assert.ErrorIs(t, err, ErrPreconditionViolated)
	assert.Len(t, node.impersonated, 1)
	assert.Equal(t, Active, s.State())
}

func TestSession_BeginFailure(t *testing.T) {
	rpcErr := errors.New("node not configured for impersonation")
	node := &fakeNode{impersonateErr: rpcErr}
	s := New(node, addr, nil)

	err := s.Begin(context.Background())
	assert.ErrorIs(t, err, rpcErr)
	assert.Equal(t, Inactive, s.State())

	// Nothing to release.
	require.NoError(t, s.End(context.Background()))
	assert.Empty(t, node.stopped)
}

func TestSession_EndIsIdempotent(t *testing.T) {
	node := &fakeNode{}
	s := New(node, addr, nil)

	require.NoError(t, s.End(context.Background()))
	assert.Empty(t, node.stopped)

	require.NoError(t, s.Begin(context.Background()))
	require.NoError(t, s.End(context.Background()))
	require.NoError(t, s.End(context.Background()))
	assert.Len(t, node.stopped, 1)
}

func TestSession_EndFailureStillDeactivates(t *testing.T) {
	stopErr := errors.New("connection refused")
	node := &fakeNode{stopErr: stopErr}
	s := New(node, addr, nil)

	require.NoError(t, s.Begin(context.Background()))
	err := s.End(context.Background())
	assert.ErrorIs(t, err, stopErr)
	assert.Equal(t, Inactive, s.State())

	// The session can be started again afterwards.
	node.stopErr = nil
	require.NoError(t, s.Begin(context.Background()))
	assert.Equal(t, Active, s.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "inactive", Inactive.String())
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "State(7)", State(7).String())
}
