// Package impersonation tracks impersonation of one address on a devnet
// node so that it is always released.
package impersonation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ErrPreconditionViolated is returned when an operation is used out of order,
// such as beginning a session twice or transferring without impersonation.
var ErrPreconditionViolated = errors.New("impersonation: precondition violated")

// State is the impersonation state of a session.
type State int

const (
	// Inactive means the session does not hold impersonation.
	Inactive State = iota
	// Active means the node is impersonating the session address.
	Active
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Node is the subset of the devnet client a session needs.
type Node interface {
	Impersonate(ctx context.Context, addr common.Address) error
	StopImpersonating(ctx context.Context, addr common.Address) error
}

// Session guards impersonate -> act -> stop impersonating for one address.
// It is not safe for concurrent use.
type Session struct {
	node    Node
	address common.Address
	state   State
	id      uuid.UUID
	logger  *slog.Logger
}

// New creates an inactive session for addr.
func New(node Node, addr common.Address, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New()
	return &Session{
		node:    node,
		address: addr,
		state:   Inactive,
		id:      id,
		logger: logger.With(
			slog.String("session_id", id.String()),
			slog.String("address", addr.Hex()),
		),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() uuid.UUID { return s.id }

// Address returns the impersonated address.
func (s *Session) Address() common.Address { return s.address }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Active reports whether the session holds impersonation.
func (s *Session) Active() bool { return s.state == Active }

// Begin asks the node to impersonate the address. On failure the session
// stays inactive.
func (s *Session) Begin(ctx context.Context) error {
	if s.state != Inactive {
		return fmt.Errorf("%w: session for %s already %s", ErrPreconditionViolated, s.address.Hex(), s.state)
	}

	if err := s.node.Impersonate(ctx, s.address); err != nil {
		s.logger.Error("impersonation failed", slog.String("error", err.Error()))
		return fmt.Errorf("impersonate %s: %w", s.address.Hex(), err)
	}

	s.state = Active
	s.logger.Info("impersonation started")
	return nil
}

// End releases impersonation. It is a no-op on an inactive session. The
// session becomes inactive even when the node rejects the request; the
// node's error is returned.
func (s *Session) End(ctx context.Context) error {
	if s.state == Inactive {
		return nil
	}

	err := s.node.StopImpersonating(ctx, s.address)
	s.state = Inactive
	if err != nil {
		s.logger.Warn("stop impersonating failed", slog.String("error", err.Error()))
		return fmt.Errorf("stop impersonating %s: %w", s.address.Hex(), err)
	}

	s.logger.Info("impersonation stopped")
	return nil
}
