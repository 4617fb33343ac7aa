// Package workflow runs impersonate -> fund -> transfer -> release against
// a devnet node.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/popsigner/devctl/internal/transfer"
)

// cleanupTimeout bounds the release call when the run context is already done.
const cleanupTimeout = 10 * time.Second

// Session is an impersonation session for the target address.
type Session interface {
	Begin(ctx context.Context) error
	End(ctx context.Context) error
	Active() bool
	Address() common.Address
}

// Funder tops up the target balance.
type Funder interface {
	EnsureFunded(ctx context.Context, target common.Address, minimum *big.Int) error
}

// Transferer performs the privileged action while the session is active.
type Transferer interface {
	Run(ctx context.Context, session transfer.Session, params transfer.Params) error
}

// Request describes one run.
type Request struct {
	Minimum   *big.Int
	Recipient *common.Address
	Params    map[string]string
}

// Workflow composes the steps. A Workflow serves a single run.
type Workflow struct {
	session    Session
	funder     Funder
	transferer Transferer
	logger     *slog.Logger
}

// New creates a workflow.
func New(session Session, funder Funder, transferer Transferer, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		session:    session,
		funder:     funder,
		transferer: transferer,
		logger:     logger,
	}
}

// Run executes the whole sequence. Once impersonation has been granted it is
// released on every return path. The run succeeds only if every step,
// including the release, succeeds.
func (w *Workflow) Run(ctx context.Context, req Request) (err error) {
	target := w.session.Address()
	w.logger.Info("starting transfer workflow", slog.String("address", target.Hex()))

	if err := w.session.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		releaseCtx, cancel := releaseContext(ctx)
		defer cancel()

		endErr := w.session.End(releaseCtx)
		if endErr == nil {
			return
		}
		if err != nil {
			w.logger.Error("failed to release impersonation after error",
				slog.String("address", target.Hex()),
				slog.String("error", endErr.Error()),
			)
			return
		}
		err = endErr
	}()

	if err := w.funder.EnsureFunded(ctx, target, req.Minimum); err != nil {
		return fmt.Errorf("fund %s: %w", target.Hex(), err)
	}

	if err := w.transferer.Run(ctx, w.session, transfer.Params{
		Recipient: req.Recipient,
		Extra:     req.Params,
	}); err != nil {
		return fmt.Errorf("transfer as %s: %w", target.Hex(), err)
	}

	w.logger.Info("transfer workflow completed", slog.String("address", target.Hex()))
	return nil
}

// releaseContext returns ctx unless it is already done, in which case the
// release still gets a bounded attempt.
func releaseContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}
