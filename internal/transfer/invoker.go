// Package transfer hands a value transfer off to an external build tool
// while an address is impersonated.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/popsigner/devctl/internal/impersonation"
)

// Default invocation surface.
const (
	DefaultAddressKey   = "IMPERSONATED"
	DefaultRecipientKey = "RECIPIENT"
)

// DefaultCommand runs the transfer target of the project Makefile.
var DefaultCommand = []string{"make", "transfer"}

// ErrTransferToolFailed is returned when the external tool cannot be started
// or exits non-zero.
var ErrTransferToolFailed = errors.New("transfer: tool failed")

// ToolError reports a non-zero exit of the external tool.
type ToolError struct {
	Command  string
	ExitCode int
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	return fmt.Sprintf("transfer: %s exited with status %d", e.Command, e.ExitCode)
}

// Is reports whether target is ErrTransferToolFailed.
func (e *ToolError) Is(target error) bool {
	return target == ErrTransferToolFailed
}

// Session is the impersonation state the invoker checks before launching.
type Session interface {
	Active() bool
	Address() common.Address
}

// Params are the values passed to the tool besides the impersonated address.
type Params struct {
	Recipient *common.Address
	Extra     map[string]string
}

// Config configures an Invoker.
type Config struct {
	// Command is the program and its leading arguments.
	Command      []string
	AddressKey   string
	RecipientKey string

	// Dir is the working directory of the tool; empty means the current one.
	Dir string
	// Env is the base environment; nil means os.Environ().
	Env []string

	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Invoker launches the external tool.
type Invoker struct {
	cfg Config

	commandContext func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewInvoker creates an invoker, filling unset fields with defaults.
func NewInvoker(cfg Config) (*Invoker, error) {
	if len(cfg.Command) == 0 {
		cfg.Command = DefaultCommand
	}
	if cfg.Command[0] == "" {
		return nil, fmt.Errorf("transfer command is empty")
	}
	if cfg.AddressKey == "" {
		cfg.AddressKey = DefaultAddressKey
	}
	if cfg.RecipientKey == "" {
		cfg.RecipientKey = DefaultRecipientKey
	}
	if cfg.Env == nil {
		cfg.Env = os.Environ()
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Invoker{
		cfg:            cfg,
		commandContext: exec.CommandContext,
	}, nil
}

// Run launches the tool with the session address bound and waits for it to
// exit. The session must be active; otherwise nothing is launched.
func (i *Invoker) Run(ctx context.Context, session Session, params Params) error {
	if session == nil || !session.Active() {
		return fmt.Errorf("%w: transfer requires an active impersonation session", impersonation.ErrPreconditionViolated)
	}

	vars, err := i.variables(session.Address(), params)
	if err != nil {
		return err
	}

	name := i.cfg.Command[0]
	args := append(append([]string{}, i.cfg.Command[1:]...), vars...)

	cmd := i.commandContext(ctx, name, args...)
	cmd.Dir = i.cfg.Dir
	cmd.Env = append(append([]string{}, i.cfg.Env...), vars...)
	cmd.Stdout = i.cfg.Stdout
	cmd.Stderr = i.cfg.Stderr

	i.cfg.Logger.Info("running transfer tool",
		slog.String("command", strings.Join(i.cfg.Command, " ")),
		slog.String("address", session.Address().Hex()),
		slog.Any("params", vars),
	)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ToolError{Command: name, ExitCode: exitErr.ExitCode()}
		}
		return fmt.Errorf("%w: start %s: %w", ErrTransferToolFailed, name, err)
	}

	i.cfg.Logger.Info("transfer tool finished", slog.String("command", name))
	return nil
}

// variables renders the KEY=value parameters: address first, then the
// recipient, then extra parameters sorted by key.
func (i *Invoker) variables(addr common.Address, params Params) ([]string, error) {
	vars := []string{i.cfg.AddressKey + "=" + addr.Hex()}
	if params.Recipient != nil {
		vars = append(vars, i.cfg.RecipientKey+"="+params.Recipient.Hex())
	}

	keys := make([]string, 0, len(params.Extra))
	for k := range params.Extra {
		if k == "" || strings.ContainsAny(k, "= \t\n") {
			return nil, fmt.Errorf("invalid parameter name %q", k)
		}
		if k == i.cfg.AddressKey || (params.Recipient != nil && k == i.cfg.RecipientKey) {
			return nil, fmt.Errorf("parameter %s is set by devctl", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vars = append(vars, k+"="+params.Extra[k])
	}
	return vars, nil
}

// ParseParams parses KEY=value pairs.
func ParseParams(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q, want KEY=value", p)
		}
		out[k] = v
	}
	return out, nil
}
