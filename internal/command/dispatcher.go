package command

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sushant-115/sukunadb/core/coordinator"
)

// Config configures a Dispatcher.
type Config struct {
	// Coordinator receives the parsed operations.
	Coordinator *coordinator.Coordinator
	// Out receives parse diagnostics; it should be the same stream as the
	// coordinator's protocol output.
	Out io.Writer
	// Logger receives diagnostic logs.
	Logger *zap.Logger
	// Limiter, when set, paces command replay. Useful when demoing a script
	// against a live metrics endpoint.
	Limiter *rate.Limiter
}

// Dispatcher drains a command stream one line at a time and invokes the
// matching coordinator operation.
type Dispatcher struct {
	coord   *coordinator.Coordinator
	out     io.Writer
	logger  *zap.Logger
	limiter *rate.Limiter
}

// NewDispatcher creates a dispatcher for the given coordinator.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Dispatcher{
		coord:   cfg.Coordinator,
		out:     cfg.Out,
		logger:  cfg.Logger,
		limiter: cfg.Limiter,
	}
}

// Execute parses one line and applies it. Malformed lines print an Error
// diagnostic and do not reach the engine.
func (d *Dispatcher) Execute(line string) {
	cmd, err := Parse(line)
	if err != nil {
		fmt.Fprintf(d.out, "Error: %v\n", err)
		return
	}
	if cmd == nil {
		return
	}
	d.Apply(cmd)
}

// Apply invokes the coordinator operation for a parsed command.
func (d *Dispatcher) Apply(cmd *Command) {
	switch cmd.Kind {
	case KindBegin:
		d.coord.Begin(cmd.Txn)
	case KindRead:
		d.coord.Read(cmd.Txn, cmd.Variable)
	case KindWrite:
		d.coord.Write(cmd.Txn, cmd.Variable, cmd.Value)
	case KindEnd:
		d.coord.End(cmd.Txn)
	case KindFail:
		d.coord.FailSite(cmd.Site)
	case KindRecover:
		d.coord.RecoverSite(cmd.Site)
	case KindDump:
		d.coord.Dump()
	}
}

// Run drains the reader to the end of the stream, executing each line in
// order. When a limiter is configured, each command waits for its token
// first. Run returns the reader's error, if any; a clean end of stream
// returns nil.
func (d *Dispatcher) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lines := 0
	for scanner.Scan() {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		d.Execute(scanner.Text())
		lines++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading command stream: %w", err)
	}
	d.logger.Info("command stream drained", zap.Int("lines", lines))
	return nil
}
