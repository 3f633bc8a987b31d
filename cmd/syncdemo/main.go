// Command syncdemo syncs a state model onto a component from a YAML binding
// table and prints every handler call.
//
//	syncdemo bindings.yaml title=hello count=3
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jilio/statesync"
	"github.com/jilio/statesync/stores/sqlite"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// RunOptions holds the command flags.
type RunOptions struct {
	Trigger string
	SkipNow bool
}

// NewRootCommand creates the syncdemo command.
func NewRootCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "syncdemo <bindings.yaml> [key=value...]",
		Short: "Sync a state model onto a component and print handler calls",
		Long: `Reads a binding table ("event list": handler list), syncs a state model
onto a component whose handlers print their calls, sets the given
attributes, then triggers the re-sync event.

Configuration comes from SYNCDEMO_DB, SYNCDEMO_STATE_ID, SYNCDEMO_TRACE
and SYNCDEMO_LOG_LEVEL.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], args[1:])
		},
	}

	cmd.Flags().StringVar(&opts.Trigger, "trigger", "render", "component event that re-runs the binding table")
	cmd.Flags().BoolVar(&opts.SkipNow, "skip-now", false, "do not run the binding table before setting attributes")

	return cmd
}

// view is a component whose handlers print "handler kind value"
type view struct {
	*statesync.Component
	out io.Writer
}

func newView(out io.Writer, bindings statesync.Bindings) *view {
	v := &view{Component: statesync.NewComponent(), out: out}
	for _, b := range bindings {
		for _, name := range b.HandlerNames() {
			v.Define(name, v.printer(name))
		}
	}
	return v
}

func (v *view) printer(name string) statesync.HandlerFunc {
	return func(entity statesync.Entity, value any) error {
		kind := "none"
		if entity != nil {
			kind = entity.Kind().String()
		}
		_, err := fmt.Fprintf(v.out, "%s %s %v\n", name, kind, value)
		return err
	}
}

func (v *view) header(step string) {
	fmt.Fprintf(v.out, "# %s\n", step)
}

func run(ctx context.Context, cfg Config, opts *RunOptions, out, errOut io.Writer, bindingsPath string, assignments []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	level, err := cfg.level()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	data, err := os.ReadFile(bindingsPath)
	if err != nil {
		return fmt.Errorf("read bindings: %w", err)
	}
	bindings, err := statesync.ParseBindingsYAML(data)
	if err != nil {
		return err
	}

	attrs, err := parseAssignments(assignments)
	if err != nil {
		return err
	}

	syncOpts := []statesync.SyncOption{statesync.WithLogger(logger)}
	if cfg.Trace {
		obs, shutdown, err := setupTelemetry(errOut)
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("telemetry shutdown failed", "error", err)
			}
		}()
		syncOpts = append(syncOpts, statesync.WithObservability(obs))
	}

	v := newView(out, bindings)
	stateOpts := []statesync.StateOption{
		statesync.WithComponent(v.Component),
		statesync.WithStateLogger(logger),
	}
	if cfg.DB != "" {
		store, err := sqlite.New(cfg.DB, sqlite.WithLogger(logger))
		if err != nil {
			return err
		}
		defer store.Close()
		stateOpts = append(stateOpts, statesync.WithStore(store, cfg.StateID))
	}

	state, err := statesync.NewState(stateOpts...)
	if err != nil {
		return err
	}

	session := statesync.SyncEntityEvents(v, state.Model(), bindings, syncOpts...).When(opts.Trigger)

	if !opts.SkipNow {
		v.header("now")
		if err := session.NowContext(ctx); err != nil {
			return err
		}
	}

	v.header("set")
	if err := state.Set(attrs); err != nil {
		return err
	}

	v.header(opts.Trigger)
	if err := v.Trigger(opts.Trigger); err != nil {
		return err
	}

	logger.Info("done", "state_version", state.Version(), "sessions", v.Sessions().Len())
	return v.Destroy()
}

// parseAssignments reads key=value pairs. Values are decoded as YAML
// scalars, so numbers and booleans keep their type.
func parseAssignments(assignments []string) (map[string]any, error) {
	attrs := make(map[string]any, len(assignments))
	for _, assignment := range assignments {
		key, raw, ok := strings.Cut(assignment, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q: want key=value", assignment)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("assignment %q: %w", assignment, err)
		}
		attrs[key] = value
	}
	return attrs, nil
}
