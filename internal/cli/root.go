// Package cli defines the cobra command tree for the tada binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/logging"
	"github.com/Makepad-fr/tada/internal/store/jsonstore"
	"github.com/Makepad-fr/tada/internal/todolist"
	"github.com/Makepad-fr/tada/internal/ui"
)

// Exit codes returned by Run.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// Streams are the standard streams a command reads and writes.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// usageError marks errors caused by bad invocation rather than failure.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, a ...any) error {
	return usageError{fmt.Errorf(format, a...)}
}

// usageArgs turns argument validation failures into usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// app carries flag values and the resources built from them for one run.
type app struct {
	streams Streams

	configPath string
	storePath  string
	logLevel   string
	themeName  string

	cfg       *config.Config
	logger    *log.Logger
	logCloser io.Closer
	theme     ui.Theme
}

// Run executes the command line and returns the process exit code:
// 0 on success, 1 on failure, 2 on usage errors.
func Run(ctx context.Context, args []string, streams Streams) int {
	a := &app{streams: streams, theme: ui.NewTheme("")}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(streams.In)
	root.SetOut(streams.Out)
	root.SetErr(streams.Err)

	err := root.ExecuteContext(ctx)
	a.close()
	if err == nil {
		return ExitOK
	}

	var ue usageError
	if errors.As(err, &ue) {
		a.fail(err.Error())
		fmt.Fprintln(streams.Err, a.theme.Muted.Render(`Run "tada --help" for usage.`))
		return ExitUsage
	}
	a.fail(err.Error())
	return ExitFailure
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tada",
		Short: "tada - a small todo list for the terminal",
		Long: `tada keeps a todo list in a JSON file and shows it in an interactive
terminal view. Several tada processes may share the same file: each one
polls it and picks up the others' changes.

Run without a subcommand to open the interactive view.`,
		Example: `  tada
  tada add "Buy milk"
  tada ls --group
  tada done 1
  tada rm 1
  tada mcp`,
		Args:              usageArgs(cobra.NoArgs),
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE:              a.runView,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to a TOML config file")
	pf.StringVar(&a.storePath, "store", "", "path to the JSON store file (default store.json)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&a.themeName, "theme", "", "color theme: classic, neon or mono")

	root.AddCommand(
		&cobra.Command{
			Use:   "ui",
			Short: "Open the interactive view",
			Args:  usageArgs(cobra.NoArgs),
			RunE:  a.runView,
		},
		a.lsCmd(),
		a.addCmd(),
		a.doneCmd(),
		a.rmCmd(),
		a.editCmd(),
		a.mcpCmd(),
		a.versionCmd(),
	)
	return root
}

// setup resolves configuration and builds the logger before any command
// that touches the store.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.theme = ui.NewTheme(a.themeName)

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.StorePath = a.storePath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("theme") {
		cfg.Theme = a.themeName
	}
	if err := cfg.Validate(); err != nil {
		return usageError{err}
	}
	a.cfg = cfg
	a.theme = ui.NewTheme(cfg.Theme)

	// The interactive view owns the terminal, so its logs only go to a file.
	var fallback io.Writer = a.streams.Err
	if cmd.Name() == "ui" || !cmd.HasParent() {
		fallback = nil
	}
	logger, closer, err := logging.New(logging.Options{
		Level:    cfg.LogLevel,
		Format:   cfg.LogFormat,
		File:     cfg.LogFile,
		Fallback: fallback,
	})
	if err != nil {
		return err
	}
	a.logger, a.logCloser = logger, closer
	a.logger.Debug("config loaded", "store", cfg.StorePath, "poll", cfg.PollInterval.Duration)
	return nil
}

func (a *app) close() {
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}

func (a *app) openStore() (*jsonstore.Store, error) {
	st, err := jsonstore.Load(a.cfg.StorePath, jsonstore.Options{
		AutoSave: a.cfg.AutoSave.Duration,
		Logger:   a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// withController opens the store, mounts a controller on it and runs fn.
// The store is flushed and closed afterwards.
func (a *app) withController(ctx context.Context, fn func(c *todolist.Controller) error) (err error) {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("save store: %w", cerr)
		}
	}()

	c := todolist.New(todolist.Options{
		PollInterval: a.cfg.PollInterval.Duration,
		Logger:       a.logger,
	})
	c.Mount(ctx, st)
	defer c.Unmount()
	return fn(c)
}

func (a *app) runView(cmd *cobra.Command, _ []string) error {
	// The poll loop holds off while writes are unflushed, so without
	// autosave the view would stop seeing other processes' changes.
	if a.cfg.AutoSave.Duration < 0 {
		return usagef("autosave must be enabled for the interactive view")
	}
	return a.withController(cmd.Context(), func(c *todolist.Controller) error {
		a.logger.Info("mounted", "store", a.cfg.StorePath)
		return ui.Run(cmd.Context(), c, a.theme)
	})
}

func (a *app) ok(msg string) {
	fmt.Fprintln(a.streams.Out, a.theme.Success.Render(a.theme.SymDone+" "+msg))
}

func (a *app) fail(msg string) {
	msg = strings.TrimSpace(msg)
	fmt.Fprintln(a.streams.Err, a.theme.Error.Render("✖ "+msg))
}
