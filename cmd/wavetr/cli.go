package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	wavetranslate "github.com/wippyai/wave-translate"
	"github.com/wippyai/wave-translate/config"
	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/source"
)

type options struct {
	configPath  string
	session     string
	trace       string
	color       string
	searchPaths []string
	verbose     bool
}

type cli struct {
	root   *cobra.Command
	engine *wavetranslate.Engine
	logger *zap.Logger
	trace  *source.Trace
	opts   options
}

func newCLI() *cli {
	c := &cli{}
	root := &cobra.Command{
		Use:           "wavetr",
		Short:         "Translate waveform values with built-in, plugin and script translators",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := root.PersistentFlags()
	f.StringVarP(&c.opts.configPath, "config", "c", "", "Configuration file (default: first "+config.FileName+" in the search paths)")
	f.StringArrayVar(&c.opts.searchPaths, "search-path", nil, "Translator search path, repeatable; replaces the configured paths")
	f.StringVarP(&c.opts.trace, "trace", "t", "", "YAML trace file")
	f.StringVar(&c.opts.session, "session", "", "Session file holding translator bindings")
	f.StringVar(&c.opts.color, "color", "auto", "Colour output: auto, always or never")
	f.BoolVarP(&c.opts.verbose, "verbose", "v", false, "Verbose logging")

	root.AddCommand(c.newListCmd())
	root.AddCommand(c.newApplicableCmd())
	root.AddCommand(c.newTranslateCmd())
	root.AddCommand(c.newBindCmd())
	root.AddCommand(c.newViewCmd())
	c.root = root
	return c
}

// Execute runs the command line and releases the engine afterwards.
func (c *cli) Execute(ctx context.Context) error {
	c.root.SetContext(ctx)
	defer c.close(ctx)
	return c.root.Execute()
}

// SetArgs replaces os.Args, for tests.
func (c *cli) SetArgs(args []string) { c.root.SetArgs(args) }

// SetOutput redirects command output, for tests.
func (c *cli) SetOutput(w io.Writer) {
	c.root.SetOut(w)
	c.root.SetErr(w)
}

func (c *cli) newLogger() (*zap.Logger, error) {
	if c.opts.verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// open loads the configuration, the trace and the session and starts the
// engine. Commands call it once.
func (c *cli) open(ctx context.Context, needTrace bool) (*wavetranslate.Engine, error) {
	if c.engine != nil {
		return c.engine, nil
	}

	logger, err := c.newLogger()
	if err != nil {
		return nil, err
	}
	c.logger = logger
	wavetranslate.SetLogger(logger)

	var cfg *config.Config
	if c.opts.configPath != "" {
		cfg, err = config.Load(c.opts.configPath)
	} else {
		wd, werr := os.Getwd()
		if werr != nil {
			return nil, werr
		}
		cfg, err = config.Find(wd)
	}
	if err != nil {
		return nil, err
	}
	if len(c.opts.searchPaths) > 0 {
		cfg.SearchPaths = c.opts.searchPaths
	}

	eng, err := wavetranslate.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.engine = eng
	if derr := eng.DiscoveryErrors(); derr != nil {
		logger.Warn("some translators were not loaded", zap.Error(derr))
	}

	if c.opts.trace != "" {
		trace, err := source.LoadFile(c.opts.trace)
		if err != nil {
			return nil, err
		}
		c.trace = trace
		eng.SetSource(trace, trace.Variables())
	} else if needTrace {
		return nil, errors.InvalidInput(errors.PhaseTrace, "--trace is required")
	}

	if c.opts.session != "" {
		if err := eng.LoadSession(c.opts.session); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

func (c *cli) saveSession() error {
	if c.opts.session == "" || c.engine == nil {
		return nil
	}
	return c.engine.SaveSession(c.opts.session)
}

func (c *cli) close(ctx context.Context) {
	if c.engine != nil {
		if err := c.engine.Close(ctx); err != nil && c.logger != nil {
			c.logger.Warn("closing engine", zap.Error(err))
		}
		c.engine = nil
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

// colorEnabled reports whether w should receive styled output.
func (c *cli) colorEnabled(w io.Writer) bool {
	switch c.opts.color {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
