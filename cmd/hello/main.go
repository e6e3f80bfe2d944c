package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/AnatoleLucet/live"
	"github.com/AnatoleLucet/live/config"
	"github.com/AnatoleLucet/live/refresh"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	text       string
	delay      time.Duration
	logLevel   string
	logFile    string
	once       bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "hello",
		Short: "Fetch a greeting with a loading indicator and a one-shot toast",
		Long: `hello shows a single screen bound to a refresh workflow.

Keys:
  r  refresh
  b  send the screen to the background and back
  c  recreate the screen, as after a configuration change
  q  quit`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			logger, closeLog, err := newLogger(cfg.Log.Level, opts.logFile)
			if err != nil {
				return err
			}
			defer closeLog()
			live.SetLogger(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if opts.once {
				return runOnce(ctx, cfg, logger, cmd.OutOrStdout())
			}
			return runScreen(ctx, cfg, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a TOML or YAML config file")
	flags.StringVar(&opts.text, "text", "", "text returned by the fetch")
	flags.DurationVar(&opts.delay, "delay", 0, "simulated fetch latency")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of discarding them")
	flags.BoolVar(&opts.once, "once", false, "refresh once, print the results and exit")

	return cmd
}

// loadConfig reads the config file and env, then lets explicit flags win.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("text") {
		cfg.Fetch.Text = opts.text
	}
	if flags.Changed("delay") {
		cfg.Fetch.Delay = config.Duration{Duration: opts.delay}
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(level, path string) (zerolog.Logger, func() error, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	if path == "" {
		return zerolog.Nop(), func() error { return nil }, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}

	logger := zerolog.New(f).With().Timestamp().Logger().Level(lvl)
	return logger, f.Close, nil
}

func newWorkflow(cfg *config.Config, looper *live.Looper, logger zerolog.Logger) *refresh.Workflow {
	opts := []refresh.Option{
		refresh.WithCompleteMessage(cfg.Toast.Message),
		refresh.WithLogger(logger.With().Str("component", "refresh").Logger()),
	}
	if cfg.Refresh.SkipWhileLoading {
		opts = append(opts, refresh.WithSkipWhileLoading())
	}

	return refresh.New(refresh.NewDelayedFetcher(looper, cfg.Fetch.Text, cfg.Fetch.Delay.Duration), opts...)
}

// runOnce performs a single refresh and prints each change as a line.
func runOnce(ctx context.Context, cfg *config.Config, logger zerolog.Logger, out io.Writer) error {
	looper := live.MainLooper()
	defer live.ReleaseMainLooper()

	wf := newWorkflow(cfg, looper, logger)
	defer wf.Close()

	wf.Loading().Subscribe(live.Forever, func(loading bool) {
		fmt.Fprintf(out, "loading: %v\n", loading)
	})
	wf.Data().Subscribe(live.Forever, func(data string) {
		fmt.Fprintf(out, "data: %s\n", data)
	})
	wf.Toast().Subscribe(live.Forever, func(msg string) {
		fmt.Fprintf(out, "toast: %s\n", msg)
	})

	wf.Refresh()

	if err := looper.RunUntilIdle(ctx); err != nil {
		return fmt.Errorf("refresh interrupted: %w", err)
	}
	return nil
}
