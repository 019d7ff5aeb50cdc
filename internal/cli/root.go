package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/pensionledger/internal/config"
	"github.com/roach88/pensionledger/internal/engine"
	"github.com/roach88/pensionledger/internal/ir"
	"github.com/roach88/pensionledger/internal/lock"
	"github.com/roach88/pensionledger/internal/metrics"
	"github.com/roach88/pensionledger/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Config is resolved in PersistentPreRunE from defaults, the config
	// file, PLEDGER_* variables and flags.
	Config config.Config
	Logger *slog.Logger

	viper *viper.Viper

	// onListen is called with serve's bound address (for testing with port 0).
	onListen func(net.Addr)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the pledger CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	opts.viper = config.New()

	cmd := &cobra.Command{
		Use:   "pledger",
		Short: "pledger - hash-chained pension ledger",
		Long: `A pension record ledger in which every mutation appends a
cryptographically linked history entry, and any record's chain can be
re-derived and audited at any time.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := config.Load(opts.viper, opts.ConfigFile)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			if opts.Verbose {
				cfg.Log.Level = "debug"
			}
			opts.Config = cfg
			opts.Logger = newLogger(cmd.ErrOrStderr(), cfg.Log)
			slog.SetDefault(opts.Logger)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigFile, "config", "", "path to YAML config file")
	flags.String("db", "pledger.db", "path to SQLite database")
	flags.String("log-format", "text", "log format (text|json)")
	_ = opts.viper.BindPFlag("db", flags.Lookup("db"))
	_ = opts.viper.BindPFlag("log.format", flags.Lookup("log-format"))

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewReadCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewContributeCommand(opts))
	cmd.AddCommand(NewWithdrawCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// ledger is an opened store plus the engine over it.
type ledger struct {
	store  *store.Store
	engine *engine.Engine
	close  func()
}

// openLedger opens the configured database and builds an engine with the
// configured lock backend. reg may be nil.
func openLedger(ctx context.Context, opts *RootOptions, reg prometheus.Registerer) (*ledger, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	logger.Debug("opening database", "path", opts.Config.DB)
	st, err := store.Open(opts.Config.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	closers := []func(){func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing database", "error", err)
		}
	}}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if reg != nil {
		engineOpts = append(engineOpts, engine.WithMetrics(metrics.New(reg)))
	}

	if opts.Config.Lock.Backend == config.LockRedis {
		client, err := lock.NewRedisClient(ctx, opts.Config.Redis.URL)
		if err != nil {
			closeAll()
			return nil, WrapExitError(ExitCommandError, "failed to connect to redis", err)
		}
		closers = append(closers, func() { client.Close() })
		engineOpts = append(engineOpts, engine.WithLocker(lock.NewRedisLocker(client,
			lock.WithTTL(opts.Config.Lock.TTL),
			lock.WithRetry(opts.Config.Lock.Retry),
			lock.WithLogger(logger),
		)))
		logger.Debug("using redis lock", "ttl", opts.Config.Lock.TTL)
	}

	return &ledger{
		store:  st,
		engine: engine.New(st, engineOpts...),
		close:  closeAll,
	}, nil
}

// rejected converts an engine error into an exit error. Ledger rejections
// (NotFound, InvalidAmount, ...) exit 1; storage failures exit 2.
func rejected(out *OutputFormatter, err error) error {
	code := ir.CodeOf(err)
	if code == "" {
		return WrapExitError(ExitCommandError, "ledger error", err)
	}
	_ = out.Error(string(code), err.Error(), nil)
	return reportedExit(ExitFailure, "transaction rejected", err)
}
