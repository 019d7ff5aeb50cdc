package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/pensionledger/internal/httpapi"
)

// ShutdownTimeout bounds how long serve waits for in-flight requests.
const ShutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Seed bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST relay",
		Long: `Serve the pension ledger over HTTP.

Routes:
  GET    /pensions                  list live records
  POST   /pensions                  create
  GET    /pensions/{id}             read
  PUT    /pensions/{id}             update
  DELETE /pensions/{id}             delete
  POST   /pensions/{id}/contribute  {"amount": ...}
  POST   /pensions/{id}/withdraw    {"amount": ...}
  GET    /pensions/{id}/history     full history
  GET    /pensions/{id}/audit       chain audit
  GET    /healthz, /metrics

Example:
  pledger serve --db ./ledger.db --listen :3001 --seed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, opts)
		},
	}

	cmd.Flags().String("listen", ":3001", "HTTP listen address")
	cmd.Flags().BoolVar(&opts.Seed, "seed", false, "seed the initial pensions before serving")
	_ = rootOpts.viper.BindPFlag("listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func serve(cmd *cobra.Command, opts *ServeOptions) error {
	logger := opts.Logger

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	l, err := openLedger(ctx, opts.RootOptions, reg)
	if err != nil {
		return err
	}
	defer l.close()

	if opts.Seed {
		receipts, err := l.engine.Seed(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to seed ledger", err)
		}
		logger.Info("ledger seeded", "created", len(receipts))
	}

	ln, err := net.Listen("tcp", opts.Config.Listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	if opts.RootOptions.onListen != nil {
		opts.RootOptions.onListen(ln.Addr())
	}

	srv := &http.Server{
		Handler:           httpapi.NewRouter(httpapi.New(l.engine, logger), reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("relay listening", "addr", ln.Addr().String(), "db", opts.Config.DB, "lock", opts.Config.Lock.Backend)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down relay")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "relay error", err)
	}
	logger.Info("relay stopped gracefully")
	return nil
}
