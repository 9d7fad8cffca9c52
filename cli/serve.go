package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quill/app/auth"
	"quill/app/routes"
	"quill/app/services"
	"quill/app/views"

	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the blog web server",
		Long: `Run the blog web server until interrupted.

Examples:
  quill serve                      # listen on server.addr
  quill serve --addr 127.0.0.1:3000
  QUILL_STORAGE_DRIVER=postgres QUILL_STORAGE_POSTGRES_URL=postgres://... quill serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", a.cfg.Server.Addr)
			if err != nil {
				return err
			}
			return a.serve(ctx, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

// serve answers requests on ln until ctx is cancelled, then drains in-flight
// requests for at most server.shutdown_timeout.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	if err := a.cfg.Validate(); err != nil {
		ln.Close()
		return err
	}

	store, err := openStore(ctx, a.cfg, a.log)
	if err != nil {
		ln.Close()
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.log.Error("failed to close store", "error", err)
		}
	}()

	tokens, err := auth.NewTokens(a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenTTL)
	if err != nil {
		ln.Close()
		return err
	}
	v, err := views.New()
	if err != nil {
		ln.Close()
		return err
	}

	srv := &http.Server{
		Handler: routes.SetupRoutes(services.New(store, tokens), v, routes.Options{
			Logger:            a.log,
			CommentsPerMinute: a.cfg.Comments.RatePerMinute,
			CommentBurst:      a.cfg.Comments.Burst,
		}),
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("starting quill", "addr", ln.Addr().String(), "version", Version)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down", "timeout", a.cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
