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

	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/rolebook/internal/handlers"
	"github.com/mesh-intelligence/rolebook/internal/log"
	"github.com/mesh-intelligence/rolebook/pkg/types"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve keeps the store attached and exposes the users, claim roles and
role entitlements over HTTP under /api. It stops on SIGINT or SIGTERM.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.GetString(cfgKeyServerAddr)
			}
			origins := a.cfg.GetStringSlice(cfgKeyCORSOrigins)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.withStore(func(store types.Store) error {
				srv, err := newServer(store, addr, origins)
				if err != nil {
					return err
				}
				lis, err := net.Listen("tcp", addr)
				if err != nil {
					return fmt.Errorf("listen on %s: %w", addr, err)
				}
				return serve(ctx, srv, lis)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr, "+defaultServerAddr+")")
	return cmd
}

// newServer wraps the API router with CORS handling for origins. An empty
// origins list lets rs/cors accept any origin.
func newServer(store types.Store, addr string, origins []string) (*http.Server, error) {
	router, err := handlers.NewRouter(store)
	if err != nil {
		return nil, err
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
	})
	return &http.Server{
		Addr:         addr,
		Handler:      c.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, nil
}

// serve runs srv on lis until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, lis net.Listener) error {
	logger := log.Get().WithField("addr", lis.Addr().String())
	errc := make(chan error, 1)
	go func() {
		logger.Info("serving")
		errc <- srv.Serve(lis)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.WithFields(logrus.Fields{"timeout": shutdownTimeout}).Debug("server stopped")
	return nil
}
