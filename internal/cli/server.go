package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recruitment-portal/internal/scheduler"
	transport "recruitment-portal/internal/transport/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the portal HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	rt, err := loadRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.Close()
	log := rt.log

	if rt.sessions == nil {
		return errors.New("auth.jwt_secret is required to serve")
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = rt.cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	refresher, err := scheduler.New(rt.cfg.Timers.RefreshSchedule, rt.countdowns, log.Named("scheduler"))
	if err != nil {
		return err
	}
	refresher.RunOnce(ctx)
	refresher.Start()

	handler := transport.NewHandler(transport.Deps{
		Accounts:   rt.accounts,
		Attempts:   rt.attempts,
		Gate:       rt.gate,
		Countdowns: rt.countdowns,
		Admin:      rt.admin,
		Admins:     rt.admins,
		Auth:       rt.sessions,
		Logger:     log.Named("http"),
	})

	// Websocket streams are long lived, so only header reads are bounded.
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting portal", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	refresher.Stop(shutdownCtx)
	err = server.Shutdown(shutdownCtx)
	rt.attempts.Abandon()
	return err
}
