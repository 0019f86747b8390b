package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/caffeineduck/scriptexec/logger"
	"github.com/caffeineduck/scriptexec/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for script execution",
		Long: `Start an HTTP server that validates and runs submitted scripts.

Endpoints (paths from EXECUTE and PARAMS):
  POST   /scripts   Execute: JSON {script, parameters, url} or multipart file
  POST   /params    Call custom: JSON {script, parameters, url}
  GET    /health    Health check
  GET    /metrics   Prometheus metrics

Every failure is answered with 500 and {"error": message}.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().IntP("port", "P", 8080, "Port to listen on")
	cmd.Flags().Int64("max-request-size", server.DefaultMaxRequestSize, "Max request body size on the execute endpoints")
	addEngineFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := configFromFlags(cmd)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.log)
	if err != nil {
		return err
	}
	defer log.Sync()

	port, _ := cmd.Flags().GetInt("port")
	maxRequest, _ := cmd.Flags().GetInt64("max-request-size")

	r, err := buildRunner(cmd, log)
	if err != nil {
		return err
	}
	defer r.Close()

	srv := server.New(buildDispatcher(cmd, cfg, r, log),
		server.WithExecutePath(cfg.executePath),
		server.WithParamsPath(cfg.paramsPath),
		server.WithMaxRequestSize(maxRequest),
		server.WithLogger(log),
	)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: srv.Handler(),
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
