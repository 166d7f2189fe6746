package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/koinos-go/chain/pkg/config"
)

var log = logrus.WithField("component", "chaind")

func main() {
	root := &cobra.Command{Use: "chaind", Short: "chain core daemon"}
	root.AddCommand(runCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var debugAddr string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the chain daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(debugAddr)
		},
	}
	cmd.Flags().StringVar(&debugAddr, "debug-addr", ":8080", "listen address for the read-only debug HTTP surface")
	return cmd
}

func run(debugAddr string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if lvl, parseErr := logrus.ParseLevel(cfg.Logging.Level); parseErr == nil {
		logrus.SetLevel(lvl)
	}

	n, err := buildNode(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = n.backend.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	srv := debugServer(debugAddr, n)
	go func() {
		log.WithField("addr", debugAddr).Info("debug http surface listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("debug http surface stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, draining in-flight work")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
