package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/antsid/api/runs"
	"github.com/kilianp07/antsid/config"
	"github.com/kilianp07/antsid/infra/logger"
	"github.com/kilianp07/antsid/infra/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored calibration runs over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("store.path is required to serve results")
	}
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	log := logger.New("api")
	srv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           runs.NewHandler(st, cfg.API.Token),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("api shutdown: %v", err)
		}
	}()
	log.Infof("serving runs on %s", cfg.API.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
