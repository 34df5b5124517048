package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/antsid/app"
	"github.com/kilianp07/antsid/config"
	"github.com/kilianp07/antsid/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "antsid",
	Short: "Calibrate the Antarctic solid ice discharge model against a reference ensemble",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	rep, err := svc.Calibrate(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d/%d members fitted in %s (max volume %g)\n",
		rep.Run.ID, len(rep.Run.Fitted()), len(rep.Run.Results), rep.Run.Duration, rep.MaxVolume)
	for _, f := range rep.Files {
		fmt.Fprintln(out, f)
	}
	return nil
}
