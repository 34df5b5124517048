package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/antsid/app"
	"github.com/kilianp07/antsid/config"
	"github.com/kilianp07/antsid/infra/store"
	"github.com/kilianp07/antsid/pkg/export"
)

var resultsOpts struct {
	run    string
	format string
	list   bool
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show stored parameter ensembles",
	RunE:  runResults,
}

func init() {
	f := resultsCmd.Flags()
	f.StringVar(&resultsOpts.run, "run", "", "run ID (defaults to the latest run)")
	f.StringVar(&resultsOpts.format, "format", "csv", "csv or json")
	f.BoolVar(&resultsOpts.list, "list", false, "list stored runs instead")
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if resultsOpts.list {
		runs, err := svc.Runs(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tMEMBERS\tFITTED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", r.ID, r.Started.Format("2006-01-02 15:04:05"), r.Duration, r.Members, r.Fitted)
		}
		return tw.Flush()
	}

	_, recs, err := svc.Results(ctx, resultsOpts.run)
	if err != nil {
		return err
	}
	rows := rowsFromRecords(recs)
	switch resultsOpts.format {
	case "json":
		return export.WriteParamsJSON(out, rows)
	case "csv":
		return export.WriteParamsCSV(out, rows)
	default:
		return fmt.Errorf("unknown format %q", resultsOpts.format)
	}
}

func rowsFromRecords(recs []store.Record) []export.ParamRow {
	rows := make([]export.ParamRow, len(recs))
	for i, r := range recs {
		rows[i] = export.ParamRow{
			Member:      r.Member,
			Params:      r.Params,
			Objective:   r.Objective,
			Evaluations: r.Evaluations,
			Iterations:  r.Iterations,
			Status:      r.Status,
			Error:       r.Error,
		}
	}
	return rows
}
