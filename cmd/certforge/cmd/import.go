package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/certforge/certforge/batch"
	"github.com/certforge/certforge/issuer"
	"github.com/certforge/certforge/publish"
)

var (
	importPublish    bool
	importJSONOutput bool
)

var importCmd = &cobra.Command{
	Use:   "import [csv-file]",
	Short: "Issue certificates from a CSV roster",
	Long: `Reads a CSV roster (columns: name, email, course, cohort, class, date)
and runs each row through the issuance pipeline: validate, mint, sign,
render, and bind the document hash. Failing rows are reported and never
abort the batch.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening roster: %w", err)
		}
		defer f.Close()

		rows, err := batch.ParseCSV(f)
		if err != nil {
			return fmt.Errorf("parsing roster: %w", err)
		}

		logger := newLogger(importJSONOutput)
		registry, closeRepo, err := newRegistry(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeRepo()

		renderer, err := newRenderer(cfg)
		if err != nil {
			return err
		}

		opts := []batch.Option{batch.WithLogger(logger)}
		if importPublish {
			if cfg.KeyFile == "" || len(cfg.Endpoints) == 0 {
				return fmt.Errorf("--publish requires an issuer keyfile and publish endpoints")
			}
			identity, err := issuer.Load(cfg.KeyFile, cfg.KeyPassphrase)
			if err != nil {
				return fmt.Errorf("loading issuer identity: %w", err)
			}
			broadcaster := publish.NewBroadcaster(registry, identity, cfg.Origin,
				cfg.publishEndpoints(), publish.WithLogger(logger))
			opts = append(opts, batch.WithPublisher(broadcaster))
		}

		report, runErr := batch.New(registry, renderer, opts...).Run(cmd.Context(), rows)

		if importJSONOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			printReport(report)
		}
		if runErr != nil {
			return fmt.Errorf("batch interrupted: %w", runErr)
		}
		if report.Failed > 0 {
			os.Exit(1)
		}
		return nil
	},
}

func printReport(report *batch.Report) {
	fmt.Printf("Batch %s: %d total, %d succeeded, %d failed\n\n",
		report.BatchID, report.Total, report.Succeeded, report.Failed)
	for _, row := range report.Rows {
		if row.Succeeded() {
			fmt.Printf("[ OK ] row %d: %s (hash %s)\n", row.Index, row.CertificateID, row.DocumentHash)
			continue
		}
		fmt.Printf("[FAIL] row %d at %s: %s\n", row.Index, row.Stage, row.Err)
	}
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().BoolVar(&importPublish, "publish", false, "Broadcast an announcement per issued certificate")
	importCmd.Flags().BoolVar(&importJSONOutput, "json", false, "Output the report as JSON")
}
