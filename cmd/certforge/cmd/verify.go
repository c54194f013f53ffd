package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/certforge/certforge/certificate"
)

var (
	verifyDocument   string
	verifyJSONOutput bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify [id-or-hash]",
	Short: "Verify a certificate",
	Long: `Verifies a certificate against the local store. The argument is a
certificate ID (e.g. BD-2025-AB12CD) or a document content hash; with
--document, the hash is computed from the given file instead.

Exit status is 0 for an authentic certificate and 1 otherwise.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && verifyDocument == "" {
			return fmt.Errorf("an ID, a hash, or --document is required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(true)
		registry, closeRepo, err := newRegistry(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeRepo()

		var result *certificate.VerifyResult
		switch {
		case verifyDocument != "":
			doc, err := os.ReadFile(verifyDocument)
			if err != nil {
				return fmt.Errorf("reading document: %w", err)
			}
			result, err = registry.VerifyByDocument(cmd.Context(), doc)
			if err != nil {
				return err
			}
		case certificate.ValidID(args[0]):
			result, err = registry.VerifyByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
		default:
			result, err = registry.VerifyByHash(cmd.Context(), args[0])
			if err != nil {
				return err
			}
		}

		if verifyJSONOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
		} else if result.Valid {
			fmt.Printf("VALID: %s\n", result.Reason)
			if result.Record != nil {
				fmt.Printf("  %s  %s / %s\n", result.Record.ID, result.Record.SubjectName, result.Record.CourseTitle)
			}
		} else {
			fmt.Printf("INVALID: %s\n", result.Reason)
		}

		if !result.Valid {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVar(&verifyDocument, "document", "", "Verify a rendered document file by its content hash")
	verifyCmd.Flags().BoolVar(&verifyJSONOutput, "json", false, "Output the result as JSON")
}
