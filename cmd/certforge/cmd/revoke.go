package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certforge/certforge/certificate"
)

var revokeCmd = &cobra.Command{
	Use:   "revoke [id]",
	Short: "Revoke a certificate",
	Long: `Marks the certificate as revoked. The transition is permanent; there
is no un-revoke. Revoking an already-revoked certificate is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if !certificate.ValidID(id) {
			return fmt.Errorf("%s is not a valid certificate ID", id)
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

		changed, err := registry.Revoke(cmd.Context(), id)
		if err != nil {
			return err
		}
		if changed {
			fmt.Printf("Certificate %s revoked\n", id)
		} else {
			fmt.Printf("Certificate %s was already revoked\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(revokeCmd)
}
