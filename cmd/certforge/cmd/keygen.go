package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/certforge/certforge/issuer"
)

var (
	keygenOut        string
	keygenPassphrase string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new issuer identity keyfile",
	Long: `Generates an Ed25519 issuer identity and writes it to an encrypted
keyfile. The identity signs publication announcements; certificate payload
signatures do not depend on it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase := keygenPassphrase
		if passphrase == "" {
			passphrase = os.Getenv("CERTFORGE_ISSUER_PASSPHRASE")
		}
		if passphrase == "" {
			return fmt.Errorf("a passphrase is required (--passphrase or CERTFORGE_ISSUER_PASSPHRASE)")
		}
		if _, err := os.Stat(keygenOut); err == nil {
			return fmt.Errorf("refusing to overwrite existing keyfile %s", keygenOut)
		}

		identity, err := issuer.NewIdentity()
		if err != nil {
			return fmt.Errorf("generating issuer identity: %w", err)
		}
		if err := identity.Save(keygenOut, passphrase); err != nil {
			return err
		}

		fmt.Printf("Issuer keyfile written to %s\n", keygenOut)
		fmt.Printf("Public key: %s\n", identity.PublicKeyHex())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keygenOut, "out", "o", "issuer.key", "Output keyfile path")
	keygenCmd.Flags().StringVar(&keygenPassphrase, "passphrase", "", "Passphrase protecting the keyfile")
}
