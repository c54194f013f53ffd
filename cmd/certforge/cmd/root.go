package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "certforge",
	Short: "CertForge is a certificate integrity and verification engine",
	Long: `Issue tamper-evident course certificates, bind rendered document hashes,
revoke, broadcast announcements, and answer public verification queries.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
