package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ota",
	Short: "OTA distribution - over-the-air iOS app installs",
	Long: `Serve a directory of .ipa archives so that iOS devices can install them
over the air through itms-services links.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(auditCmd)
}
