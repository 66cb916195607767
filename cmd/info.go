package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cloudchase/ota-distribution/ipa"
	"github.com/cloudchase/ota-distribution/manifest"
)

var infoCmd = &cobra.Command{
	Use:   "info <archive.ipa>",
	Short: "Show archive information",
	Long:  "Display the bundle metadata read from an archive's Info.plist.",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	a, err := ipa.Inspect(args[0])
	if err != nil {
		return fmt.Errorf("inspect %s: %w", args[0], err)
	}
	printArchive(cmd.OutOrStdout(), a)
	return nil
}

func printArchive(out io.Writer, a *ipa.Archive) {
	b := a.Bundle
	fmt.Fprintf(out, "Path:          %s\n", a.Path)
	fmt.Fprintf(out, "Size:          %s\n", formatSize(a.Size))
	fmt.Fprintf(out, "Modified:      %s\n", manifest.FormatTime(a.Modified))
	fmt.Fprintf(out, "Bundle:        %s\n", b.Dir)
	fmt.Fprintf(out, "Identifier:    %s\n", b.Identifier)
	fmt.Fprintf(out, "Name:          %s\n", b.Name)
	fmt.Fprintf(out, "Version:       %s\n", b.Version)
	if b.ShortVersion != "" {
		fmt.Fprintf(out, "Short version: %s\n", b.ShortVersion)
	}
	if b.DisplayName != "" {
		fmt.Fprintf(out, "Display name:  %s\n", b.DisplayName)
	}
	if b.MinimumOSVersion != "" {
		fmt.Fprintf(out, "Minimum iOS:   %s\n", b.MinimumOSVersion)
	}
}
