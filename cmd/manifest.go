package cmd

import (
	"fmt"
	"io"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/cloudchase/ota-distribution/ipa"
	"github.com/cloudchase/ota-distribution/manifest"
)

var (
	manifestURL    string
	manifestFormat string
)

var manifestCmd = &cobra.Command{
	Use:   "manifest <archive.ipa>",
	Short: "Print the installer manifest for an archive",
	Long: `Print the installer manifest for an archive that will be served at --url.
The result can be published next to the archive on any static file host.`,
	Args: cobra.ExactArgs(1),
	RunE: runManifest,
}

func init() {
	manifestCmd.Flags().StringVar(&manifestURL, "url", "", "Absolute URL the archive is served at")
	manifestCmd.Flags().StringVar(&manifestFormat, "format", "xml", "Manifest encoding: xml or binary")
	_ = manifestCmd.MarkFlagRequired("url")
}

func runManifest(cmd *cobra.Command, args []string) error {
	return writeManifest(cmd.OutOrStdout(), args[0], manifestURL, manifestFormat)
}

func writeManifest(out io.Writer, path, archiveURL, format string) error {
	u, err := url.Parse(archiveURL)
	if err != nil {
		return fmt.Errorf("archive url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("archive url %q must be absolute", archiveURL)
	}
	f, err := manifest.ParseFormat(format)
	if err != nil {
		return err
	}

	a, err := ipa.Inspect(path)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", path, err)
	}
	return manifest.Encode(out, manifest.Build(a.Bundle, u.String(), a.Modified), f)
}
