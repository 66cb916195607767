package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cloudchase/ota-distribution/catalog"
)

var listRoot string

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List archives in the catalog",
	Long:    "List every .ipa archive under the catalog directory with its bundle metadata.",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	listCmd.Flags().StringVar(&listRoot, "root", "static", "Catalog directory")
}

func runList(cmd *cobra.Command, _ []string) error {
	entries, err := catalog.New(listRoot).Entries()
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	return printEntries(cmd.OutOrStdout(), entries)
}

func printEntries(out io.Writer, entries []catalog.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No archives found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tNAME\tIDENTIFIER\tVERSION\tSIZE\tMODIFIED")
	for _, e := range entries {
		name, id, version := "-", "-", "-"
		if e.OK() {
			name = orDash(e.Bundle.Name)
			id = orDash(e.Bundle.Identifier)
			version = orDash(e.Bundle.Version)
		} else {
			name = "(unreadable)"
		}
		modified := "-"
		if !e.Modified.IsZero() {
			modified = e.Modified.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Rel, name, id, version, formatSize(e.Size), modified)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, e := range entries {
		if !e.OK() && e.Err != nil {
			fmt.Fprintf(out, "%s: %v\n", e.Rel, e.Err)
		}
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
