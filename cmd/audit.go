package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudchase/ota-distribution/audit"
)

var (
	auditDB    string
	auditLimit int
	auditPath  string
	auditPrune time.Duration
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recorded downloads",
	Long: `Show the most recent manifest and archive downloads recorded by
'ota serve --audit-db'. With --prune, events older than the given duration
are deleted first.`,
	Args:  cobra.NoArgs,
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditDB, "audit-db", "ota-audit.db", "SQLite audit database")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "Maximum number of events to show")
	auditCmd.Flags().StringVar(&auditPath, "path", "", "Only show events for this catalog path")
	auditCmd.Flags().DurationVar(&auditPrune, "prune", 0, "Delete events older than this duration (e.g. 720h) before listing")
}

func runAudit(cmd *cobra.Command, _ []string) error {
	l, err := audit.Open(auditDB)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer l.Close()

	out := cmd.OutOrStdout()
	if auditPrune > 0 {
		if err := pruneEvents(out, l, auditPrune); err != nil {
			return err
		}
	}

	var events []audit.Event
	if auditPath != "" {
		events, err = l.EventsByPath(auditPath, auditLimit)
	} else {
		events, err = l.RecentEvents(auditLimit)
	}
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}
	return printEvents(out, events)
}

func pruneEvents(out io.Writer, l *audit.Logger, olderThan time.Duration) error {
	n, err := l.DeleteOldEvents(olderThan)
	if err != nil {
		return fmt.Errorf("prune audit log: %w", err)
	}
	fmt.Fprintf(out, "Pruned %d events older than %s.\n", n, olderThan)
	return nil
}

func printEvents(out io.Writer, events []audit.Event) error {
	if len(events) == 0 {
		fmt.Fprintln(out, "No downloads recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tPATH\tIDENTIFIER\tVERSION\tREMOTE")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Time().UTC().Format("2006-01-02 15:04:05"),
			e.EventType, e.Path, orDash(e.BundleIdentifier), orDash(e.BundleVersion), orDash(e.RemoteAddr))
	}
	return w.Flush()
}
