package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hrm8/assistant/internal/audit"
)

var (
	auditPerformedBy string
	auditTool        string
	auditSince       time.Duration
	auditLimit       int
	auditOlderThan   int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query, verify and purge the tool execution audit log",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit entries, newest first",
	RunE:  auditList,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [entry-id]",
	Short: "Verify the HMAC signature of an audit entry",
	Args:  cobra.ExactArgs(1),
	RunE:  auditVerify,
}

var auditPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete audit entries older than the retention window",
	RunE:  auditPurge,
}

func init() {
	auditListCmd.Flags().StringVar(&auditPerformedBy, "user", "", "Filter by performing user ID")
	auditListCmd.Flags().StringVar(&auditTool, "tool", "", "Filter by tool name")
	auditListCmd.Flags().DurationVar(&auditSince, "since", 0, "Only entries newer than this (e.g. 24h)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 20, "Maximum records to show")
	auditPurgeCmd.Flags().IntVar(&auditOlderThan, "older-than-days", 0, "Override audit_retention_days")

	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditPurgeCmd)
	rootCmd.AddCommand(auditCmd)
}

func auditList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openAuditStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	f := audit.ListFilter{PerformedBy: auditPerformedBy, ToolName: auditTool, Limit: auditLimit}
	if auditSince > 0 {
		f.From = time.Now().Add(-auditSince)
	}
	entries, err := st.List(ctx, f)
	if err != nil {
		return fmt.Errorf("querying audit log: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No audit entries found.")
		return nil
	}
	renderAuditList(cmd.OutOrStdout(), entries)
	return nil
}

func auditVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	id := args[0]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openAuditStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	valid, err := st.Verify(ctx, id)
	if err != nil {
		return fmt.Errorf("verifying audit entry: %w", err)
	}
	renderVerifyResult(cmd.OutOrStdout(), id, valid)
	if !valid {
		return fmt.Errorf("signature verification failed for %s", id)
	}
	return nil
}

func auditPurge(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	days := cfg.AuditRetentionDays
	if auditOlderThan > 0 {
		days = auditOlderThan
	}
	st, err := openAuditStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	r, err := audit.NewRetention(st, days, "")
	if err != nil {
		return err
	}
	n, err := r.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("purging audit log: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Purged %d audit entries older than %d days\n", n, days)
	return nil
}

// renderAuditList writes one line per entry to w.
func renderAuditList(w io.Writer, entries []audit.Entry) {
	fmt.Fprintf(w, "Audit Entries (showing %d):\n\n", len(entries))
	for i := range entries {
		e := &entries[i]
		status := "✓"
		if !e.Changes.Success {
			status = "✗"
		}
		fmt.Fprintf(w, "  %s %s | %s | %s | %s (%s) | %s\n",
			status,
			e.ID,
			e.Changes.Timestamp.Format("2006-01-02 15:04:05"),
			e.Changes.ToolName,
			e.PerformedBy,
			e.PerformedByRole,
			e.Changes.Sensitivity,
		)
	}
}

// renderVerifyResult writes the verify outcome to w.
func renderVerifyResult(w io.Writer, id string, valid bool) {
	if valid {
		fmt.Fprintf(w, "✓ Audit entry %s: signature VALID (HMAC-SHA256 intact)\n", id)
	} else {
		fmt.Fprintf(w, "✗ Audit entry %s: signature INVALID (possible tampering)\n", id)
	}
}
