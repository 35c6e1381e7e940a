package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"ibk-go/internal/ibk"
)

func printSummary(w io.Writer, s *ibk.Summary) {
	if s.ManifestWarning != "" {
		fmt.Fprintf(w, "warning: %s\n", s.ManifestWarning)
	}
	if s.DryRun {
		for _, p := range s.Planned {
			fmt.Fprintf(w, "would copy %s (%s)\n", p.RelativePath, p.Reason)
		}
	}
	for _, f := range s.Failures {
		fmt.Fprintf(w, "failed %s: %s\n", f.RelativePath, f.Reason)
	}

	verb := "copied"
	if s.DryRun {
		verb = "to copy"
	}
	fmt.Fprintf(w, "%d %s, %d skipped, %d failed, %d excluded, %d removed (%s, %s)\n",
		s.Copied, verb, s.Skipped, s.Failed, s.Excluded, s.Removed,
		formatBytes(s.BytesCopied), s.Duration.Round(time.Millisecond))
}

func printReport(w io.Writer, r *ibk.VerificationReport, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range r.Files {
		if f.Status == ibk.VerifyOK {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Status, f.RelativePath, f.Detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d ok, %d missing, %d mismatched, %d unreadable\n",
		r.OK, r.Missing, r.Mismatched, r.Unreadable)
	return err
}

func printRestore(w io.Writer, s *ibk.RestoreSummary) {
	for _, f := range s.Failures {
		fmt.Fprintf(w, "failed %s: %s\n", f.RelativePath, f.Reason)
	}
	fmt.Fprintf(w, "%d restored, %d failed (%s)\n", s.Restored, s.Failed, formatBytes(s.BytesRestored))
}

func printHistory(w io.Writer, ops []ibk.Operation) {
	if len(ops) == 0 {
		fmt.Fprintln(w, "No operations recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTARTED\tDURATION\tSTATUS\tFAILURES\tPARAMETERS")
	for _, op := range ops {
		duration := "-"
		if op.Finished() {
			duration = op.FinishedAt.Sub(op.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			op.ID, op.Kind, op.StartedAt.Local().Format(time.DateTime), duration, op.Status, op.Failures, op.Parameters)
	}
	tw.Flush()
}

func printFailures(w io.Writer, failures []ibk.Failure) {
	if len(failures) == 0 {
		fmt.Fprintln(w, "No failures recorded.")
		return
	}
	for _, f := range failures {
		fmt.Fprintf(w, "%s: %s\n", f.RelativePath, f.Reason)
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
