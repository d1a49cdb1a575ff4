package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"treegift/internal/journal"
)

func newJournalCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the submission journal",
	}
	cmd.AddCommand(newJournalListCommand(ctx))
	cmd.AddCommand(newJournalShowCommand(ctx))
	return cmd
}

func newJournalListCommand(ctx *commandContext) *cobra.Command {
	var requestID string
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent submission attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openJournal()
			if err != nil {
				return err
			}
			defer store.Close()

			attempts, err := store.ListAttempts(cmd.Context(), requestID, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, attempts)
			}
			out := cmd.OutOrStdout()
			if len(attempts) == 0 {
				fmt.Fprintln(out, "No submissions recorded")
				return nil
			}
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(attempts))
			for _, a := range attempts {
				rows = append(rows, []string{
					strconv.FormatInt(a.ID, 10),
					a.StartedAt.Local().Format("2006-01-02 15:04"),
					a.RequestID,
					a.RequestType,
					strconv.Itoa(a.TreeCount),
					attemptStatus(a, colorize),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Started", "Request", "Type", "Trees", "Status"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&requestID, "request", "", "Only show attempts for this request id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum attempts to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newJournalShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one submission attempt and its stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid attempt id %q", args[0])
			}
			store, err := ctx.openJournal()
			if err != nil {
				return err
			}
			defer store.Close()

			attempt, err := store.Attempt(cmd.Context(), id)
			if err != nil {
				return err
			}
			if attempt == nil {
				return fmt.Errorf("attempt %d not found", id)
			}
			steps, err := store.Steps(cmd.Context(), id)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, struct {
					Attempt *journal.Attempt     `json:"attempt"`
					Steps   []journal.StepRecord `json:"steps"`
				}{attempt, steps})
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader(fmt.Sprintf("Attempt %d", attempt.ID), colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Request", statusInfo, attempt.RequestID, colorize))
			if attempt.GiftRequestID != 0 {
				fmt.Fprintln(out, renderStatusLine("Gift request", statusInfo, strconv.FormatInt(attempt.GiftRequestID, 10), colorize))
			}
			if attempt.UserEmail != "" {
				fmt.Fprintln(out, renderStatusLine("User", statusInfo, attempt.UserEmail, colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Trees", statusInfo, fmt.Sprintf("%d across %d recipients", attempt.TreeCount, attempt.RecipientCount), colorize))
			kind, message := attemptKind(*attempt)
			fmt.Fprintln(out, renderStatusLine("Status", kind, message, colorize))
			if d := attempt.Duration(); d > 0 {
				fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, d.Round(time.Millisecond).String(), colorize))
			}

			if len(steps) > 0 {
				fmt.Fprintln(out)
				rows := make([][]string, 0, len(steps))
				for _, s := range steps {
					rows = append(rows, []string{s.Step, stepStatus(s.Status, colorize), s.Detail})
				}
				fmt.Fprintln(out, renderTable([]string{"Stage", "Result", "Detail"}, rows, nil))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func attemptKind(a journal.Attempt) (statusKind, string) {
	switch a.Status {
	case journal.StatusCompleted:
		return statusOK, "completed"
	case journal.StatusFailed:
		msg := "failed"
		if a.ErrorKind != "" {
			msg += " (" + a.ErrorKind + ")"
		}
		if a.ErrorMessage != "" {
			msg += ": " + a.ErrorMessage
		}
		return statusError, msg
	default:
		return statusWarn, string(a.Status)
	}
}

func attemptStatus(a journal.Attempt, colorize bool) string {
	kind, _ := attemptKind(a)
	label := string(a.Status)
	if a.Status == journal.StatusFailed && a.ErrorKind != "" {
		label += " (" + a.ErrorKind + ")"
	}
	return statusCell(kind, label, colorize)
}

func stepStatus(status string, colorize bool) string {
	switch status {
	case journal.StepOK:
		return statusCell(statusOK, status, colorize)
	case journal.StepFailed:
		return statusCell(statusError, status, colorize)
	default:
		return statusCell(statusInfo, status, colorize)
	}
}
