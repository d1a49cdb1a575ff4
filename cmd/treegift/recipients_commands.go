package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"treegift/internal/ingest"
	"treegift/internal/matcher"
	"treegift/internal/notifications"
	"treegift/internal/recipient"
)

func newRecipientsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipients",
		Short: "Inspect recipient spreadsheets",
	}
	cmd.AddCommand(newRecipientsCheckCommand(ctx))
	cmd.AddCommand(newRecipientsTemplateCommand())
	return cmd
}

func newRecipientsCheckCommand(ctx *commandContext) *cobra.Command {
	var requestID string
	var trees int
	var match bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Parse a recipient CSV and report problems",
		Long: "Parse a recipient CSV exactly as the wizard would. Named images are checked\n" +
			"against object storage under --request; with --match the request's photo pool\n" +
			"is fetched and unassigned rows are matched by name.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			importer, err := ctx.csvImporter()
			if err != nil {
				return err
			}

			runCtx := cmd.Context()
			if runCtx == nil {
				runCtx = context.Background()
			}
			name := filepath.Base(args[0])
			result, err := importer.Import(runCtx, requestID, name, data)
			if err != nil {
				_ = ctx.notifier().Publish(runCtx, notifications.EventIngestionFailed, notifications.Payload{
					"file":  name,
					"error": err,
				})
				return err
			}

			records := result.Records
			if match {
				if requestID == "" {
					return fmt.Errorf("--match requires --request")
				}
				client, err := ctx.remoteClient()
				if err != nil {
					return err
				}
				pool, err := client.GetImagesForRequestID(runCtx, requestID)
				if err != nil {
					return fmt.Errorf("fetch photo pool: %w", err)
				}
				matched := matcher.Match(pool, records, matcher.Options{
					Threshold:     cfg.Matching.Threshold,
					RequireUnique: cfg.Matching.RequireUnique,
				})
				records = matched.Records
				if len(matched.Ambiguous) > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "%d recipients matched more than one photo and were left unassigned\n", len(matched.Ambiguous))
				}
			}

			if trees <= 0 {
				trees = records.TotalTrees()
			}
			summary := records.Summarize(trees)
			if jsonOut {
				if err := writeJSON(cmd, struct {
					File        string            `json:"file"`
					Encoding    string            `json:"encoding"`
					Recipients  recipient.List    `json:"recipients"`
					Summary     recipient.Summary `json:"summary"`
					SkippedRows int               `json:"skipped_rows"`
				}{name, result.Source.Encoding, records, summary, result.SkippedRows}); err != nil {
					return err
				}
			} else {
				renderRecipients(cmd.OutOrStdout(), records, summary, result.SkippedRows)
			}
			if len(records.Blocking()) > 0 {
				return fmt.Errorf("%d recipients need attention before submission", len(records.Blocking()))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&requestID, "request", "", "Request id used to locate named images")
	cmd.Flags().IntVar(&trees, "trees", 0, "Declared tree count to check allocation against")
	cmd.Flags().BoolVar(&match, "match", false, "Match unassigned rows against the request's photo pool")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func renderRecipients(out io.Writer, records recipient.List, summary recipient.Summary, skipped int) {
	colorize := shouldColorize(out)
	headers := []string{"Recipient", "Email", "Trees", "Image", "Status"}
	if summary.ShowExtendedColumns {
		headers = []string{"Recipient", "Email", "Assignee", "Assignee Email", "Trees", "Image", "Status"}
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		image := "-"
		if r.ImageAssigned {
			image = r.ImageName
		} else if r.ImageName != "" {
			image = r.ImageName + " (missing)"
		}
		row := []string{r.RecipientName, r.RecipientEmail}
		if summary.ShowExtendedColumns {
			row = append(row, r.AssigneeName, r.AssigneeEmail)
		}
		row = append(row, strconv.Itoa(r.GiftedTreeCount), image, recordStatus(r, colorize))
		rows = append(rows, row)
	}
	aligns := make([]columnAlignment, len(headers))
	aligns[len(headers)-3] = alignRight
	fmt.Fprintln(out, renderTable(headers, rows, aligns))

	allocation := fmt.Sprintf("%d of %d trees assigned", summary.Trees, summary.Declared)
	kind := statusOK
	if summary.Overallocated {
		kind = statusWarn
		allocation += " (over-allocated)"
	}
	fmt.Fprintln(out, renderStatusLine("Allocation", kind, allocation, colorize))
	if summary.Invalid > 0 {
		fmt.Fprintln(out, renderStatusLine("Invalid rows", statusError, strconv.Itoa(summary.Invalid), colorize))
	}
	if summary.MissingImages > 0 {
		fmt.Fprintln(out, renderStatusLine("Missing images", statusError, strconv.Itoa(summary.MissingImages), colorize))
	}
	if skipped > 0 {
		fmt.Fprintln(out, renderStatusLine("Skipped rows", statusInfo, fmt.Sprintf("%d without a recipient name", skipped), colorize))
	}
}

func recordStatus(r recipient.Record, colorize bool) string {
	switch {
	case r.HasValidationError:
		return statusCell(statusError, "invalid contact", colorize)
	case r.ImageMissing:
		return statusCell(statusError, "image missing", colorize)
	default:
		return statusCell(statusOK, "ok", colorize)
	}
}

func newRecipientsTemplateCommand() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:         "template",
		Short:       "Write an empty recipient CSV with the expected header",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				return ingest.Template(cmd.OutOrStdout())
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create %s: %w", outPath, err)
			}
			if err := ingest.Template(f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote template to %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the template to this file instead of stdout")
	return cmd
}
