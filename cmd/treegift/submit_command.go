package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"treegift/internal/config"
	"treegift/internal/giftrequest"
	"treegift/internal/ingest"
	"treegift/internal/matcher"
	"treegift/internal/notifications"
	"treegift/internal/remote"
	"treegift/internal/services"
	"treegift/internal/submit"
	"treegift/internal/wizard"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "submit DRAFT",
		Short: "Create or update a gift request from a TOML draft",
		Long: "Load a draft file, resolve its donor, sponsor, and group against the data\n" +
			"service, import its recipients, and run the full submission: logo, payment,\n" +
			"gift request, and recipient rows. With --dry-run the draft is validated and\n" +
			"summarized without writing anything.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			draft, err := wizard.LoadDraft(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.remoteClient()
			if err != nil {
				return err
			}
			storage, err := ctx.storageClient()
			if err != nil {
				return err
			}
			if draft.LogoPath != "" || draft.RecipientsCSV != "" {
				if err := cfg.RequireStorage(); err != nil {
					return err
				}
			}

			if lockID := draftLockID(draft); lockID != "" {
				unlock, err := ctx.lockRequest(lockID)
				if err != nil {
					return err
				}
				defer unlock()
			}

			logger := ctx.loggerValue()
			pool := ingest.NewImagePool(client, logger)
			controller := wizard.New(wizard.Options{
				Price: cfg.UnitPrice,
				Pool:  pool,
				Matching: &matcher.Options{
					Threshold:     cfg.Matching.Threshold,
					RequireUnique: cfg.Matching.RequireUnique,
				},
				LogoUploader:     storage,
				LogoNamespace:    cfg.Storage.LogoNamespace,
				MaxLogoDimension: cfg.Storage.MaxImageDimension,
				Logger:           logger,
			})
			defer controller.Close()

			runCtx := cmd.Context()
			if err := openDraft(runCtx, controller, client, cfg, draft); err != nil {
				return err
			}
			requestID := controller.Snapshot().RequestID
			if _, err := pool.Fetch(runCtx, requestID); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: photo pool unavailable, automatic matching skipped: %v\n", err)
			}
			if err := applyDraftRecipients(runCtx, ctx, controller, cfg, draft); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			renderDraftSummary(out, controller.Snapshot(), shouldColorize(out))

			if dryRun {
				if err := controller.AwaitLogo(runCtx); err != nil {
					return err
				}
				if err := wizard.ValidateAll(wizard.DefaultSteps(), controller.Snapshot()); err != nil {
					return fmt.Errorf("draft is not ready: %w", err)
				}
				fmt.Fprintln(out, "Draft is ready to submit")
				return nil
			}

			var recorder submit.Recorder
			if store, err := ctx.openJournal(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: journal unavailable: %v\n", err)
			} else {
				defer store.Close()
				recorder = store
			}

			persister := giftrequest.New(client, logger)
			var savedID int64
			orch, err := submit.New(submit.Options{
				Remote: client,
				Callback: func(c context.Context, sub submit.Submission) (int64, error) {
					id, err := persister.Persist(c, sub)
					savedID = id
					return id, err
				},
				Recorder: recorder,
				Notifier: ctx.notifier(),
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			if err := orch.Submit(runCtx, controller); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved gift request %d (request %s)\n", savedID, requestID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate and summarize without submitting")
	return cmd
}

func draftLockID(d wizard.Draft) string {
	if d.RequestID != "" {
		return d.RequestID
	}
	if d.GiftRequestID != 0 {
		return "gift-request-" + strconv.FormatInt(d.GiftRequestID, 10)
	}
	return ""
}

// openDraft opens the wizard on the draft, hydrating from the saved request
// first when the draft edits one.
func openDraft(ctx context.Context, c *wizard.Controller, client *remote.Client, cfg *config.Config, d wizard.Draft) error {
	people, err := resolveUsers(ctx, client, d.UserEmail, d.SponsorEmail, d.CreatedByEmail)
	if err != nil {
		return err
	}
	user := people[strings.ToLower(d.UserEmail)]
	sponsor := people[strings.ToLower(d.SponsorEmail)]
	createdBy := people[strings.ToLower(d.CreatedByEmail)]

	groupID := d.GroupID
	if d.GiftRequestID != 0 {
		persisted, err := loadPersisted(ctx, client, d.GiftRequestID)
		if err != nil {
			return err
		}
		if groupID == 0 && persisted.Request.GroupID != nil {
			groupID = *persisted.Request.GroupID
		}
		persisted.User, persisted.Sponsor, persisted.CreatedBy = user, sponsor, createdBy
		c.Hydrate(persisted, cfg.Recipients.DefaultEmailDomain)
	} else {
		c.Open(wizard.State{RequestID: d.RequestID})
	}

	patches := []wizard.Patch{wizard.SetUser(user), wizard.SetSponsor(sponsor), wizard.SetCreatedBy(createdBy)}
	if groupID != 0 {
		group, err := findGroup(ctx, client, groupID)
		if err != nil {
			return err
		}
		patches = append(patches, wizard.SetGroup(group))
	}
	scalar, err := d.Patches()
	if err != nil {
		return err
	}
	patches = append(patches, scalar...)
	if d.LogoPath != "" {
		data, err := os.ReadFile(d.LogoPath)
		if err != nil {
			return fmt.Errorf("read logo: %w", err)
		}
		patches = append(patches, wizard.SetLogoFile(filepath.Base(d.LogoPath), data))
	}
	c.Update(patches...)
	return nil
}

func loadPersisted(ctx context.Context, client *remote.Client, id int64) (wizard.Persisted, error) {
	request, err := client.GetGiftRequest(ctx, id)
	if err != nil {
		return wizard.Persisted{}, err
	}
	users, err := client.GetGiftRequestUsers(ctx, id)
	if err != nil {
		return wizard.Persisted{}, err
	}
	p := wizard.Persisted{Request: request, Users: users}
	if request.PaymentID != nil {
		payment, err := client.GetPayment(ctx, *request.PaymentID)
		if err != nil {
			return wizard.Persisted{}, err
		}
		p.Payment = &payment
	}
	return p, nil
}

// resolveUsers looks up every non-empty email in one query. The first email
// is required; the rest resolve to nil when blank.
func resolveUsers(ctx context.Context, client *remote.Client, emails ...string) (map[string]*remote.User, error) {
	wanted := make([]string, 0, len(emails))
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			wanted = append(wanted, e)
		}
	}
	found := make(map[string]*remote.User, len(wanted))
	if len(wanted) == 0 {
		return found, nil
	}
	page, err := client.GetUsers(ctx, 0, len(wanted)*2, remote.IsAnyOf("email", wanted))
	if err != nil {
		return nil, err
	}
	for i := range page.Results {
		u := page.Results[i]
		found[strings.ToLower(u.Email)] = &u
	}
	for _, e := range wanted {
		if found[e] == nil {
			return nil, services.Wrap(services.ErrNotFound, "submit", "resolve users", fmt.Sprintf("no user with email %s", e), nil)
		}
	}
	return found, nil
}

func findGroup(ctx context.Context, client *remote.Client, id int64) (*remote.Group, error) {
	page, err := client.GetGroups(ctx, 0, 1, remote.Equals("id", id))
	if err != nil {
		return nil, err
	}
	if len(page.Results) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "submit", "resolve group", fmt.Sprintf("no group with id %d", id), nil)
	}
	g := page.Results[0]
	return &g, nil
}

func applyDraftRecipients(runCtx context.Context, ctx *commandContext, c *wizard.Controller, cfg *config.Config, d wizard.Draft) error {
	state := c.Snapshot()
	switch {
	case d.RecipientsCSV != "":
		data, err := os.ReadFile(d.RecipientsCSV)
		if err != nil {
			return fmt.Errorf("read recipients: %w", err)
		}
		importer, err := ctx.csvImporter()
		if err != nil {
			return err
		}
		name := filepath.Base(d.RecipientsCSV)
		result, err := importer.Import(runCtx, state.RequestID, name, data)
		if err != nil {
			_ = ctx.notifier().Publish(runCtx, notifications.EventIngestionFailed, notifications.Payload{
				"file":  name,
				"error": err,
			})
			return err
		}
		// Saved read-only rows stay; the file replaces only editable ones.
		list := result.Records
		for _, r := range state.Recipients {
			if !r.Editable {
				list = append(list, r)
			}
		}
		c.Update(wizard.SetRecipientList(list), wizard.SetSourceFile(&result.Source))
	case len(d.Recipients) > 0:
		manual := ingest.NewManual(cfg.Recipients.DefaultEmailDomain, cfg.Recipients.MinAgeYears)
		list := state.Recipients
		for i, entry := range d.Recipients {
			next, _, err := manual.Apply(list, entry.Form())
			if err != nil {
				return fmt.Errorf("recipient %d (%s): %w", i+1, entry.Name, err)
			}
			list = next
		}
		c.Update(wizard.SetRecipientList(list))
	}
	return nil
}

func renderDraftSummary(out io.Writer, s wizard.State, colorize bool) {
	for _, line := range renderSectionHeader("Gift request", colorize) {
		fmt.Fprintln(out, line)
	}
	request := s.RequestID
	if s.GiftRequestID != 0 {
		request = fmt.Sprintf("%s (gift request %d)", s.RequestID, s.GiftRequestID)
	}
	fmt.Fprintln(out, renderStatusLine("Request", statusInfo, request, colorize))
	if s.User != nil {
		fmt.Fprintln(out, renderStatusLine("User", statusInfo, fmt.Sprintf("%s <%s>", s.User.Name, s.User.Email), colorize))
	}
	if s.Sponsor != nil {
		fmt.Fprintln(out, renderStatusLine("Sponsor", statusInfo, s.Sponsor.Name, colorize))
	}
	if s.Group != nil {
		fmt.Fprintln(out, renderStatusLine("Group", statusInfo, s.Group.Name, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Type", statusInfo, fmt.Sprintf("%s / %s", s.RequestType, s.Category), colorize))
	if !wizard.AssignmentOnly(s.RequestType) {
		fmt.Fprintln(out, renderStatusLine("Amount", statusInfo, strconv.Itoa(s.Amount), colorize))
	}

	summary := s.Summary()
	kind := statusOK
	allocation := fmt.Sprintf("%d of %d trees to %d recipients", summary.Trees, summary.Declared, summary.Count)
	if summary.Overallocated {
		kind = statusWarn
		allocation += " (over-allocated)"
	}
	fmt.Fprintln(out, renderStatusLine("Trees", kind, allocation, colorize))
	if blocking := s.Recipients.Blocking(); len(blocking) > 0 {
		fmt.Fprintln(out, renderStatusLine("Recipients", statusError, fmt.Sprintf("%d need attention", len(blocking)), colorize))
	}
	if s.LogoPending {
		fmt.Fprintln(out, renderStatusLine("Logo", statusInfo, "uploading", colorize))
	} else if s.LogoURL != "" {
		fmt.Fprintln(out, renderStatusLine("Logo", statusOK, s.LogoURL, colorize))
	}
	for _, n := range s.Notices {
		kind := statusInfo
		switch n.Level {
		case wizard.NoticeWarn:
			kind = statusWarn
		case wizard.NoticeError:
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine("Notice", kind, n.Message, colorize))
	}
}
