package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"treegift/internal/ingest"
	"treegift/internal/matcher"
	"treegift/internal/notifications"
)

func newImagesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Manage a request's photo pool",
	}
	cmd.AddCommand(newImagesListCommand(ctx))
	cmd.AddCommand(newImagesScrapeCommand(ctx))
	cmd.AddCommand(newImagesUploadCommand(ctx))
	return cmd
}

func newImagesListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list REQUEST_ID",
		Short: "List the photos stored for a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.remoteClient()
			if err != nil {
				return err
			}
			urls, err := client.GetImagesForRequestID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, urls)
			}
			printPool(cmd, urls)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newImagesScrapeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape REQUEST_ID URL",
		Short: "Harvest photos from a public web page into a request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestID, pageURL := args[0], args[1]
			client, err := ctx.remoteClient()
			if err != nil {
				return err
			}
			unlock, err := ctx.lockRequest(requestID)
			if err != nil {
				return err
			}
			defer unlock()

			logger := ctx.loggerValue()
			pool := ingest.NewImagePool(client, logger)
			before, err := pool.Fetch(cmd.Context(), requestID)
			if err != nil {
				return err
			}
			scraper := ingest.NewScraper(client, pool, logger)
			urls, err := scraper.Scrape(cmd.Context(), requestID, pageURL)
			if err != nil {
				_ = ctx.notifier().Publish(cmd.Context(), notifications.EventIngestionFailed, notifications.Payload{
					"file":  pageURL,
					"error": err,
				})
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pool for %s: %d photos (%d new)\n", requestID, len(urls), max(len(urls)-len(before), 0))
			printPool(cmd, urls)
			return nil
		},
	}
}

func newImagesUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload REQUEST_ID FILE...",
		Short: "Upload local photos into a request",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireStorage(); err != nil {
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
			requestID := args[0]
			unlock, err := ctx.lockRequest(requestID)
			if err != nil {
				return err
			}
			defer unlock()

			photos := make([]ingest.Photo, 0, len(args)-1)
			for _, path := range args[1:] {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				photos = append(photos, ingest.Photo{Name: filepath.Base(path), Data: data})
			}

			logger := ctx.loggerValue()
			pool := ingest.NewImagePool(client, logger)
			uploader := ingest.NewImageUploader(storage, pool, cfg.Storage.ImageNamespace, cfg.Storage.MaxImageDimension, logger)
			urls, err := uploader.Upload(cmd.Context(), requestID, photos...)
			if err != nil {
				return err
			}
			for _, url := range urls {
				fmt.Fprintln(cmd.OutOrStdout(), url)
			}
			return nil
		},
	}
}

func printPool(cmd *cobra.Command, urls []string) {
	if len(urls) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No photos stored for this request")
		return
	}
	rows := make([][]string, 0, len(urls))
	for i, url := range urls {
		rows = append(rows, []string{strconv.Itoa(i + 1), matcher.FileName(url), url})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"#", "File", "URL"}, rows, []columnAlignment{alignRight}))
}
