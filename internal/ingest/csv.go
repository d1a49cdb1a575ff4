package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"treegift/internal/logging"
	"treegift/internal/objectstore"
	"treegift/internal/recipient"
	"treegift/internal/services"
)

// Column titles of the recipients template.
const (
	ColRecipientName      = "Recipient Name"
	ColRecipientEmail     = "Recipient Email"
	ColRecipientCommEmail = "Recipient Communication Email (optional)"
	ColRecipientPhone     = "Recipient Phone (optional)"
	ColAssigneeName       = "Assignee Name"
	ColAssigneeEmail      = "Assignee Email"
	ColAssigneeCommEmail  = "Assignee Communication Email (optional)"
	ColAssigneePhone      = "Assignee Phone (optional)"
	ColTreeCount          = "Number of trees to assign"
	ColImageName          = "Image Name (optional)"
	ColRelation           = "Relation with person"
)

// TemplateColumns lists the template header in order.
var TemplateColumns = []string{
	ColRecipientName,
	ColRecipientEmail,
	ColRecipientCommEmail,
	ColRecipientPhone,
	ColAssigneeName,
	ColAssigneeEmail,
	ColAssigneeCommEmail,
	ColAssigneePhone,
	ColTreeCount,
	ColImageName,
	ColRelation,
}

const imageCheckConcurrency = 4

// ImageChecker answers whether a storage key is publicly readable.
type ImageChecker interface {
	PublicFileExists(ctx context.Context, key string) (bool, error)
}

// URLResolver maps a storage key to its public URL.
type URLResolver interface {
	URLForKey(key string) string
}

// SourceFile is the raw upload retained alongside the parsed list.
type SourceFile struct {
	Name     string `json:"name" toml:"name"`
	Data     []byte `json:"-" toml:"-"`
	Encoding string `json:"encoding,omitempty" toml:"encoding,omitempty"`
}

// CSVResult is a successful import.
type CSVResult struct {
	Records recipient.List
	Source  SourceFile
	// MissingImages lists keys of rows whose named image is absent from
	// storage. Those rows carry ImageMissing and block the recipients step.
	MissingImages []string
	// SkippedRows counts data rows with a blank recipient name.
	SkippedRows int
}

// CSVImporter parses recipient spreadsheets.
type CSVImporter struct {
	storage   ImageChecker
	urls      URLResolver
	namespace string
	domain    string
	logger    *slog.Logger

	// TemplateURL links to the published template sheet.
	TemplateURL string
}

// StorageClient satisfies both storage interfaces.
type StorageClient interface {
	ImageChecker
	URLResolver
}

// NewCSVImporter constructs an importer. namespace is the image namespace used
// for <namespace>/<requestID>/<image> lookups and domain the synthesized email
// domain.
func NewCSVImporter(storage StorageClient, namespace, domain, templateURL string, logger *slog.Logger) *CSVImporter {
	return &CSVImporter{
		storage:     storage,
		urls:        storage,
		namespace:   namespace,
		domain:      domain,
		logger:      logging.NewComponentLogger(logger, "ingest"),
		TemplateURL: templateURL,
	}
}

// Import parses data and returns the replacement recipient list. Any
// file-level failure rejects the whole upload; callers keep their current
// list in that case.
func (i *CSVImporter) Import(ctx context.Context, requestID, name string, data []byte) (CSVResult, error) {
	decoded, encoding, err := decodeText(data)
	if err != nil {
		return CSVResult{}, services.Wrap(services.ErrIngestion, "ingest", "csv import", "unreadable file", err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return CSVResult{}, services.Wrap(services.ErrIngestion, "ingest", "csv import", "empty file", nil)
		}
		return CSVResult{}, services.Wrap(services.ErrIngestion, "ingest", "csv import", "read header", err)
	}
	columns := indexHeader(header)
	if _, ok := columns[ColRecipientName]; !ok {
		return CSVResult{}, services.Wrap(services.ErrIngestion, "ingest", "csv import", fmt.Sprintf("missing %q column", ColRecipientName), nil)
	}

	result := CSVResult{Source: SourceFile{Name: name, Data: data, Encoding: encoding}}
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return CSVResult{}, services.Wrap(services.ErrIngestion, "ingest", "csv import", fmt.Sprintf("row %d", line), err)
		}
		get := func(col string) string {
			idx, ok := columns[col]
			if !ok || idx >= len(row) {
				return ""
			}
			return norm.NFC.String(strings.TrimSpace(row[idx]))
		}
		if get(ColRecipientName) == "" {
			result.SkippedRows++
			continue
		}

		count := 0
		if raw := get(ColTreeCount); raw != "" {
			count, err = strconv.Atoi(raw)
			if err != nil {
				return CSVResult{}, services.Wrap(services.ErrIngestion, "ingest", "csv import", fmt.Sprintf("row %d: %q is not a whole number of trees", line, raw), nil)
			}
		}

		rec := recipient.Record{
			RecipientName:               get(ColRecipientName),
			RecipientEmail:              get(ColRecipientEmail),
			RecipientCommunicationEmail: get(ColRecipientCommEmail),
			RecipientPhone:              get(ColRecipientPhone),
			AssigneeName:                get(ColAssigneeName),
			AssigneeEmail:               get(ColAssigneeEmail),
			AssigneeCommunicationEmail:  get(ColAssigneeCommEmail),
			AssigneePhone:               get(ColAssigneePhone),
			Relation:                    get(ColRelation),
			GiftedTreeCount:             count,
			ImageName:                   get(ColImageName),
			Editable:                    true,
		}
		rec.Normalize(i.domain)
		result.Records = append(result.Records, rec)
	}

	if len(result.Records) == 0 {
		return CSVResult{}, services.Wrap(services.ErrIngestion, "ingest", "csv import", "file contains no recipients", nil)
	}
	if err := i.resolveImages(ctx, requestID, result.Records); err != nil {
		return CSVResult{}, err
	}
	for _, rec := range result.Records {
		if rec.ImageMissing {
			result.MissingImages = append(result.MissingImages, rec.Key)
		}
	}

	i.logger.Info("recipients imported",
		logging.String(logging.FieldRequestID, requestID),
		logging.String("file", name),
		logging.String("encoding", encoding),
		logging.Int("recipients", len(result.Records)),
		logging.Int("trees", result.Records.TotalTrees()),
		logging.Int("missing_images", len(result.MissingImages)),
		logging.Int("skipped_rows", result.SkippedRows),
	)
	return result, nil
}

// resolveImages checks every named image against storage in parallel. The
// first storage failure cancels the rest and rejects the upload.
func (i *CSVImporter) resolveImages(ctx context.Context, requestID string, records recipient.List) error {
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(imageCheckConcurrency)
	for idx := range records {
		rec := &records[idx]
		if rec.ImageName == "" {
			continue
		}
		if i.storage == nil {
			return services.Wrap(services.ErrConfiguration, "ingest", "csv import", "storage not configured for image lookups", nil)
		}
		group.Go(func() error {
			key := objectstore.Key(i.namespace, requestID, rec.ImageName)
			found, err := i.storage.PublicFileExists(gctx, key)
			if err != nil {
				return services.Wrap(services.ErrIngestion, "ingest", "csv import", fmt.Sprintf("check image %q", rec.ImageName), err)
			}
			if found {
				rec.AssignImage(i.urls.URLForKey(key), rec.ImageName)
				return nil
			}
			rec.ImageMissing = true
			logging.WarnWithContext(i.logger, "named image not found", "image_missing",
				logging.String(logging.FieldRequestID, requestID),
				logging.String("image", rec.ImageName),
				logging.String("recipient", rec.RecipientName),
				logging.String(logging.FieldErrorHint, "upload the photo or clear the image name"),
				logging.String(logging.FieldImpact, "recipients step blocked until resolved"),
			)
			return nil
		})
	}
	return group.Wait()
}

func indexHeader(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for idx, title := range header {
		title = strings.TrimSpace(strings.TrimPrefix(title, "\ufeff"))
		if _, dup := columns[title]; !dup {
			columns[title] = idx
		}
	}
	return columns
}

// Template renders an empty recipients sheet with the expected header.
func Template(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(TemplateColumns); err != nil {
		return fmt.Errorf("write template header: %w", err)
	}
	writer.Flush()
	return writer.Error()
}
