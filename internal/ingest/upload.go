package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"treegift/internal/logging"
	"treegift/internal/services"
)

const uploadConcurrency = 3

// Uploader stores a file and returns its public URL.
type Uploader interface {
	UploadFile(ctx context.Context, namespace, name string, body io.Reader, requestID string) (string, error)
}

// Photo is a local image to upload.
type Photo struct {
	Name string
	Data []byte
}

// ImageUploader pushes photos into a request's image namespace and refreshes
// the pool so the matcher sees them.
type ImageUploader struct {
	storage   Uploader
	pool      *ImagePool
	namespace string
	maxDim    int
	logger    *slog.Logger
}

// NewImageUploader constructs an uploader. Photos whose longest edge exceeds
// maxDimension are downscaled first; zero disables resizing.
func NewImageUploader(storage Uploader, pool *ImagePool, namespace string, maxDimension int, logger *slog.Logger) *ImageUploader {
	return &ImageUploader{
		storage:   storage,
		pool:      pool,
		namespace: namespace,
		maxDim:    maxDimension,
		logger:    logging.NewComponentLogger(logger, "image-upload"),
	}
}

// Upload stores photos and returns their URLs in input order. Photos uploaded
// before a failure still reach the pool.
func (u *ImageUploader) Upload(ctx context.Context, requestID string, photos ...Photo) ([]string, error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, services.Wrap(services.ErrValidation, "ingest", "upload images", "request id required", nil)
	}
	urls := make([]string, len(photos))
	var mu sync.Mutex
	var uploaded []string

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(uploadConcurrency)
	for idx, photo := range photos {
		group.Go(func() error {
			name := path.Base(strings.TrimSpace(photo.Name))
			data, err := Downscale(name, photo.Data, u.maxDim)
			if err != nil {
				return services.Wrap(services.ErrIngestion, "ingest", "upload images", fmt.Sprintf("prepare %q", name), err)
			}
			url, err := u.storage.UploadFile(gctx, u.namespace, name, bytes.NewReader(data), requestID)
			if err != nil {
				return services.Wrap(services.ErrIngestion, "ingest", "upload images", fmt.Sprintf("store %q", name), err)
			}
			urls[idx] = url
			mu.Lock()
			uploaded = append(uploaded, url)
			mu.Unlock()
			return nil
		})
	}
	waitErr := group.Wait()

	if len(uploaded) > 0 && u.pool != nil {
		u.pool.Merge(requestID, uploaded...)
		if _, err := u.pool.Refresh(ctx, requestID); err != nil {
			u.logger.Debug("pool refresh after upload failed", logging.Error(err))
		}
	}
	u.logger.Info("photos uploaded",
		logging.String(logging.FieldRequestID, requestID),
		logging.Int("requested", len(photos)),
		logging.Int("uploaded", len(uploaded)),
	)
	if waitErr != nil {
		return nil, waitErr
	}
	return urls, nil
}

// Downscale shrinks an image so its longest edge is at most maxDim, keeping
// the format implied by name. Images already within bounds are returned
// unchanged, as is everything when maxDim is zero.
func Downscale(name string, data []byte, maxDim int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if maxDim <= 0 {
		return data, nil
	}
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported image type: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= maxDim && bounds.Dy() <= maxDim {
		return data, nil
	}
	resized := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
