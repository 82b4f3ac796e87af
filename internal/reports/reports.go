// Package reports keeps a trailing signature report in sync with a document's
// signing state. The report pages are appended to the stored PDF and their
// count is kept in blob metadata so the next regeneration can strip them.
package reports

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/practicanteticPX/docuprex/internal/signing"
	"github.com/practicanteticPX/docuprex/pkg/keylock"
	"github.com/practicanteticPX/docuprex/pkg/storage"
)

// Blob metadata keys written with every regenerated artifact.
const (
	MetadataReportPages = "report_pages"
	MetadataStatus      = "signing_status"
)

const contentTypePDF = "application/pdf"

// Locator resolves the storage key of a document's artifact.
type Locator interface {
	StorageKey(ctx context.Context, documentID uuid.UUID) (string, error)
}

// State loads the committed signing state of a document.
type State interface {
	Snapshot(ctx context.Context, documentID uuid.UUID) (signing.Snapshot, error)
}

// System regenerates artifacts.
type System interface {
	signing.EffectHandler

	// Regenerate rewrites the report of a document from its current
	// signing state.
	Regenerate(ctx context.Context, documentID uuid.UUID) error
}

type regenerator struct {
	storage storage.System
	locator Locator
	state   State
	logger  *slog.Logger
	now     func() time.Time
	docs    keylock.Map[uuid.UUID]
}

// New creates the artifact regenerator.
func New(store storage.System, locator Locator, state State, logger *slog.Logger) System {
	return &regenerator{
		storage: store,
		locator: locator,
		state:   state,
		logger:  logger.With("system", "reports"),
		now:     time.Now,
	}
}

// Handle regenerates the artifact when the change asks for it. Failures are
// logged and swallowed; the signing state is already committed.
func (r *regenerator) Handle(ctx context.Context, c signing.Change) error {
	if !c.Has(signing.RegenerateArtifact) {
		return nil
	}
	if err := r.Regenerate(ctx, c.After.DocumentID); err != nil {
		r.logger.Error("artifact regeneration failed", "document_id", c.After.DocumentID, "error", err)
	}
	return nil
}

// Regenerate holds the document lock from loading the state until the upload
// completes, so the last regeneration always renders the latest commit.
func (r *regenerator) Regenerate(ctx context.Context, documentID uuid.UUID) error {
	unlock := r.docs.Lock(documentID)
	defer unlock()

	s, err := r.state.Snapshot(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load signing state: %w", err)
	}

	key, err := r.locator.StorageKey(ctx, documentID)
	if err != nil {
		return fmt.Errorf("locate artifact: %w", err)
	}

	blob, err := r.storage.Download(ctx, key)
	if err != nil {
		return fmt.Errorf("download artifact: %w", err)
	}
	data, err := io.ReadAll(blob.Body)
	blob.Body.Close()
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	base, err := r.strip(data, reportPages(blob.Metadata))
	if err != nil {
		return err
	}

	report, pages, err := Render(s, r.now())
	if err != nil {
		return err
	}

	var merged bytes.Buffer
	if err := api.MergeRaw(
		[]io.ReadSeeker{bytes.NewReader(base), bytes.NewReader(report)},
		&merged, false, nil,
	); err != nil {
		return fmt.Errorf("merge report: %w", err)
	}

	metadata := map[string]string{
		MetadataReportPages: strconv.Itoa(pages),
		MetadataStatus:      string(s.Status),
	}
	if err := r.storage.Upload(ctx, key, &merged, contentTypePDF, metadata); err != nil {
		return fmt.Errorf("upload artifact: %w", err)
	}

	r.logger.Info(
		"artifact regenerated",
		"document_id", s.DocumentID,
		"status", s.Status,
		"report_pages", pages,
	)
	return nil
}

// strip removes the previous report from data.
func (r *regenerator) strip(data []byte, report int) ([]byte, error) {
	if report == 0 {
		return data, nil
	}

	total, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return nil, fmt.Errorf("count artifact pages: %w", err)
	}

	selection, ok := StripRange(total, report)
	if !ok {
		r.logger.Warn("report page count out of range, leaving artifact intact", "total", total, "report_pages", report)
		return data, nil
	}

	var out bytes.Buffer
	if err := api.RemovePages(bytes.NewReader(data), &out, []string{selection}, nil); err != nil {
		return nil, fmt.Errorf("strip report pages: %w", err)
	}
	return out.Bytes(), nil
}

// StripRange returns the pdfcpu page selection covering the last report pages
// of a document with total pages. It refuses selections that would remove
// every page.
func StripRange(total, report int) (string, bool) {
	if report <= 0 || total <= 0 || report >= total {
		return "", false
	}
	return fmt.Sprintf("%d-%d", total-report+1, total), true
}

func reportPages(metadata map[string]string) int {
	n, err := strconv.Atoi(metadata[MetadataReportPages])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
