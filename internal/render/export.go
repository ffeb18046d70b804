package render

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-pdf/fpdf"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"certchain/internal/platform/metrics"
	"certchain/internal/platform/tracer"
	dErrors "certchain/pkg/domain-errors"
	csync "certchain/pkg/platform/sync"
)

// ErrRenderTargetUnavailable is returned when export is attempted before a
// layout has been mounted.
var ErrRenderTargetUnavailable = dErrors.New(dErrors.CodeRenderUnavailable, "certificate preview is not available")

// A4 landscape page in millimetres.
const (
	pageWidthMM  = 297
	pageHeightMM = 210
)

// documentDate is stamped as creation and modification date so identical
// records produce identical bytes.
var documentDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Target is a mounted layout ready for export.
type Target struct {
	layout *Layout
}

// Mount attaches a layout to a target. Mounting nil yields an unmounted target.
func Mount(l *Layout) *Target {
	return &Target{layout: l}
}

func (t *Target) Mounted() bool {
	return t != nil && t.layout != nil
}

func (t *Target) Layout() *Layout {
	if t == nil {
		return nil
	}
	return t.layout
}

// Artifact is an exported certificate document.
type Artifact struct {
	Name          string
	CertificateID string
	PDF           []byte
	PNG           []byte
	CID           cid.Cid
}

// Exporter rasterizes mounted layouts and wraps them in a PDF page.
type Exporter struct {
	scale   int
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
}

// ExportOption configures an Exporter.
type ExportOption func(*Exporter)

func WithScale(scale int) ExportOption {
	return func(e *Exporter) {
		e.scale = scale
	}
}

func WithLogger(logger *slog.Logger) ExportOption {
	return func(e *Exporter) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) ExportOption {
	return func(e *Exporter) {
		e.metrics = m
	}
}

func WithTracer(t tracer.Tracer) ExportOption {
	return func(e *Exporter) {
		e.tracer = t
	}
}

func NewExporter(opts ...ExportOption) *Exporter {
	e := &Exporter{
		scale:  DefaultScale,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export produces the document for a mounted target. Nothing is produced
// when the target is not mounted.
func (e *Exporter) Export(ctx context.Context, t *Target) (artifact *Artifact, err error) {
	if !t.Mounted() {
		return nil, ErrRenderTargetUnavailable
	}
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, tracer.SpanRenderExport,
		tracer.String(tracer.AttrCertificateID, t.layout.CertificateID),
	)
	defer func() {
		if e.metrics != nil && err == nil {
			e.metrics.ObserveExport(time.Since(start).Seconds())
		}
		span.End(err)
	}()

	img, err := Rasterize(t.layout, e.scale)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to rasterize certificate")
	}
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode certificate image")
	}

	name := t.layout.ArtifactName()
	doc, err := buildPDF(name, pngBuf.Bytes())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate PDF")
	}
	id, err := ContentID(doc)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash PDF")
	}

	artifact = &Artifact{
		Name:          name,
		CertificateID: t.layout.CertificateID,
		PDF:           doc,
		PNG:           pngBuf.Bytes(),
		CID:           id,
	}
	span.SetAttributes(tracer.Int64(tracer.AttrArtifactBytes, int64(len(doc))))
	e.logger.InfoContext(ctx, "certificate exported",
		"certificate_id", artifact.CertificateID,
		"name", artifact.Name,
		"cid", artifact.CID.String(),
	)
	return artifact, nil
}

func buildPDF(title string, img []byte) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(documentDate)
	pdf.SetModificationDate(documentDate)
	pdf.SetTitle(title, true)
	pdf.SetCreator("certchain", true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("certificate", opts, bytes.NewReader(img))
	pdf.ImageOptions("certificate", 0, 0, pageWidthMM, pageHeightMM, false, opts, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// ContentID returns the CIDv1 (raw codec, sha2-256) of data.
func ContentID(data []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// sanitizeName replaces each whitespace character, and any path separator,
// with an underscore.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, name)
}

var writeLocks = csync.NewShardedMutex()

// WriteFile stores the artifact's PDF under dir. The document is written to
// a temporary file and renamed into place, so a failed write leaves nothing
// behind under the artifact's name.
func WriteFile(dir string, a *Artifact) (string, error) {
	if a == nil || len(a.PDF) == 0 {
		return "", ErrRenderTargetUnavailable
	}
	path := filepath.Join(dir, filepath.Base(a.Name))

	err := writeLocks.Do(path, func() error {
		return writeAtomic(dir, path, a.PDF)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func writeAtomic(dir, path string, data []byte) (err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".certificate-*.pdf")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move artifact into place: %w", err)
	}
	return nil
}
