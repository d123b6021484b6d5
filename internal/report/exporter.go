// Package report renders filtered inspection records as spreadsheet,
// delimited text or paginated document exports.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vehicle-inspection-backend/config"
	"vehicle-inspection-backend/internal/apperr"
	"vehicle-inspection-backend/internal/model"
	"vehicle-inspection-backend/internal/parse"
	"vehicle-inspection-backend/internal/query"
)

// Format is an export output type.
type Format string

const (
	FormatSpreadsheet Format = "spreadsheet"
	FormatDelimited   Format = "delimited"
	FormatDocument    Format = "document"
)

// ParseFormat accepts a format name or its common file-type alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spreadsheet", "excel", "xlsx":
		return FormatSpreadsheet, nil
	case "delimited", "csv":
		return FormatDelimited, nil
	case "document", "pdf":
		return FormatDocument, nil
	}
	return "", apperr.Validation("format", "unsupported export format %q", s)
}

// Extension is the file suffix including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatSpreadsheet:
		return ".xlsx"
	case FormatDelimited:
		return ".csv"
	case FormatDocument:
		return ".pdf"
	}
	return ""
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatSpreadsheet:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatDelimited:
		return "text/csv; charset=utf-8"
	case FormatDocument:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Source is the part of the record store the exporter reads from.
type Source interface {
	Count(ctx context.Context, f query.Filter) (int64, error)
	Page(ctx context.Context, f query.Filter) ([]model.Record, int64, error)
}

// DocumentCanvas is a canvas that can also measure text and serialize the
// finished document.
type DocumentCanvas interface {
	Canvas
	Measurer
	Family() string
	Finish(w io.Writer) error
}

// Result describes a finished export file.
type Result struct {
	Path   string
	Name   string
	Format Format
	Rows   int
}

// Exporter writes filtered record exports into a directory.
type Exporter struct {
	src       Source
	cfg       config.ReportConfig
	now       func() time.Time
	log       logrus.FieldLogger
	newCanvas func() (DocumentCanvas, error)
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithClock overrides the clock used for the generated-on stamp.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// WithCanvas overrides the document canvas factory.
func WithCanvas(factory func() (DocumentCanvas, error)) Option {
	return func(e *Exporter) { e.newCanvas = factory }
}

// NewExporter creates an Exporter and its output directory.
func NewExporter(src Source, cfg config.ReportConfig, log logrus.FieldLogger, opts ...Option) (*Exporter, error) {
	if err := os.MkdirAll(cfg.ExportDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}
	e := &Exporter{
		src: src,
		cfg: cfg,
		now: time.Now,
		log: log.WithField("component", "report"),
	}
	e.newCanvas = func() (DocumentCanvas, error) {
		return NewPDF(PDFOptions{Family: cfg.FontFamily, FontPath: cfg.FontPath, BoldFontPath: cfg.BoldFontPath})
	}
	for _, opt := range opts {
		opt(e)
	}
	if cfg.FontPath == "" {
		e.log.Warnf("report.font_path is not set: documents use the core %s face and non Latin-1 text prints as '?'", coreFamily)
	}
	return e, nil
}

// Export renders every record matching f, ignoring its pagination. The file
// is written under a temporary name and only renamed into place once it is
// complete.
func (e *Exporter) Export(ctx context.Context, format Format, f query.Filter, user string) (Result, error) {
	if format.Extension() == "" {
		return Result{}, apperr.Validation("format", "unsupported export format %q", format)
	}

	total, err := e.src.Count(ctx, f)
	if err != nil {
		return Result{}, err
	}
	records, _, err := e.src.Page(ctx, f.Unpaged(total))
	if err != nil {
		return Result{}, err
	}
	rows := Rows(records)

	tmp, err := os.CreateTemp(e.cfg.ExportDir, ".export-*")
	if err != nil {
		return Result{}, apperr.Storage("create export", err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := e.render(format, tmp, rows, user); err != nil {
		return Result{}, apperr.Storage("render "+string(format), err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, apperr.Storage("close export", err)
	}

	now := e.now()
	name := fmt.Sprintf("records-%s-%s%s", now.Format("20060102-150405"), uuid.NewString()[:8], format.Extension())
	path := filepath.Join(e.cfg.ExportDir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Result{}, apperr.Storage("publish export", err)
	}
	committed = true

	e.log.WithFields(logrus.Fields{"format": format, "rows": len(rows), "user": user, "file": name}).Info("Export written")
	return Result{Path: path, Name: name, Format: format, Rows: len(rows)}, nil
}

func (e *Exporter) render(format Format, w io.Writer, rows [][]string, user string) error {
	switch format {
	case FormatSpreadsheet:
		return WriteSpreadsheet(w, e.cfg.Columns, rows)
	case FormatDelimited:
		return WriteDelimited(w, e.cfg.Columns, rows)
	case FormatDocument:
		return e.renderDocument(w, rows, user)
	}
	return fmt.Errorf("unsupported format %q", format)
}

func (e *Exporter) renderDocument(w io.Writer, rows [][]string, user string) error {
	canvas, err := e.newCanvas()
	if err != nil {
		return err
	}

	doc := Document{
		Family:    canvas.Family(),
		LogoPath:  e.logoPath(),
		Titles:    e.cfg.Titles,
		Subtitles: e.cfg.Subtitles,
		Stamp:     Stamp(e.cfg.GeneratedLabel, e.cfg.ByLabel, e.now(), user),
		Columns:   e.cfg.Columns,
		Rows:      rows,
		Signature: e.cfg.SignatureLines,
	}

	plan, err := Layout(doc, canvas)
	if err != nil {
		return err
	}
	if err := Replay(plan, canvas, doc.Family); err != nil {
		return err
	}
	return canvas.Finish(w)
}

func (e *Exporter) logoPath() string {
	if e.cfg.LogoPath == "" {
		return ""
	}
	if _, err := os.Stat(e.cfg.LogoPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			e.log.WithError(err).Warn("Logo is not readable, skipping")
		}
		return ""
	}
	return e.cfg.LogoPath
}

// Stamp builds the "generated on <dd/mm/yyyy> (by <user>)" line.
func Stamp(generatedLabel, byLabel string, at time.Time, user string) string {
	if user == "" {
		user = "Unknown"
	}
	return fmt.Sprintf("%s %s (%s %s)", generatedLabel, parse.BoundaryText(at), byLabel, user)
}
