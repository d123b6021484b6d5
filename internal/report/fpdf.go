package report

import (
	"fmt"
	"io"
	"os"

	"github.com/go-pdf/fpdf"
)

const coreFamily = "Helvetica"

// PDFOptions selects the fonts embedded in generated documents. With no
// FontPath the core Helvetica face is used, which covers Latin-1 only.
type PDFOptions struct {
	Family       string
	FontPath     string
	BoldFontPath string
}

// PDF is a Canvas and Measurer backed by fpdf.
type PDF struct {
	pdf       *fpdf.Fpdf
	family    string
	hasBold   bool
	translate func(string) string
}

// NewPDF creates an empty A4 portrait document using point units.
func NewPDF(opts PDFOptions) (*PDF, error) {
	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)

	p := &PDF{pdf: doc}
	if opts.FontPath == "" {
		p.family = coreFamily
		p.hasBold = true
		p.translate = doc.UnicodeTranslatorFromDescriptor("")
		return p, nil
	}

	p.family = opts.Family
	if p.family == "" {
		p.family = "Body"
	}
	regular, err := os.ReadFile(opts.FontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font %s: %w", opts.FontPath, err)
	}
	doc.AddUTF8FontFromBytes(p.family, "", regular)
	if opts.BoldFontPath != "" {
		bold, err := os.ReadFile(opts.BoldFontPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read font %s: %w", opts.BoldFontPath, err)
		}
		doc.AddUTF8FontFromBytes(p.family, "B", bold)
		p.hasBold = true
	}
	p.translate = func(s string) string { return s }

	if err := doc.Error(); err != nil {
		return nil, fmt.Errorf("failed to load fonts: %w", err)
	}
	return p, nil
}

// Family is the registered font family name.
func (p *PDF) Family() string { return p.family }

func (p *PDF) setFont(f Font) {
	style := f.Style
	if !p.hasBold {
		style = ""
	}
	p.pdf.SetFont(p.family, style, f.Size)
}

// Width implements Measurer.
func (p *PDF) Width(text string, f Font) float64 {
	p.setFont(f)
	return p.pdf.GetStringWidth(p.translate(text))
}

// BeginPage implements Canvas.
func (p *PDF) BeginPage() error {
	p.pdf.AddPage()
	return p.pdf.Error()
}

// Draw implements Canvas.
func (p *PDF) Draw(op Op) error {
	switch op.Kind {
	case OpText:
		p.setFont(op.Font)
		p.pdf.SetTextColor(op.Color.R, op.Color.G, op.Color.B)
		text := p.translate(op.Text)
		x := op.X
		switch op.Align {
		case AlignCenter:
			x -= p.pdf.GetStringWidth(text) / 2
		case AlignRight:
			x -= p.pdf.GetStringWidth(text)
		}
		p.pdf.Text(x, op.Y, text)
	case OpRect:
		style := ""
		if op.Fill != nil {
			p.pdf.SetFillColor(op.Fill.R, op.Fill.G, op.Fill.B)
			style += "F"
		}
		if op.Stroke {
			p.pdf.SetDrawColor(op.Color.R, op.Color.G, op.Color.B)
			p.pdf.SetLineWidth(op.LineWidth)
			style += "D"
		}
		if style != "" {
			p.pdf.Rect(op.X, op.Y, op.W, op.H, style)
		}
	case OpImage:
		p.pdf.ImageOptions(op.Path, op.X, op.Y, op.W, op.H, false, fpdf.ImageOptions{ReadDpi: true}, 0, "")
	default:
		return fmt.Errorf("unknown op kind %d", op.Kind)
	}
	return p.pdf.Error()
}

// EndPage implements Canvas. fpdf commits a page when the next one is added
// or the document is closed, so this only surfaces accumulated errors.
func (p *PDF) EndPage() error {
	return p.pdf.Error()
}

// Finish writes the document to w.
func (p *PDF) Finish(w io.Writer) error {
	return p.pdf.Output(w)
}
