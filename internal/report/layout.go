package report

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Page geometry for A4 portrait, in points.
const (
	PageWidth  = 595.28
	PageHeight = 841.89

	marginLeft   = 30.0
	marginRight  = 30.0
	marginTop    = 40.0
	marginBottom = 30.0

	bodySize        = 12.0
	bodyLeading     = 14.0
	titleSize       = 16.0
	titleLeading    = 19.2
	titleSpaceAfter = 10.0
	preambleGap     = 12.0
	signatureGap    = 30.0
	signatureStep   = 20.0

	cellPadX  = 6.0
	cellPadY  = 3.0
	gridWidth = 0.25

	logoWidth  = 250.0
	logoHeight = 60.0

	mm = 72.0 / 25.4
)

// Footer placement: right edge at 200mm, baseline 10mm above the page bottom.
const (
	footerX = 200 * mm
	footerY = PageHeight - 10*mm
)

// columnWeights are the relative widths of the seven record columns.
var columnWeights = []float64{70, 70, 60, 100, 100, 80, 80}

// Document is the content of a printed report.
type Document struct {
	Family    string
	LogoPath  string
	Titles    []string
	Subtitles []string
	Stamp     string
	Columns   []string
	Rows      [][]string
	Signature []string
}

var errNoColumns = errors.New("report: document has no columns")

// Layout runs the first pass: it measures and places every element and
// records the draw commands of each page. Nothing is drawn.
func Layout(doc Document, m Measurer) (RenderPlan, error) {
	if len(doc.Columns) == 0 {
		return RenderPlan{}, errNoColumns
	}
	for i, row := range doc.Rows {
		if len(row) != len(doc.Columns) {
			return RenderPlan{}, fmt.Errorf("report: row %d has %d cells, want %d", i, len(row), len(doc.Columns))
		}
	}

	l := &layouter{
		m:       m,
		regular: Font{Family: doc.Family, Size: bodySize},
		bold:    Font{Family: doc.Family, Style: "B", Size: titleSize},
		widths:  columnWidths(len(doc.Columns)),
		y:       marginTop,
	}

	if doc.LogoPath != "" {
		l.ensure(logoHeight)
		l.add(Op{Kind: OpImage, X: (PageWidth - logoWidth) / 2, Y: l.y, W: logoWidth, H: logoHeight, Path: doc.LogoPath})
		l.y += logoHeight + titleSpaceAfter
	}
	for _, title := range doc.Titles {
		l.ensure(titleLeading)
		l.add(Op{Kind: OpText, X: PageWidth / 2, Y: l.y + titleSize, Text: title, Font: l.bold, Align: AlignCenter, Color: colorBlack})
		l.y += titleLeading + titleSpaceAfter
	}
	for _, line := range append(append([]string(nil), doc.Subtitles...), doc.Stamp) {
		if line == "" {
			continue
		}
		l.paragraph(line)
	}
	l.y += preambleGap

	header := l.measureRow(doc.Columns)
	l.ensure(header.height)
	l.placeRow(header, &colorHeader, colorWhite)
	for i, cells := range doc.Rows {
		row := l.measureRow(dashEmpty(cells))
		fitsFreshPage := row.height <= PageHeight-marginBottom-marginTop-header.height
		if l.y+row.height > PageHeight-marginBottom && l.y > marginTop+header.height && fitsFreshPage {
			l.breakPage()
			l.placeRow(header, &colorHeader, colorWhite)
		}
		fill := colorWhiteSmoke
		if i%2 == 1 {
			fill = colorLightGrey
		}
		// A row taller than a page is split; its remaining lines continue
		// below the header of the next page.
		for l.y+row.height > PageHeight-marginBottom {
			if n := l.linesLeft(); n > 0 {
				var head measuredRow
				head, row = row.split(n)
				l.placeRow(head, &fill, colorBlack)
			}
			l.breakPage()
			l.placeRow(header, &colorHeader, colorWhite)
		}
		l.placeRow(row, &fill, colorBlack)
		l.rows++
	}

	l.y += signatureGap
	for i, line := range doc.Signature {
		if i > 0 {
			l.y += signatureStep
		}
		l.paragraph(line)
	}

	l.closePage()
	return RenderPlan{Pages: l.pages}, nil
}

// Replay runs the second pass. Every page is drawn from the plan and then
// stamped with "current/total" before it is committed to the canvas.
func Replay(plan RenderPlan, c Canvas, family string) error {
	total := len(plan.Pages)
	for i, page := range plan.Pages {
		if err := c.BeginPage(); err != nil {
			return fmt.Errorf("begin page %d: %w", i+1, err)
		}
		for _, op := range page.Ops {
			if err := c.Draw(op); err != nil {
				return fmt.Errorf("draw page %d: %w", i+1, err)
			}
		}
		if err := c.Draw(footer(i+1, total, family)); err != nil {
			return fmt.Errorf("draw footer %d: %w", i+1, err)
		}
		if err := c.EndPage(); err != nil {
			return fmt.Errorf("end page %d: %w", i+1, err)
		}
	}
	return nil
}

func footer(current, total int, family string) Op {
	return Op{
		Kind:  OpText,
		X:     footerX,
		Y:     footerY,
		Text:  fmt.Sprintf("%d/%d", current, total),
		Font:  Font{Family: family, Size: bodySize},
		Align: AlignRight,
		Color: colorBlack,
	}
}

func columnWidths(n int) []float64 {
	usable := PageWidth - marginLeft - marginRight
	weights := columnWeights
	if n != len(columnWeights) {
		weights = make([]float64, n)
		for i := range weights {
			weights[i] = 1
		}
	}
	var sum float64
	for _, w := range weights {
		sum += w
	}
	widths := make([]float64, n)
	for i, w := range weights {
		widths[i] = w / sum * usable
	}
	return widths
}

func dashEmpty(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		if strings.TrimSpace(c) == "" {
			c = "-"
		}
		out[i] = c
	}
	return out
}

type measuredRow struct {
	lines  [][]string
	height float64
}

// split cuts the row after n lines. The tail keeps the remaining lines of
// every cell.
func (r measuredRow) split(n int) (head, tail measuredRow) {
	head.lines = make([][]string, len(r.lines))
	tail.lines = make([][]string, len(r.lines))
	rest := 0
	for i, lines := range r.lines {
		k := min(n, len(lines))
		head.lines[i] = lines[:k]
		tail.lines[i] = lines[k:]
		rest = max(rest, len(lines)-k)
	}
	head.height = float64(n)*bodyLeading + 2*cellPadY
	tail.height = float64(rest)*bodyLeading + 2*cellPadY
	return head, tail
}

type layouter struct {
	m       Measurer
	regular Font
	bold    Font
	widths  []float64

	pages []Page
	ops   []Op
	y     float64
	rows  int
}

func (l *layouter) add(op Op) { l.ops = append(l.ops, op) }

func (l *layouter) closePage() {
	l.pages = append(l.pages, Page{Ops: l.ops, Cursor: Cursor{Y: l.y, Rows: l.rows}})
	l.ops = nil
}

func (l *layouter) breakPage() {
	l.closePage()
	l.y = marginTop
}

// ensure starts a new page when h does not fit below the cursor.
func (l *layouter) ensure(h float64) {
	if l.y+h > PageHeight-marginBottom && l.y > marginTop {
		l.breakPage()
	}
}

// linesLeft is how many text lines of a table row fit below the cursor.
func (l *layouter) linesLeft() int {
	return int(math.Floor((PageHeight - marginBottom - l.y - 2*cellPadY) / bodyLeading))
}

func (l *layouter) paragraph(text string) {
	for _, line := range wrap(text, PageWidth-marginLeft-marginRight, l.regular, l.m) {
		l.ensure(bodyLeading)
		l.add(Op{Kind: OpText, X: marginLeft, Y: l.y + bodySize, Text: line, Font: l.regular, Color: colorBlack})
		l.y += bodyLeading
	}
}

func (l *layouter) measureRow(cells []string) measuredRow {
	row := measuredRow{lines: make([][]string, len(cells))}
	maxLines := 1
	for i, cell := range cells {
		row.lines[i] = wrap(cell, l.widths[i]-2*cellPadX, l.regular, l.m)
		if len(row.lines[i]) > maxLines {
			maxLines = len(row.lines[i])
		}
	}
	row.height = float64(maxLines)*bodyLeading + 2*cellPadY
	return row
}

func (l *layouter) placeRow(row measuredRow, fill *Color, text Color) {
	x := marginLeft
	for i, lines := range row.lines {
		w := l.widths[i]
		l.add(Op{Kind: OpRect, X: x, Y: l.y, W: w, H: row.height, Fill: fill, Stroke: true, LineWidth: gridWidth, Color: colorGrid})

		top := l.y + (row.height-float64(len(lines))*bodyLeading)/2
		for k, line := range lines {
			if line == "" {
				continue
			}
			l.add(Op{Kind: OpText, X: x + cellPadX, Y: top + float64(k)*bodyLeading + bodySize*0.9, Text: line, Font: l.regular, Color: text})
		}
		x += w
	}
	l.y += row.height
}

// wrap breaks text into lines no wider than width. Words wider than a line
// are split between runes.
func wrap(text string, width float64, font Font, m Measurer) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := ""
		for _, word := range words {
			candidate := word
			if line != "" {
				candidate = line + " " + word
			}
			if m.Width(candidate, font) <= width {
				line = candidate
				continue
			}
			if line != "" {
				lines = append(lines, line)
			}
			for m.Width(word, font) > width {
				cut := fitPrefix(word, width, font, m)
				lines = append(lines, word[:cut])
				word = word[cut:]
			}
			line = word
		}
		lines = append(lines, line)
	}
	return lines
}

// fitPrefix returns the byte length of the longest rune prefix of word that
// fits in width. At least one rune is always taken.
func fitPrefix(word string, width float64, font Font, m Measurer) int {
	cut := 0
	for i := range word {
		if i == 0 {
			continue
		}
		if m.Width(word[:i], font) > width {
			break
		}
		cut = i
	}
	if cut == 0 {
		for i := range word {
			if i > 0 {
				return i
			}
		}
		return len(word)
	}
	return cut
}
