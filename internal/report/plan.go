package report

// Color is an RGB fill, stroke or text color.
type Color struct {
	R, G, B int
}

var (
	colorBlack      = Color{0, 0, 0}
	colorWhite      = Color{255, 255, 255}
	colorHeader     = Color{0x0d, 0x47, 0xa1}
	colorWhiteSmoke = Color{245, 245, 245}
	colorLightGrey  = Color{211, 211, 211}
	colorGrid       = Color{128, 128, 128}
)

// Font selects a face and size. Style is "" for regular or "B" for bold.
type Font struct {
	Family string
	Style  string
	Size   float64
}

// Align is the horizontal anchor of a text op relative to its X.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// OpKind identifies a draw command.
type OpKind int

const (
	OpText OpKind = iota
	OpRect
	OpImage
)

// Op is one recorded draw command. Coordinates are points from the top-left
// corner of the page; for text Y is the baseline.
type Op struct {
	Kind      OpKind
	X, Y      float64
	W, H      float64
	Text      string
	Font      Font
	Align     Align
	Color     Color
	Fill      *Color
	Stroke    bool
	LineWidth float64
	Path      string
}

// Cursor is the layout position when a page was closed.
type Cursor struct {
	Y    float64
	Rows int
}

// Page is the ordered draw list of one page.
type Page struct {
	Ops    []Op
	Cursor Cursor
}

// RenderPlan is the complete output of the layout pass.
type RenderPlan struct {
	Pages []Page
}

// Measurer reports the rendered width of text in points.
type Measurer interface {
	Width(text string, font Font) float64
}

// Canvas receives a replayed plan page by page.
type Canvas interface {
	BeginPage() error
	Draw(op Op) error
	EndPage() error
}
