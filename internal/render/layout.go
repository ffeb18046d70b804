// Package render turns a certificate record into a fixed-layout visual and
// exports it as a single-page landscape PDF. Every stage is a pure function
// of the record; the only outside input is the clock used when the record
// carries no issue date.
package render

import (
	"image/color"
	"math"
	"time"

	"certchain/internal/certificate"
)

// Canvas size in layout units (1.414:1, a landscape A4 page).
const (
	CanvasWidth  = 707
	CanvasHeight = 500
)

// Placeholders printed for empty record fields.
const (
	PlaceholderInstitution   = "Cambridge University"
	PlaceholderWatermark     = "UNIVERSITY"
	PlaceholderStudentName   = "Student Name"
	PlaceholderCourseName    = "Course Name"
	PlaceholderGrade         = "Distinction"
	PlaceholderDirector      = "Program Director"
	PlaceholderRegistrar     = "University Registrar"
	PlaceholderCertificateID = "CERT-12345"
)

// Region names, top to bottom.
const (
	RegionHeader     = "header"
	RegionTitle      = "title"
	RegionRecipient  = "recipient"
	RegionCourse     = "course"
	RegionGrade      = "grade"
	RegionSignatures = "signatures"
	RegionFooter     = "footer"
	RegionFrame      = "frame"
)

// Face selects a typeface of the Go font family.
type Face string

const (
	FaceRegular Face = "regular"
	FaceBold    Face = "bold"
	FaceItalic  Face = "italic"
	FaceMedium  Face = "medium"
)

// Align positions a text run relative to its X anchor.
type Align int

const (
	AlignCenter Align = iota
	AlignLeft
	AlignRight
)

// Palette.
var (
	colorWhite   = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	colorBlue50  = color.NRGBA{R: 0xef, G: 0xf6, B: 0xff, A: 0xff}
	colorBlue200 = color.NRGBA{R: 0xbf, G: 0xdb, B: 0xfe, A: 0xff}
	colorBlue700 = color.NRGBA{R: 0x1d, G: 0x4e, B: 0xd8, A: 0x33}
	colorBlue800 = color.NRGBA{R: 0x1e, G: 0x40, B: 0xaf, A: 0xff}
	colorBlue900 = color.NRGBA{R: 0x1e, G: 0x3a, B: 0x8a, A: 0xff}
	colorGray200 = color.NRGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: 0xff}
	colorGray300 = color.NRGBA{R: 0xd1, G: 0xd5, B: 0xdb, A: 0xff}
	colorGray500 = color.NRGBA{R: 0x6b, G: 0x72, B: 0x80, A: 0xff}
	colorGray600 = color.NRGBA{R: 0x4b, G: 0x55, B: 0x63, A: 0xff}
	colorInk     = color.NRGBA{R: 0x11, G: 0x18, B: 0x27, A: 0xff}
	colorMark    = color.NRGBA{R: 0x1e, G: 0x3a, B: 0x8a, A: 0x0d}
)

// Text is one run of text. Y is the baseline.
type Text struct {
	Region  string      `json:"region"`
	Content string      `json:"content"`
	X       float64     `json:"x"`
	Y       float64     `json:"y"`
	Size    float64     `json:"size"`
	Face    Face        `json:"face"`
	Align   Align       `json:"align"`
	Color   color.NRGBA `json:"color"`
}

// Box is an axis-aligned rectangle. A zero Fill alpha leaves the interior
// untouched; Stroke is drawn inside the bounds.
type Box struct {
	Region string      `json:"region"`
	X      float64     `json:"x"`
	Y      float64     `json:"y"`
	W      float64     `json:"w"`
	H      float64     `json:"h"`
	Fill   color.NRGBA `json:"fill"`
	Stroke color.NRGBA `json:"stroke"`
	Width  float64     `json:"width"`
	Dashed bool        `json:"dashed,omitempty"`
}

// Disc is a filled circle.
type Disc struct {
	Region string      `json:"region"`
	CX     float64     `json:"cx"`
	CY     float64     `json:"cy"`
	R      float64     `json:"r"`
	Fill   color.NRGBA `json:"fill"`
}

// Watermark is large rotated text centered on the canvas.
type Watermark struct {
	Content string      `json:"content"`
	Size    float64     `json:"size"`
	Angle   float64     `json:"angle"`
	Color   color.NRGBA `json:"color"`
}

// Layout is the fully resolved certificate visual. Draw order: background,
// watermark, boxes, discs, texts.
type Layout struct {
	Width         int         `json:"width"`
	Height        int         `json:"height"`
	Background    color.NRGBA `json:"background"`
	Watermark     Watermark   `json:"watermark"`
	Boxes         []Box       `json:"boxes"`
	Discs         []Disc      `json:"discs"`
	Texts         []Text      `json:"texts"`
	CertificateID string      `json:"certificate_id"`
	StudentName   string      `json:"student_name"`
}

// Option configures Compose.
type Option func(*composeOptions)

type composeOptions struct {
	now func() time.Time
}

// WithClock sets the clock used for the issue date fallback.
func WithClock(now func() time.Time) Option {
	return func(o *composeOptions) {
		o.now = now
	}
}

// Compose maps a record onto the certificate template.
func Compose(r certificate.Record, opts ...Option) *Layout {
	o := composeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	institution := orPlaceholder(r.Institution, PlaceholderInstitution)
	issueDate := r.IssueDate
	if issueDate == "" {
		issueDate = o.now().Format(certificate.DateLayout)
	}
	certID := orPlaceholder(r.CertificateID, PlaceholderCertificateID)

	l := &Layout{
		Width:         CanvasWidth,
		Height:        CanvasHeight,
		Background:    colorWhite,
		CertificateID: certID,
		StudentName:   r.StudentName,
		Watermark: Watermark{
			Content: orPlaceholder(r.Institution, PlaceholderWatermark),
			Size:    96,
			Angle:   45,
			Color:   colorMark,
		},
	}
	const mid = CanvasWidth / 2.0

	l.Boxes = append(l.Boxes, Box{Region: RegionFrame, W: CanvasWidth, H: CanvasHeight, Stroke: colorBlue50, Width: 8})
	l.Boxes = append(l.Boxes, corners()...)

	// Header: seal, institution, department, rule.
	l.Discs = append(l.Discs,
		Disc{Region: RegionHeader, CX: mid, CY: 56, R: 24, Fill: colorBlue800},
		Disc{Region: RegionHeader, CX: mid, CY: 56, R: 12, Fill: colorWhite},
		Disc{Region: RegionHeader, CX: mid, CY: 56, R: 8, Fill: colorBlue800},
	)
	l.Texts = append(l.Texts, Text{Region: RegionHeader, Content: institution, X: mid, Y: 106, Size: 17, Face: FaceBold, Color: colorBlue900})
	if r.Department != "" {
		l.Texts = append(l.Texts, Text{Region: RegionHeader, Content: r.Department, X: mid, Y: 122, Size: 10, Face: FaceRegular, Color: colorGray500})
	}
	l.Boxes = append(l.Boxes, Box{Region: RegionHeader, X: mid - 96, Y: 131, W: 192, H: 1, Fill: colorGray200})

	l.Texts = append(l.Texts,
		Text{Region: RegionTitle, Content: "CERTIFICATE OF", X: mid, Y: 156, Size: 13, Face: FaceRegular, Color: colorGray600},
		Text{Region: RegionTitle, Content: "Academic Achievement", X: mid, Y: 186, Size: 26, Face: FaceBold, Color: colorBlue900},
		Text{Region: RegionRecipient, Content: "This certifies that", X: mid, Y: 208, Size: 10, Face: FaceRegular, Color: colorGray500},
		Text{Region: RegionRecipient, Content: orPlaceholder(r.StudentName, PlaceholderStudentName), X: mid, Y: 236, Size: 22, Face: FaceBold, Color: colorBlue900},
		Text{Region: RegionCourse, Content: "has successfully completed the course of study in", X: mid, Y: 258, Size: 10, Face: FaceRegular, Color: colorGray500},
		Text{Region: RegionCourse, Content: orPlaceholder(r.CourseName, PlaceholderCourseName), X: mid, Y: 282, Size: 17, Face: FaceBold, Color: colorBlue800},
	)
	if len(r.Proficiencies) > 0 {
		l.Texts = append(l.Texts, Text{
			Region:  RegionCourse,
			Content: "with specialization in: " + certificate.JoinProficiencies(r.Proficiencies),
			X:       mid, Y: 302, Size: 10, Face: FaceItalic, Color: colorGray600,
		})
	}

	grade := orPlaceholder(string(r.Grade), PlaceholderGrade)
	l.Boxes = append(l.Boxes, Box{Region: RegionGrade, X: mid - 55, Y: 314, W: 110, H: 24, Stroke: colorBlue200, Width: 1})
	l.Texts = append(l.Texts,
		Text{Region: RegionGrade, Content: grade, X: mid, Y: 330, Size: 12, Face: FaceMedium, Color: colorBlue800},
		Text{Region: RegionGrade, Content: "Issued on " + issueDate, X: mid, Y: 360, Size: 10, Face: FaceRegular, Color: colorGray500},
	)

	// Signature row: director, certificate id, registrar.
	const left, right = 130.0, CanvasWidth - 130.0
	l.Boxes = append(l.Boxes,
		Box{Region: RegionSignatures, X: left - 90, Y: 398, W: 180, H: 1, Fill: colorGray300},
		Box{Region: RegionSignatures, X: right - 90, Y: 398, W: 180, H: 1, Fill: colorGray300},
		Box{Region: RegionSignatures, X: mid - 85, Y: 396, W: 170, H: 20, Stroke: colorGray300, Width: 1, Dashed: true},
	)
	l.Texts = append(l.Texts,
		Text{Region: RegionSignatures, Content: orPlaceholder(r.Signatories.CourseDirector, PlaceholderDirector), X: left, Y: 413, Size: 11, Face: FaceMedium, Color: colorInk},
		Text{Region: RegionSignatures, Content: "Course Director", X: left, Y: 426, Size: 8, Face: FaceRegular, Color: colorGray500},
		Text{Region: RegionSignatures, Content: "Certificate ID: " + certID, X: mid, Y: 410, Size: 8, Face: FaceRegular, Color: colorInk},
		Text{Region: RegionSignatures, Content: "Blockchain Verified", X: mid, Y: 428, Size: 8, Face: FaceRegular, Color: colorGray500},
		Text{Region: RegionSignatures, Content: orPlaceholder(r.Signatories.Registrar, PlaceholderRegistrar), X: right, Y: 413, Size: 11, Face: FaceMedium, Color: colorInk},
		Text{Region: RegionSignatures, Content: "Registrar", X: right, Y: 426, Size: 8, Face: FaceRegular, Color: colorGray500},
	)

	l.Boxes = append(l.Boxes, Box{Region: RegionFooter, X: 40, Y: 444, W: CanvasWidth - 80, H: 1, Fill: colorGray200})
	l.Texts = append(l.Texts, Text{
		Region:  RegionFooter,
		Content: institution + " | " + r.Department + " | Certificate Valid as of " + issueDate,
		X:       mid, Y: 460, Size: 8, Face: FaceRegular, Color: colorGray500,
	})
	return l
}

// RegionTexts returns the text runs of one region in draw order.
func (l *Layout) RegionTexts(region string) []string {
	var out []string
	for _, t := range l.Texts {
		if t.Region == region {
			out = append(out, t.Content)
		}
	}
	return out
}

// corners draws the four L-shaped ornaments 16 units in from each edge.
func corners() []Box {
	const inset, arm, w = 16.0, 64.0, 4.0
	far := func(size float64) float64 { return size - inset - arm }
	var out []Box
	for _, c := range [][2]float64{
		{inset, inset},
		{far(CanvasWidth), inset},
		{inset, far(CanvasHeight)},
		{far(CanvasWidth), far(CanvasHeight)},
	} {
		x, y := c[0], c[1]
		top := y == inset
		leftSide := x == inset
		hy := y
		if !top {
			hy = y + arm - w
		}
		vx := x
		if !leftSide {
			vx = x + arm - w
		}
		out = append(out,
			Box{Region: RegionFrame, X: x, Y: hy, W: arm, H: w, Fill: colorBlue700},
			Box{Region: RegionFrame, X: vx, Y: y, W: w, H: arm, Fill: colorBlue700},
		)
	}
	return out
}

// ArtifactName derives the export file name from the holder's name, replacing
// each whitespace character with an underscore. Without a name the
// certificate id is used.
func (l *Layout) ArtifactName() string {
	base := l.StudentName
	if base == "" {
		base = l.CertificateID
	}
	return sanitizeName(base) + "_Certificate.pdf"
}

func orPlaceholder(value, placeholder string) string {
	if value == "" {
		return placeholder
	}
	return value
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
