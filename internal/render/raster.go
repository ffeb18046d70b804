package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
)

// DefaultScale is the rasterization factor applied to the layout canvas.
const DefaultScale = 2

var parsedFonts = sync.OnceValues(func() (map[Face]*opentype.Font, error) {
	sources := map[Face][]byte{
		FaceRegular: goregular.TTF,
		FaceBold:    gobold.TTF,
		FaceItalic:  goitalic.TTF,
		FaceMedium:  gomedium.TTF,
	}
	out := make(map[Face]*opentype.Font, len(sources))
	for face, ttf := range sources {
		f, err := opentype.Parse(ttf)
		if err != nil {
			return nil, fmt.Errorf("parse %s font: %w", face, err)
		}
		out[face] = f
	}
	return out, nil
})

type faceKey struct {
	face Face
	size float64
}

// faceCache holds sized faces for one rasterization. Faces are not safe for
// concurrent use, so a cache never outlives its Rasterize call.
type faceCache struct {
	fonts map[Face]*opentype.Font
	faces map[faceKey]font.Face
}

func (c *faceCache) get(f Face, size float64) (font.Face, error) {
	key := faceKey{face: f, size: size}
	if face, ok := c.faces[key]; ok {
		return face, nil
	}
	src, ok := c.fonts[f]
	if !ok {
		return nil, fmt.Errorf("unknown face %q", f)
	}
	face, err := opentype.NewFace(src, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil, fmt.Errorf("create %s face: %w", f, err)
	}
	c.faces[key] = face
	return face, nil
}

func (c *faceCache) close() {
	for _, face := range c.faces {
		_ = face.Close()
	}
}

// Rasterize draws the layout onto an opaque image scale times the canvas size.
func Rasterize(l *Layout, scale int) (*image.RGBA, error) {
	if l == nil {
		return nil, fmt.Errorf("nil layout")
	}
	if scale < 1 {
		scale = 1
	}
	fonts, err := parsedFonts()
	if err != nil {
		return nil, err
	}
	faces := &faceCache{fonts: fonts, faces: make(map[faceKey]font.Face)}
	defer faces.close()

	s := float64(scale)
	img := image.NewRGBA(image.Rect(0, 0, l.Width*scale, l.Height*scale))
	bg := l.Background
	bg.A = 0xff
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	if err := drawWatermark(img, l.Watermark, faces, s); err != nil {
		return nil, err
	}
	for _, b := range l.Boxes {
		drawBox(img, b, s)
	}
	for _, d := range l.Discs {
		drawDisc(img, d, s)
	}
	for _, t := range l.Texts {
		if err := drawText(img, t, faces, s); err != nil {
			return nil, err
		}
	}
	return img, nil
}

func drawBox(dst *image.RGBA, b Box, s float64) {
	r := scaleRect(b.X, b.Y, b.W, b.H, s)
	if b.Fill.A > 0 {
		fill(dst, r, b.Fill)
	}
	if b.Stroke.A == 0 || b.Width <= 0 {
		return
	}
	w := max(int(math.Round(b.Width*s)), 1)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w),
		image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y+w, r.Min.X+w, r.Max.Y-w),
		image.Rect(r.Max.X-w, r.Min.Y+w, r.Max.X, r.Max.Y-w),
	}
	for _, e := range edges {
		if b.Dashed {
			dash(dst, e, b.Stroke, 3*w)
			continue
		}
		fill(dst, e, b.Stroke)
	}
}

func dash(dst *image.RGBA, r image.Rectangle, c color.Color, length int) {
	if r.Dx() >= r.Dy() {
		for x := r.Min.X; x < r.Max.X; x += 2 * length {
			fill(dst, image.Rect(x, r.Min.Y, min(x+length, r.Max.X), r.Max.Y), c)
		}
		return
	}
	for y := r.Min.Y; y < r.Max.Y; y += 2 * length {
		fill(dst, image.Rect(r.Min.X, y, r.Max.X, min(y+length, r.Max.Y)), c)
	}
}

func drawDisc(dst *image.RGBA, d Disc, s float64) {
	cx, cy, radius := d.CX*s, d.CY*s, d.R*s
	bounds := image.Rect(
		int(math.Floor(cx-radius)), int(math.Floor(cy-radius)),
		int(math.Ceil(cx+radius)), int(math.Ceil(cy+radius)),
	).Intersect(dst.Bounds())

	mask := image.NewAlpha(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			if dx*dx+dy*dy <= radius*radius {
				mask.SetAlpha(x, y, color.Alpha{A: 0xff})
			}
		}
	}
	draw.DrawMask(dst, bounds, image.NewUniform(d.Fill), image.Point{}, mask, bounds.Min, draw.Over)
}

func drawText(dst *image.RGBA, t Text, faces *faceCache, s float64) error {
	if t.Content == "" {
		return nil
	}
	face, err := faces.get(t.Face, t.Size*s)
	if err != nil {
		return err
	}
	x := toFixed(t.X * s)
	switch width := font.MeasureString(face, t.Content); t.Align {
	case AlignCenter:
		x -= width / 2
	case AlignRight:
		x -= width
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(t.Color),
		Face: face,
		Dot:  fixed.Point26_6{X: x, Y: toFixed(t.Y * s)},
	}
	d.DrawString(t.Content)
	return nil
}

// drawWatermark renders the text upright on its own image, then rotates it
// about the canvas center.
func drawWatermark(dst *image.RGBA, wm Watermark, faces *faceCache, s float64) error {
	if wm.Content == "" || wm.Color.A == 0 {
		return nil
	}
	face, err := faces.get(FaceRegular, wm.Size*s)
	if err != nil {
		return err
	}
	m := face.Metrics()
	w := font.MeasureString(face, wm.Content).Ceil()
	h := (m.Ascent + m.Descent).Ceil()
	if w == 0 || h == 0 {
		return nil
	}
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	d := font.Drawer{Dst: src, Src: image.NewUniform(wm.Color), Face: face, Dot: fixed.Point26_6{Y: m.Ascent}}
	d.DrawString(wm.Content)

	theta := radians(wm.Angle)
	cos, sin := math.Cos(theta), math.Sin(theta)
	sx, sy := float64(w)/2, float64(h)/2
	dx, dy := float64(dst.Bounds().Dx())/2, float64(dst.Bounds().Dy())/2
	aff := f64.Aff3{
		cos, -sin, dx - cos*sx + sin*sy,
		sin, cos, dy - sin*sx - cos*sy,
	}
	draw.BiLinear.Transform(dst, aff, src, src.Bounds(), draw.Over, nil)
	return nil
}

func fill(dst *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Over)
}

func scaleRect(x, y, w, h, s float64) image.Rectangle {
	return image.Rect(
		int(math.Round(x*s)), int(math.Round(y*s)),
		int(math.Round((x+w)*s)), int(math.Round((y+h)*s)),
	)
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}
