package render

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRasterize_Geometry(t *testing.T) {
	l := Compose(sampleRecord(), WithClock(fixedClock))

	img, err := Rasterize(l, 1)
	require.NoError(t, err)
	assert.Equal(t, CanvasWidth, img.Bounds().Dx())
	assert.Equal(t, CanvasHeight, img.Bounds().Dy())

	// Seal center is opaque over everything beneath it.
	assert.Equal(t, color.RGBA{R: 0x1e, G: 0x40, B: 0xaf, A: 0xff}, img.RGBAAt(353, 56))
	// The frame stroke covers the outer edge.
	assert.Equal(t, color.RGBA{R: 0xef, G: 0xf6, B: 0xff, A: 0xff}, img.RGBAAt(2, 250))
}

func TestRasterize_Opaque(t *testing.T) {
	img, err := Rasterize(Compose(sampleRecord(), WithClock(fixedClock)), 1)
	require.NoError(t, err)
	assert.True(t, img.Opaque())
}

func TestRasterize_NilLayout(t *testing.T) {
	_, err := Rasterize(nil, 1)
	assert.Error(t, err)
}
