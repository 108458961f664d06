package rembg

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(10 * x), G: uint8(20 * y), B: 77, A: 255})
		}
	}
	return img
}

func newMask(w, h int, v uint8) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for i := range m.Pix {
		m.Pix[i] = v
	}
	return m
}

func TestBlender_OpaqueMaskKeepsFrame(t *testing.T) {
	frame := newFrame(4, 3)
	b := &Blender{Background: White}

	got, err := b.Composite(frame, newMask(4, 3, 255))
	require.NoError(t, err)
	assert.Equal(t, frame.Pix, got.(*image.RGBA).Pix)
}

func TestBlender_TransparentMaskIsWhite(t *testing.T) {
	b := &Blender{Background: White}

	got, err := b.Composite(newFrame(4, 3), newMask(4, 3, 0))
	require.NoError(t, err)
	for _, v := range got.(*image.RGBA).Pix {
		require.Equal(t, uint8(255), v)
	}
}

func TestBlender_PartialMaskTruncates(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 1, 1))
	frame.Set(0, 0, color.RGBA{R: 100, G: 0, B: 200, A: 255})
	b := &Blender{Background: White}

	got, err := b.Composite(frame, newMask(1, 1, 128))
	require.NoError(t, err)

	m := 128 / 255.0
	want := []uint8{
		uint8(100*m + 255*(1-m)),
		uint8(0*m + 255*(1-m)),
		uint8(200*m + 255*(1-m)),
		255,
	}
	assert.Equal(t, want, got.(*image.RGBA).Pix)
}

func TestBlender_CustomBackground(t *testing.T) {
	b := &Blender{Background: color.RGBA{R: 0, G: 128, B: 0, A: 255}}

	got, err := b.Composite(newFrame(2, 2), newMask(2, 2, 0))
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{G: 128, A: 255}, got.At(1, 1))
}

func TestBlender_SizeMismatch(t *testing.T) {
	b := &Blender{Background: White}
	_, err := b.Composite(newFrame(4, 3), newMask(3, 3, 255))
	require.ErrorIs(t, err, ErrSizeMismatch)
}

func TestBlender_OffsetFrameBounds(t *testing.T) {
	frame := newFrame(6, 6).SubImage(image.Rect(2, 2, 5, 4))
	b := &Blender{Background: White}

	got, err := b.Composite(frame, newMask(3, 2, 255))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), got.Bounds())
	assert.Equal(t, frame.At(2, 2), got.At(0, 0))
}

func TestFitMask(t *testing.T) {
	m := newMask(2, 2, 200)
	assert.Same(t, m, FitMask(m, 2, 2))

	resized := FitMask(m, 5, 4)
	assert.Equal(t, image.Rect(0, 0, 5, 4), resized.Bounds())
	assert.InDelta(t, 200, float64(resized.GrayAt(2, 2).Y), 1)
}

func TestNewCompositor(t *testing.T) {
	c, err := NewCompositor(BackendGo, White)
	require.NoError(t, err)
	assert.IsType(t, &Blender{}, c)

	c, err = NewCompositor("", White)
	require.NoError(t, err)
	assert.IsType(t, &Blender{}, c)

	_, err = NewCompositor("magick", White)
	require.Error(t, err)
}
