package rembg

import (
	"errors"
	"fmt"
	"image"
)

// ErrEmptyMask 蒙版中没有超过阈值的前景像素
var ErrEmptyMask = errors.New("no foreground in mask")

const BackendCutout = "cutout"

// Cutout 不合成背景，直接把蒙版写入 alpha 通道，输出透明底的 NRGBA
type Cutout struct{}

func (Cutout) Composite(frame image.Image, mask *image.Gray) (image.Image, error) {
	fb, mb := frame.Bounds(), mask.Bounds()
	if fb.Dx() != mb.Dx() || fb.Dy() != mb.Dy() {
		return nil, fmt.Errorf("frame %dx%d, mask %dx%d: %w", fb.Dx(), fb.Dy(), mb.Dx(), mb.Dy(), ErrSizeMismatch)
	}

	out := image.NewNRGBA(image.Rect(0, 0, fb.Dx(), fb.Dy()))
	for y := 0; y < fb.Dy(); y++ {
		for x := 0; x < fb.Dx(); x++ {
			r, g, b, _ := frame.At(fb.Min.X+x, fb.Min.Y+y).RGBA()
			i := y*out.Stride + x*4
			out.Pix[i] = uint8(r >> 8)
			out.Pix[i+1] = uint8(g >> 8)
			out.Pix[i+2] = uint8(b >> 8)
			out.Pix[i+3] = mask.Pix[y*mask.Stride+x]
		}
	}
	return out, nil
}

// MaskBBox 计算蒙版中值大于 threshold*255 的像素包围盒
func MaskBBox(mask *image.Gray, threshold float64) (image.Rectangle, error) {
	w, h := mask.Bounds().Dx(), mask.Bounds().Dy()
	th := uint8(threshold * 255)

	minX, minY := w, h
	maxX, maxY := 0, 0
	found := false

	for y := 0; y < h; y++ {
		row := mask.Pix[y*mask.Stride:]
		for x := 0; x < w; x++ {
			if row[x] <= th {
				continue
			}
			found = true
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x), max(maxY, y)
		}
	}

	if !found {
		return image.Rectangle{}, ErrEmptyMask
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), nil
}
