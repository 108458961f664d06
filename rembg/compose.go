// Package rembg 使用预先计算好的逐帧蒙版，把主体合成到纯色（默认白色）背景上
package rembg

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/nfnt/resize"

	"github.com/chaos-io/mattekit/util"
)

var (
	// ErrSizeMismatch 帧与蒙版尺寸不一致
	ErrSizeMismatch = errors.New("frame and mask size mismatch")
	// ErrBackendUnavailable 合成后端在当前构建中不可用
	ErrBackendUnavailable = errors.New("compositor backend unavailable")
)

const (
	BackendGo   = "go"
	BackendGoCV = "gocv"
)

// White 默认背景色
var White = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Compositor 把帧按蒙版合成到背景上
type Compositor interface {
	Composite(frame image.Image, mask *image.Gray) (image.Image, error)
}

// NewCompositor 按名称选择合成后端
func NewCompositor(backend string, bg color.RGBA) (Compositor, error) {
	switch backend {
	case "", BackendGo:
		return &Blender{Background: bg}, nil
	case BackendGoCV:
		c, err := NewGoCVCompositor(bg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendCutout:
		return Cutout{}, nil
	default:
		return nil, fmt.Errorf("unknown compositor backend %q", backend)
	}
}

// Blender 纯 Go 实现的 alpha 混合
type Blender struct {
	Background color.RGBA
}

// Composite 逐像素计算 out = frame*m + bg*(1-m)，m = mask/255，结果截断为 8 位
func (b *Blender) Composite(frame image.Image, mask *image.Gray) (image.Image, error) {
	src := util.ToRGBA(frame)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	mb := mask.Bounds()
	if mb.Dx() != w || mb.Dy() != h {
		return nil, fmt.Errorf("frame %dx%d, mask %dx%d: %w", w, h, mb.Dx(), mb.Dy(), ErrSizeMismatch)
	}

	bg := [3]float64{float64(b.Background.R), float64(b.Background.G), float64(b.Background.B)}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		srow := src.Pix[y*src.Stride:]
		drow := out.Pix[y*out.Stride:]
		mrow := mask.Pix[y*mask.Stride:]
		for x := 0; x < w; x++ {
			m := float64(mrow[x]) / 255.0
			for c := 0; c < 3; c++ {
				drow[x*4+c] = blend(float64(srow[x*4+c]), bg[c], m)
			}
			drow[x*4+3] = 255
		}
	}
	return out, nil
}

func blend(fg, bg, m float64) uint8 {
	v := fg*m + bg*(1-m)
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// FitMask 把蒙版缩放到 w x h
func FitMask(mask *image.Gray, w, h int) *image.Gray {
	b := mask.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return mask
	}
	return util.ToGray(resize.Resize(uint(w), uint(h), mask, resize.Bilinear))
}
