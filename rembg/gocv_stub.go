//go:build !gocv
// +build !gocv

package rembg

import (
	"image"
	"image/color"
)

type GoCVCompositor struct {
	Background color.RGBA
}

// NewGoCVCompositor 未启用 gocv 构建标签时返回 ErrBackendUnavailable
func NewGoCVCompositor(color.RGBA) (*GoCVCompositor, error) {
	return nil, ErrBackendUnavailable
}

func (*GoCVCompositor) Composite(image.Image, *image.Gray) (image.Image, error) {
	return nil, ErrBackendUnavailable
}
