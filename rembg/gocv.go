//go:build gocv
// +build gocv

package rembg

import (
	"errors"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/chaos-io/mattekit/util"
)

// GoCVCompositor 基于 OpenCV 的合成实现
type GoCVCompositor struct {
	Background color.RGBA
}

func NewGoCVCompositor(bg color.RGBA) (*GoCVCompositor, error) {
	return &GoCVCompositor{Background: bg}, nil
}

// Composite 与 Blender 相同的混合公式；OpenCV 转 8 位时四舍五入而不是截断
func (g *GoCVCompositor) Composite(frame image.Image, mask *image.Gray) (image.Image, error) {
	fb, mb := frame.Bounds(), mask.Bounds()
	if fb.Dx() != mb.Dx() || fb.Dy() != mb.Dy() {
		return nil, ErrSizeMismatch
	}

	frameMat, err := gocv.ImageToMatRGB(util.ToRGBA(frame))
	if err != nil {
		return nil, err
	}
	defer frameMat.Close()

	maskMat, err := gocv.ImageGrayToMatGray(mask)
	if err != nil {
		return nil, err
	}
	defer maskMat.Close()

	if frameMat.Empty() || maskMat.Empty() {
		return nil, errors.New("empty image")
	}

	frameF := gocv.NewMat()
	defer frameF.Close()
	frameMat.ConvertTo(&frameF, gocv.MatTypeCV32FC3)

	// 蒙版归一化到 [0,1] 并复制成 3 通道
	maskF := gocv.NewMat()
	defer maskF.Close()
	maskMat.ConvertToWithParams(&maskF, gocv.MatTypeCV32F, 1.0/255.0, 0)

	mask3 := gocv.NewMat()
	defer mask3.Close()
	gocv.Merge([]gocv.Mat{maskF, maskF, maskF}, &mask3)

	ones := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 1, 1, 0), frameF.Rows(), frameF.Cols(), gocv.MatTypeCV32FC3)
	defer ones.Close()

	inv := gocv.NewMat()
	defer inv.Close()
	gocv.Subtract(ones, mask3, &inv)

	// ImageToMatRGB 得到的是 BGR 顺序
	bg := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(g.Background.B), float64(g.Background.G), float64(g.Background.R), 0),
		frameF.Rows(), frameF.Cols(), gocv.MatTypeCV32FC3)
	defer bg.Close()

	fg := gocv.NewMat()
	defer fg.Close()
	gocv.Multiply(frameF, mask3, &fg)

	back := gocv.NewMat()
	defer back.Close()
	gocv.Multiply(bg, inv, &back)

	sum := gocv.NewMat()
	defer sum.Close()
	gocv.Add(fg, back, &sum)

	out := gocv.NewMat()
	defer out.Close()
	sum.ConvertTo(&out, gocv.MatTypeCV8UC3)

	return out.ToImage()
}
