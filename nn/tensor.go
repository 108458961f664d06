// Package nn 提供分割网络解码器使用的基础张量与模块（ResBlk、ASPP 注意力模块）
package nn

import (
	"errors"
	"fmt"
	"image"
)

// ErrShapeMismatch 输入张量形状与模块参数不匹配
var ErrShapeMismatch = errors.New("tensor shape mismatch")

// Tensor 4 维特征张量，按 NCHW 行主序存储
type Tensor struct {
	N, C, H, W int
	Data       []float32
}

// NewTensor 创建全零张量
func NewTensor(n, c, h, w int) *Tensor {
	if n < 0 || c < 0 || h < 0 || w < 0 {
		panic(fmt.Sprintf("nn: negative tensor shape %dx%dx%dx%d", n, c, h, w))
	}
	return &Tensor{N: n, C: c, H: h, W: w, Data: make([]float32, n*c*h*w)}
}

// FromImage 把图片转换为 1x3xHxW 张量，像素值归一化到 [0,1]
func FromImage(img image.Image) *Tensor {
	b := img.Bounds()
	t := NewTensor(1, 3, b.Dy(), b.Dx())
	plane := t.H * t.W
	for y := 0; y < t.H; y++ {
		for x := 0; x < t.W; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*t.W + x
			t.Data[i] = float32(r) / 65535
			t.Data[plane+i] = float32(g) / 65535
			t.Data[2*plane+i] = float32(bl) / 65535
		}
	}
	return t
}

func (t *Tensor) Shape() [4]int {
	return [4]int{t.N, t.C, t.H, t.W}
}

func (t *Tensor) Index(n, c, h, w int) int {
	return ((n*t.C+c)*t.H+h)*t.W + w
}

func (t *Tensor) At(n, c, h, w int) float32 {
	return t.Data[t.Index(n, c, h, w)]
}

func (t *Tensor) Set(n, c, h, w int, v float32) {
	t.Data[t.Index(n, c, h, w)] = v
}

// Fill 将所有元素设置为 v
func (t *Tensor) Fill(v float32) {
	for i := range t.Data {
		t.Data[i] = v
	}
}

func (t *Tensor) Clone() *Tensor {
	c := &Tensor{N: t.N, C: t.C, H: t.H, W: t.W, Data: make([]float32, len(t.Data))}
	copy(c.Data, t.Data)
	return c
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor[%d %d %d %d]", t.N, t.C, t.H, t.W)
}

// Cat 沿通道维拼接，要求 batch 与空间尺寸一致
func Cat(ts ...*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("cat: no tensors: %w", ErrShapeMismatch)
	}
	first := ts[0]
	channels := 0
	for _, t := range ts {
		if t.N != first.N || t.H != first.H || t.W != first.W {
			return nil, fmt.Errorf("cat: %v vs %v: %w", first, t, ErrShapeMismatch)
		}
		channels += t.C
	}

	out := NewTensor(first.N, channels, first.H, first.W)
	plane := first.H * first.W
	for n := 0; n < first.N; n++ {
		offset := n * channels * plane
		for _, t := range ts {
			src := t.Data[n*t.C*plane : (n+1)*t.C*plane]
			copy(out.Data[offset:], src)
			offset += len(src)
		}
	}
	return out, nil
}
