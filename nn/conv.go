package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/chewxy/math32"
)

// Module 所有解码器模块的统一接口，train 控制 BatchNorm/Dropout 的行为
type Module interface {
	Forward(x *Tensor, train bool) (*Tensor, error)
}

// Conv2d 步长为 1 的二维空洞卷积
type Conv2d struct {
	InChannels  int
	OutChannels int
	Kernel      int
	Padding     int
	Dilation    int
	Weight      []float32 // [out, in, k, k]
	Bias        []float32 // nil 表示无偏置
}

// NewConv2d 创建卷积层，权重按框架默认方式初始化（均匀分布 ±1/sqrt(fan_in)）
func NewConv2d(in, out, kernel, padding, dilation int, bias bool, rng *rand.Rand) *Conv2d {
	c := &Conv2d{
		InChannels:  in,
		OutChannels: out,
		Kernel:      kernel,
		Padding:     padding,
		Dilation:    dilation,
		Weight:      make([]float32, out*in*kernel*kernel),
	}
	bound := 1 / math32.Sqrt(float32(c.fanIn()))
	uniform(c.Weight, bound, rng)
	if bias {
		c.Bias = make([]float32, out)
		uniform(c.Bias, bound, rng)
	}
	return c
}

func (c *Conv2d) fanIn() int {
	return c.InChannels * c.Kernel * c.Kernel
}

// OutputSize 计算输出空间尺寸
func (c *Conv2d) OutputSize(h, w int) (int, int) {
	span := c.Dilation*(c.Kernel-1) + 1
	return h + 2*c.Padding - span + 1, w + 2*c.Padding - span + 1
}

func (c *Conv2d) Forward(x *Tensor, _ bool) (*Tensor, error) {
	if x.C != c.InChannels {
		return nil, fmt.Errorf("conv2d expects %d channels, got %v: %w", c.InChannels, x, ErrShapeMismatch)
	}
	oh, ow := c.OutputSize(x.H, x.W)
	if oh <= 0 || ow <= 0 {
		return nil, fmt.Errorf("conv2d output %dx%d for input %v: %w", oh, ow, x, ErrShapeMismatch)
	}

	// 每个样本展开为列矩阵后与权重做一次 GEMM
	out := NewTensor(x.N, c.OutChannels, oh, ow)
	rows, plane := c.fanIn(), oh*ow
	w := general(c.OutChannels, rows, c.Weight)
	col := make([]float32, rows*plane)
	for n := 0; n < x.N; n++ {
		dst := out.Data[out.Index(n, 0, 0, 0):]
		if c.Bias != nil {
			for o, b := range c.Bias {
				row := dst[o*plane : (o+1)*plane]
				for i := range row {
					row[i] = b
				}
			}
		}
		c.im2col(x, n, oh, ow, col)
		matmul(w, general(rows, plane, col), false, 1, general(c.OutChannels, plane, dst))
	}
	return out, nil
}

func uniform(dst []float32, bound float32, rng *rand.Rand) {
	for i := range dst {
		dst[i] = (2*rng.Float32() - 1) * bound
	}
}
