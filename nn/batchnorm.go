package nn

import (
	"fmt"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/blas/blas32"
)

const (
	bnEps      = 1e-5
	bnMomentum = 0.1
)

// BatchNorm2d 按通道归一化；推理时使用滑动均值/方差，训练时使用批统计量并更新滑动统计量
type BatchNorm2d struct {
	Channels    int
	Weight      []float32
	Bias        []float32
	RunningMean []float32
	RunningVar  []float32
}

func NewBatchNorm2d(channels int) *BatchNorm2d {
	bn := &BatchNorm2d{
		Channels:    channels,
		Weight:      make([]float32, channels),
		Bias:        make([]float32, channels),
		RunningMean: make([]float32, channels),
		RunningVar:  make([]float32, channels),
	}
	bn.Reset()
	return bn
}

// Reset 权重填 1、偏置填 0，滑动统计量回到初始值
func (bn *BatchNorm2d) Reset() {
	for i := 0; i < bn.Channels; i++ {
		bn.Weight[i] = 1
		bn.Bias[i] = 0
		bn.RunningMean[i] = 0
		bn.RunningVar[i] = 1
	}
}

func (bn *BatchNorm2d) Forward(x *Tensor, train bool) (*Tensor, error) {
	if x.C != bn.Channels {
		return nil, fmt.Errorf("batchnorm expects %d channels, got %v: %w", bn.Channels, x, ErrShapeMismatch)
	}
	count := x.N * x.H * x.W
	if train && count < 2 {
		return nil, fmt.Errorf("batchnorm needs more than 1 value per channel when training, got %v: %w", x, ErrShapeMismatch)
	}

	out := x.Clone()
	plane := x.H * x.W
	unit := vector(ones(plane))
	for c := 0; c < x.C; c++ {
		mean, variance := bn.RunningMean[c], bn.RunningVar[c]
		if train {
			mean, variance = channelStats(x, c, unit)
			unbiased := variance * float32(count) / float32(count-1)
			bn.RunningMean[c] = (1-bnMomentum)*bn.RunningMean[c] + bnMomentum*mean
			bn.RunningVar[c] = (1-bnMomentum)*bn.RunningVar[c] + bnMomentum*unbiased
		}
		scale := bn.Weight[c] / math32.Sqrt(variance+bnEps)
		shift := bn.Bias[c] - mean*scale
		for n := 0; n < x.N; n++ {
			v := vector(out.Data[out.Index(n, c, 0, 0) : out.Index(n, c, 0, 0)+plane])
			blas32.Scal(scale, v)
			blas32.Axpy(shift, unit, v)
		}
	}
	return out, nil
}

// channelStats 计算单通道的均值与有偏方差，unit 为长度 H*W 的全 1 向量
func channelStats(x *Tensor, c int, unit blas32.Vector) (float32, float32) {
	plane := x.H * x.W
	var sum float64
	for n := 0; n < x.N; n++ {
		base := x.Index(n, c, 0, 0)
		sum += float64(blas32.Dot(vector(x.Data[base:base+plane]), unit))
	}
	count := float64(x.N * plane)
	mean := float32(sum / count)

	centered := make([]float32, plane)
	var sq float64
	for n := 0; n < x.N; n++ {
		base := x.Index(n, c, 0, 0)
		copy(centered, x.Data[base:base+plane])
		d := vector(centered)
		blas32.Axpy(-mean, unit, d)
		sq += float64(blas32.Dot(d, d))
	}
	return mean, float32(sq / count)
}
