package nn

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// ReLU 逐元素 max(0, x)
type ReLU struct{}

func (ReLU) Forward(x *Tensor, _ bool) (*Tensor, error) {
	out := x.Clone()
	for i, v := range out.Data {
		if v < 0 {
			out.Data[i] = 0
		}
	}
	return out, nil
}

// Dropout 训练时以概率 P 置零并按 1/(1-P) 放大，推理时为恒等变换
type Dropout struct {
	P float32

	mu  sync.Mutex
	rng *rand.Rand
}

func NewDropout(p float32, rng *rand.Rand) *Dropout {
	return &Dropout{P: p, rng: rng}
}

func (d *Dropout) Forward(x *Tensor, train bool) (*Tensor, error) {
	out := x.Clone()
	if !train || d.P == 0 {
		return out, nil
	}
	if d.P >= 1 {
		out.Fill(0)
		return out, nil
	}

	keep := 1 - d.P
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range out.Data {
		if d.rng.Float32() < d.P {
			out.Data[i] = 0
		} else {
			out.Data[i] /= keep
		}
	}
	return out, nil
}

// GlobalAvgPool 自适应平均池化到 1x1
type GlobalAvgPool struct{}

func (GlobalAvgPool) Forward(x *Tensor, _ bool) (*Tensor, error) {
	plane := x.H * x.W
	if plane == 0 {
		return nil, fmt.Errorf("avg pool over empty plane %v: %w", x, ErrShapeMismatch)
	}
	out := NewTensor(x.N, x.C, 1, 1)
	if x.C == 0 {
		return out, nil
	}
	avg := vector(ones(plane))
	for n := 0; n < x.N; n++ {
		planes := general(x.C, plane, x.Data[x.Index(n, 0, 0, 0):])
		dst := vector(out.Data[n*x.C : (n+1)*x.C])
		blas32.Gemv(blas.NoTrans, 1/float32(plane), planes, avg, 0, dst)
	}
	return out, nil
}

// InterpolateBilinear 双线性插值到 h x w，alignCorners 为 true 时角点像素对齐
func InterpolateBilinear(x *Tensor, h, w int, alignCorners bool) (*Tensor, error) {
	if h <= 0 || w <= 0 || x.H == 0 || x.W == 0 {
		return nil, fmt.Errorf("interpolate %v to %dx%d: %w", x, h, w, ErrShapeMismatch)
	}
	// out = Ry · X · Rxᵀ，先对所有平面的行一次性做宽度方向插值
	ry := general(h, x.H, interpMatrix(x.H, h, alignCorners))
	rx := general(w, x.W, interpMatrix(x.W, w, alignCorners))

	out := NewTensor(x.N, x.C, h, w)
	planes := x.N * x.C
	if planes == 0 {
		return out, nil
	}
	tmp := make([]float32, planes*x.H*w)
	matmul(general(planes*x.H, x.W, x.Data), rx, true, 0, general(planes*x.H, w, tmp))
	for p := 0; p < planes; p++ {
		src := general(x.H, w, tmp[p*x.H*w:])
		dst := general(h, w, out.Data[p*h*w:])
		matmul(ry, src, false, 0, dst)
	}
	return out, nil
}

type sample struct {
	i0, i1 int
	frac   float32
}

func sampleAxis(in, out int, alignCorners bool) []sample {
	samples := make([]sample, out)
	for o := range samples {
		var src float32
		switch {
		case alignCorners && out > 1:
			src = float32(o) * float32(in-1) / float32(out-1)
		case !alignCorners:
			src = (float32(o)+0.5)*float32(in)/float32(out) - 0.5
			if src < 0 {
				src = 0
			}
		}
		i0 := int(src)
		if i0 > in-1 {
			i0 = in - 1
		}
		i1 := i0 + 1
		if i1 > in-1 {
			i1 = in - 1
		}
		samples[o] = sample{i0: i0, i1: i1, frac: src - float32(i0)}
	}
	return samples
}
