package nn

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// general 把连续的行主序数据视为 rows x cols 矩阵
func general(rows, cols int, data []float32) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: max(cols, 1), Data: data[:rows*cols]}
}

func vector(data []float32) blas32.Vector {
	return blas32.Vector{N: len(data), Inc: 1, Data: data}
}

func ones(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

// matmul c = a·op(b) + beta·c
func matmul(a blas32.General, b blas32.General, transB bool, beta float32, c blas32.General) {
	tb := blas.NoTrans
	if transB {
		tb = blas.Trans
	}
	blas32.Gemm(blas.NoTrans, tb, 1, a, b, beta, c)
}

// im2col 把单个样本展开为 [in*k*k, oh*ow] 的列矩阵，越界位置为 0
func (c *Conv2d) im2col(x *Tensor, n, oh, ow int, col []float32) {
	k := c.Kernel
	for i := range col {
		col[i] = 0
	}
	for ci := 0; ci < c.InChannels; ci++ {
		src := x.Data[x.Index(n, ci, 0, 0):]
		for ky := 0; ky < k; ky++ {
			dy := ky*c.Dilation - c.Padding
			for kx := 0; kx < k; kx++ {
				dx := kx*c.Dilation - c.Padding
				row := col[((ci*k+ky)*k+kx)*oh*ow:]
				for y := 0; y < oh; y++ {
					sy := y + dy
					if sy < 0 || sy >= x.H {
						continue
					}
					for xx := 0; xx < ow; xx++ {
						sx := xx + dx
						if sx < 0 || sx >= x.W {
							continue
						}
						row[y*ow+xx] = src[sy*x.W+sx]
					}
				}
			}
		}
	}
}

// interpMatrix 每行是一个输出位置对输入轴的线性插值权重
func interpMatrix(in, out int, alignCorners bool) []float32 {
	m := make([]float32, out*in)
	for o, s := range sampleAxis(in, out, alignCorners) {
		m[o*in+s.i0] += 1 - s.frac
		m[o*in+s.i1] += s.frac
	}
	return m
}
