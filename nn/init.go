package nn

import (
	"math/rand/v2"

	"github.com/chewxy/math32"
)

// KaimingNormal 按 fan_in 模式、ReLU 增益 sqrt(2) 重新采样卷积权重
func KaimingNormal(c *Conv2d, rng *rand.Rand) {
	std := math32.Sqrt(2 / float32(c.fanIn()))
	for i := range c.Weight {
		c.Weight[i] = float32(rng.NormFloat64()) * std
	}
}

// newRand 根据种子创建确定性的随机源
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
