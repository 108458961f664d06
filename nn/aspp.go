package nn

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrUnsupportedOutputStride 注意力模块只支持 output stride 16 和 8
var ErrUnsupportedOutputStride = errors.New("unsupported output stride")

const (
	downScale    = 4
	branchPlanes = 256 / downScale
	dropoutRate  = 0.5
	numBranches  = 4
	concatPlanes = 1280 / downScale
)

// Dilations 返回 output stride 对应的空洞率序列
func Dilations(outputStride int) ([]int, error) {
	switch outputStride {
	case 16:
		return []int{1, 6, 12, 18}, nil
	case 8:
		return []int{1, 12, 24, 36}, nil
	default:
		return nil, fmt.Errorf("output stride %d: %w", outputStride, ErrUnsupportedOutputStride)
	}
}

// ASPPBranch 空洞卷积（无偏置）+ BN + ReLU
type ASPPBranch struct {
	Conv *Conv2d
	BN   *BatchNorm2d

	rng *rand.Rand
}

// NewASPPBranch 使用默认初始化创建分支；Kaiming 初始化由 InitWeights 显式触发
func NewASPPBranch(channelIn, planes, kernel, padding, dilation int, rng *rand.Rand) *ASPPBranch {
	return &ASPPBranch{
		Conv: NewConv2d(channelIn, planes, kernel, padding, dilation, false, rng),
		BN:   NewBatchNorm2d(planes),
		rng:  rng,
	}
}

func (b *ASPPBranch) InitWeights() {
	KaimingNormal(b.Conv, b.rng)
	b.BN.Reset()
}

func (b *ASPPBranch) Forward(x *Tensor, train bool) (*Tensor, error) {
	x, err := b.Conv.Forward(x, train)
	if err != nil {
		return nil, err
	}
	if x, err = b.BN.Forward(x, train); err != nil {
		return nil, err
	}
	return ReLU{}.Forward(x, train)
}

// AttentionModule ASPP 风格的注意力模块：4 个空洞分支 + 全局池化分支，拼接后 1x1 卷积降维
type AttentionModule struct {
	ChannelIn int
	Dilations []int
	Branches  [numBranches]*ASPPBranch
	PoolConv  *Conv2d
	PoolBN    *BatchNorm2d
	Conv1     *Conv2d
	BN1       *BatchNorm2d
	Dropout   *Dropout

	rng *rand.Rand
}

// NewAttentionModule 构造模块并立即完成权重初始化
func NewAttentionModule(cfg Config, channelIn int) (*AttentionModule, error) {
	return newAttentionModule(cfg, channelIn, newRand(cfg.Seed))
}

func newAttentionModule(cfg Config, channelIn int, rng *rand.Rand) (*AttentionModule, error) {
	dilations, err := Dilations(cfg.OutputStride)
	if err != nil {
		return nil, err
	}
	if channelIn < 1 {
		return nil, fmt.Errorf("attention module channel_in must be >= 1, got %d", channelIn)
	}

	m := &AttentionModule{
		ChannelIn: channelIn,
		Dilations: dilations,
		PoolConv:  NewConv2d(channelIn, branchPlanes, 1, 0, 1, false, rng),
		PoolBN:    NewBatchNorm2d(branchPlanes),
		Conv1:     NewConv2d(concatPlanes, branchPlanes, 1, 0, 1, false, rng),
		BN1:       NewBatchNorm2d(branchPlanes),
		Dropout:   NewDropout(dropoutRate, rng),
		rng:       rng,
	}
	m.Branches[0] = NewASPPBranch(channelIn, branchPlanes, 1, 0, dilations[0], rng)
	for i := 1; i < numBranches; i++ {
		m.Branches[i] = NewASPPBranch(channelIn, branchPlanes, 3, dilations[i], dilations[i], rng)
	}
	m.initWeights()
	return m, nil
}

// initWeights 对模块自身的卷积做 Kaiming 初始化，BN 权重填 1、偏置填 0
func (m *AttentionModule) initWeights() {
	for _, b := range m.Branches {
		b.InitWeights()
	}
	for _, c := range []*Conv2d{m.PoolConv, m.Conv1} {
		KaimingNormal(c, m.rng)
	}
	for _, bn := range []*BatchNorm2d{m.PoolBN, m.BN1} {
		bn.Reset()
	}
}

// OutChannels 输出通道数，与输入通道无关
func (m *AttentionModule) OutChannels() int {
	return branchPlanes
}

func (m *AttentionModule) Forward(x *Tensor, train bool) (*Tensor, error) {
	if x.C != m.ChannelIn {
		return nil, fmt.Errorf("attention module expects %d channels, got %v: %w", m.ChannelIn, x, ErrShapeMismatch)
	}

	outs := make([]*Tensor, 0, numBranches+1)
	for i, b := range m.Branches {
		y, err := b.Forward(x, train)
		if err != nil {
			return nil, fmt.Errorf("aspp branch %d: %w", i+1, err)
		}
		outs = append(outs, y)
	}

	pooled, err := m.globalPool(x, train)
	if err != nil {
		return nil, fmt.Errorf("global pool branch: %w", err)
	}
	last := outs[numBranches-1]
	pooled, err = InterpolateBilinear(pooled, last.H, last.W, true)
	if err != nil {
		return nil, err
	}
	outs = append(outs, pooled)

	y, err := Cat(outs...)
	if err != nil {
		return nil, err
	}
	if y, err = m.Conv1.Forward(y, train); err != nil {
		return nil, err
	}
	if y, err = m.BN1.Forward(y, train); err != nil {
		return nil, err
	}
	if y, err = (ReLU{}).Forward(y, train); err != nil {
		return nil, err
	}
	return m.Dropout.Forward(y, train)
}

func (m *AttentionModule) globalPool(x *Tensor, train bool) (*Tensor, error) {
	y, err := GlobalAvgPool{}.Forward(x, train)
	if err != nil {
		return nil, err
	}
	if y, err = m.PoolConv.Forward(y, train); err != nil {
		return nil, err
	}
	if y, err = m.PoolBN.Forward(y, train); err != nil {
		return nil, err
	}
	return ReLU{}.Forward(y, train)
}

// Parameters 返回模块所有可训练参数
func (m *AttentionModule) Parameters() [][]float32 {
	var params [][]float32
	for _, b := range m.Branches {
		params = append(params, b.Conv.Weight, b.BN.Weight, b.BN.Bias)
	}
	return append(params,
		m.PoolConv.Weight, m.PoolBN.Weight, m.PoolBN.Bias,
		m.Conv1.Weight, m.BN1.Weight, m.BN1.Bias,
	)
}
