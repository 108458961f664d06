package nn

import "fmt"

// ResBlk 解码器块：两次 3x3 空洞卷积，中间可选 BN 与注意力模块。
// 注意：这里不做残差相加，输出仅为两次卷积的结果。
type ResBlk struct {
	cfg          Config
	ChannelIn    int
	ChannelInter int
	ChannelOut   int
	ConvIn       *Conv2d
	BNIn         *BatchNorm2d // UseBN 为 false 时为 nil
	Att          *AttentionModule
	ConvOut      *Conv2d
	BNOut        *BatchNorm2d
}

func NewResBlk(cfg Config, channelIn, channelOut int) (*ResBlk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	inter := cfg.channelInter(channelIn)
	if channelIn < 1 || channelOut < 1 || inter < 1 {
		return nil, fmt.Errorf("invalid resblk channels in=%d inter=%d out=%d", channelIn, inter, channelOut)
	}

	// conv_out 直接接在注意力模块之后，两者通道数必须一致
	if cfg.DecAtt && inter != branchPlanes {
		return nil, fmt.Errorf("dec_att needs %d intermediate channels, got %d: %w", branchPlanes, inter, ErrShapeMismatch)
	}

	rng := newRand(cfg.Seed)
	blk := &ResBlk{
		cfg:          cfg,
		ChannelIn:    channelIn,
		ChannelInter: inter,
		ChannelOut:   channelOut,
		ConvIn:       NewConv2d(channelIn, inter, 3, cfg.Dilation, cfg.Dilation, true, rng),
		ConvOut:      NewConv2d(inter, channelOut, 3, cfg.Dilation, cfg.Dilation, true, rng),
	}
	if cfg.DecAtt {
		att, err := newAttentionModule(cfg, inter, rng)
		if err != nil {
			return nil, fmt.Errorf("resblk attention: %w", err)
		}
		blk.Att = att
	}
	if cfg.UseBN {
		blk.BNIn = NewBatchNorm2d(inter)
		blk.BNOut = NewBatchNorm2d(channelOut)
	}
	return blk, nil
}

func (b *ResBlk) Forward(x *Tensor, train bool) (*Tensor, error) {
	x, err := b.ConvIn.Forward(x, train)
	if err != nil {
		return nil, fmt.Errorf("conv_in: %w", err)
	}
	if b.BNIn != nil {
		if x, err = b.BNIn.Forward(x, train); err != nil {
			return nil, err
		}
	}
	if x, err = (ReLU{}).Forward(x, train); err != nil {
		return nil, err
	}
	if b.Att != nil {
		if x, err = b.Att.Forward(x, train); err != nil {
			return nil, fmt.Errorf("dec_att: %w", err)
		}
	}
	if x, err = b.ConvOut.Forward(x, train); err != nil {
		return nil, fmt.Errorf("conv_out: %w", err)
	}
	if b.BNOut != nil {
		if x, err = b.BNOut.Forward(x, train); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// Config 返回构造时使用的配置
func (b *ResBlk) Config() Config {
	return b.cfg
}
