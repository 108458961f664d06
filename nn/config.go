package nn

import "fmt"

const (
	ChannelInterAdaptive = "adap"
	ChannelInterFixed    = "fixed"

	// fixedChannelInter 非自适应模式下 ResBlk 的中间通道数
	fixedChannelInter = 64
)

// Config 解码器模块的构造参数，构造后只读
type Config struct {
	Dilation        int    `mapstructure:"dilation"`
	DecChannelInter string `mapstructure:"dec_channel_inter"`
	DecAtt          bool   `mapstructure:"dec_att"`
	UseBN           bool   `mapstructure:"use_bn"`
	OutputStride    int    `mapstructure:"output_stride"`
	Seed            uint64 `mapstructure:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Dilation:        1,
		DecChannelInter: ChannelInterFixed,
		DecAtt:          true,
		UseBN:           true,
		OutputStride:    16,
	}
}

func (c Config) Validate() error {
	if c.Dilation < 1 {
		return fmt.Errorf("dilation must be >= 1, got %d", c.Dilation)
	}
	switch c.DecChannelInter {
	case ChannelInterAdaptive, ChannelInterFixed:
	default:
		return fmt.Errorf("unknown dec_channel_inter %q", c.DecChannelInter)
	}
	return nil
}

// channelInter 返回 ResBlk 的中间通道数
func (c Config) channelInter(channelIn int) int {
	if c.DecChannelInter == ChannelInterAdaptive {
		return channelIn / 4
	}
	return fixedChannelInter
}
