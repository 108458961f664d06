package config

import (
	"errors"
	"fmt"
	"image/color"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/chaos-io/mattekit/nn"
	"github.com/chaos-io/mattekit/rembg"
)

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Compose ComposeConfig `mapstructure:"compose"`
	Server  ServerConfig  `mapstructure:"server"`
	Model   nn.Config     `mapstructure:"model"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

type ComposeConfig struct {
	FramesDir   string   `mapstructure:"frames_dir"`
	MasksDir    string   `mapstructure:"masks_dir"`
	OutputDir   string   `mapstructure:"output_dir"`
	Extensions  []string `mapstructure:"extensions"`
	NamePattern string   `mapstructure:"name_pattern"`
	Background  string   `mapstructure:"background"` // #rrggbb
	Backend     string   `mapstructure:"backend"`    // go | gocv | cutout
	ResizeMask  bool     `mapstructure:"resize_mask"`
	Schedule    string   `mapstructure:"schedule"` // cron 表达式，为空时只运行一次
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	MaxSize      int64         `mapstructure:"max_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Load 从 YAML 文件加载配置，环境变量 MATTEKIT_* 优先
func Load(configPath string) (*Config, error) {
	// 加载 .env 文件（文件不存在时忽略）
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("mattekit")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if _, err := cfg.Compose.BackgroundColor(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// New 使用默认配置路径加载配置，失败时返回默认配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		return Default()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.mode", "debug")

	v.SetDefault("compose.frames_dir", "")
	v.SetDefault("compose.masks_dir", "")
	v.SetDefault("compose.output_dir", "")
	v.SetDefault("compose.extensions", rembg.DefaultExtensions)
	v.SetDefault("compose.name_pattern", rembg.DefaultNamePattern)
	v.SetDefault("compose.background", "#ffffff")
	v.SetDefault("compose.backend", rembg.BackendGo)
	v.SetDefault("compose.resize_mask", false)
	v.SetDefault("compose.schedule", "")

	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_size", 20*1024*1024)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	m := nn.DefaultConfig()
	v.SetDefault("model.dilation", m.Dilation)
	v.SetDefault("model.dec_channel_inter", m.DecChannelInter)
	v.SetDefault("model.dec_att", m.DecAtt)
	v.SetDefault("model.use_bn", m.UseBN)
	v.SetDefault("model.output_stride", m.OutputStride)
	v.SetDefault("model.seed", m.Seed)
}

func Default() *Config {
	return &Config{
		Log: LogConfig{Mode: "debug"},
		Compose: ComposeConfig{
			Extensions:  rembg.DefaultExtensions,
			NamePattern: rembg.DefaultNamePattern,
			Background:  "#ffffff",
			Backend:     rembg.BackendGo,
		},
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			MaxSize:      20 * 1024 * 1024,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Model: nn.DefaultConfig(),
	}
}

// BackgroundColor 解析 #rrggbb 形式的背景色，空值为白色
func (c ComposeConfig) BackgroundColor() (color.RGBA, error) {
	if c.Background == "" {
		return rembg.White, nil
	}
	var r, g, b uint8
	if len(c.Background) != 7 {
		return color.RGBA{}, fmt.Errorf("invalid background color %q", c.Background)
	}
	if _, err := fmt.Sscanf(c.Background, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid background color %q: %w", c.Background, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// ProcessorOptions 转换为批处理参数
func (c ComposeConfig) ProcessorOptions() rembg.Options {
	return rembg.Options{
		FramesDir:   c.FramesDir,
		MasksDir:    c.MasksDir,
		OutputDir:   c.OutputDir,
		Extensions:  c.Extensions,
		NamePattern: c.NamePattern,
		ResizeMask:  c.ResizeMask,
	}
}
