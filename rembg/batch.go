package rembg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/chaos-io/mattekit/util"
)

// ErrCountMismatch 帧与蒙版数量不一致，整个批次不做任何处理
var ErrCountMismatch = errors.New("the number of input frames and mask frames must be the same")

const DefaultNamePattern = "frame_%03d.png"

var DefaultExtensions = []string{".jpg", ".png"}

// Options 批处理参数
type Options struct {
	FramesDir   string
	MasksDir    string
	OutputDir   string
	Extensions  []string // 为空时使用 DefaultExtensions
	NamePattern string   // 输出文件名格式，参数为帧序号
	ResizeMask  bool     // 蒙版尺寸不同时缩放到帧尺寸，否则跳过该帧
}

// Result 一次批处理的汇总
type Result struct {
	RunID     string
	Total     int
	Processed int
	Skipped   []int
	Outputs   []string
}

// Processor 顺序处理成对的帧与蒙版目录
type Processor struct {
	opts       Options
	compositor Compositor
	log        *zap.Logger
}

func NewProcessor(opts Options, compositor Compositor, log *zap.Logger) (*Processor, error) {
	if opts.FramesDir == "" || opts.MasksDir == "" || opts.OutputDir == "" {
		return nil, errors.New("frames, masks and output directories must be set")
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	if opts.NamePattern == "" {
		opts.NamePattern = DefaultNamePattern
	}
	if name := fmt.Sprintf(opts.NamePattern, 0); strings.Contains(name, "%!") {
		return nil, fmt.Errorf("invalid name pattern %q", opts.NamePattern)
	}
	if compositor == nil {
		compositor = &Blender{Background: White}
	}
	if log == nil {
		log = util.Logger
	}
	return &Processor{opts: opts, compositor: compositor, log: log}, nil
}

// OutputName 第 i 帧的输出文件名，与源文件名无关
func (p *Processor) OutputName(i int) string {
	return fmt.Sprintf(p.opts.NamePattern, i)
}

// Run 执行一次完整批处理。数量不一致时在写任何文件之前返回 ErrCountMismatch；
// 单帧读取或合成失败只记录日志并跳过。
func (p *Processor) Run(ctx context.Context) (*Result, error) {
	runID := ksuid.New().String()
	log := p.log.With(zap.String("run_id", runID))

	if err := os.MkdirAll(p.opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	frames, err := util.ListImages(p.opts.FramesDir, p.opts.Extensions)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	masks, err := util.ListImages(p.opts.MasksDir, p.opts.Extensions)
	if err != nil {
		return nil, fmt.Errorf("list masks: %w", err)
	}
	if len(frames) != len(masks) {
		log.Error("frame and mask count differ", zap.Int("frames", len(frames)), zap.Int("masks", len(masks)))
		return nil, fmt.Errorf("%d frames, %d masks: %w", len(frames), len(masks), ErrCountMismatch)
	}

	log.Info("processing frames", zap.Int("count", len(frames)))
	res := &Result{RunID: runID, Total: len(frames)}
	for i := range frames {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		out, err := p.processFrame(i, frames[i], masks[i])
		if err != nil {
			log.Error("failed to process frame",
				zap.Int("index", i),
				zap.String("frame", frames[i]),
				zap.String("mask", masks[i]),
				zap.Error(err))
			res.Skipped = append(res.Skipped, i)
			continue
		}

		log.Info("saved processed frame", zap.String("path", out))
		res.Processed++
		res.Outputs = append(res.Outputs, out)
	}

	log.Info("all frames processed", zap.Int("processed", res.Processed), zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

func (p *Processor) processFrame(i int, framePath, maskPath string) (string, error) {
	frame, err := util.OpenImage(framePath)
	if err != nil {
		return "", fmt.Errorf("read frame: %w", err)
	}
	mask, err := util.OpenGrayImage(maskPath)
	if err != nil {
		return "", fmt.Errorf("read mask: %w", err)
	}

	if p.opts.ResizeMask {
		b := frame.Bounds()
		mask = FitMask(mask, b.Dx(), b.Dy())
	}

	composed, err := p.compositor.Composite(frame, mask)
	if err != nil {
		return "", err
	}
	if bbox, err := MaskBBox(mask, 0.5); err == nil {
		p.log.Debug("subject bounds", zap.Int("index", i), zap.Stringer("bbox", bbox))
	} else {
		p.log.Debug("mask has no foreground", zap.Int("index", i))
	}

	out := filepath.Join(p.opts.OutputDir, p.OutputName(i))
	if err := util.SavePNG(out, composed); err != nil {
		return "", err
	}
	return out, nil
}
