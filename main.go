package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"github.com/chaos-io/mattekit/config"
	"github.com/chaos-io/mattekit/nn"
	"github.com/chaos-io/mattekit/rembg"
	"github.com/chaos-io/mattekit/server"
	"github.com/chaos-io/mattekit/util"
)

var Version = "dev"

func main() {
	parser := argparse.NewParser("mattekit", "Matting pipeline tools: background replacement and decoder blocks")
	configPath := parser.String("c", "config", &argparse.Options{Help: "Path to config file", Default: "config.yaml"})

	composeCmd := parser.NewCommand("compose", "Composite frames onto a solid background using their masks")
	framesDir := composeCmd.String("f", "frames", &argparse.Options{Help: "Directory of input frames (.jpg/.png)"})
	masksDir := composeCmd.String("m", "masks", &argparse.Options{Help: "Directory of grayscale masks"})
	outputDir := composeCmd.String("o", "output", &argparse.Options{Help: "Output directory"})
	schedule := composeCmd.String("s", "schedule", &argparse.Options{Help: "Cron spec to re-run the batch, eg '@every 5m'"})

	serveCmd := parser.NewCommand("serve", "Run the HTTP composite service")

	inspectCmd := parser.NewCommand("inspect", "Run a decoder block over an image and report tensor shapes")
	inspectInput := inspectCmd.String("i", "input", &argparse.Options{Help: "Input image", Required: true})
	inspectOut := inspectCmd.Int("", "channels", &argparse.Options{Help: "Output channels of the block", Default: 64})
	inspectSize := inspectCmd.Int("", "size", &argparse.Options{Help: "Downscale so the longest side is at most this", Default: 64})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := util.InitLogger(cfg.Log.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.Sync()
	log := util.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case composeCmd.Happened():
		if *framesDir != "" {
			cfg.Compose.FramesDir = *framesDir
		}
		if *masksDir != "" {
			cfg.Compose.MasksDir = *masksDir
		}
		if *outputDir != "" {
			cfg.Compose.OutputDir = *outputDir
		}
		if *schedule != "" {
			cfg.Compose.Schedule = *schedule
		}
		err = runCompose(ctx, cfg.Compose, log)
	case serveCmd.Happened():
		server.Version = Version
		err = server.Run(ctx, cfg, log)
	case inspectCmd.Happened():
		err = runInspect(cfg.Model, *inspectInput, *inspectOut, *inspectSize, log)
	}
	if err != nil {
		log.Error("command failed", zap.Error(err))
		util.Sync()
		os.Exit(1)
	}
}

func runCompose(ctx context.Context, cfg config.ComposeConfig, log *zap.Logger) error {
	defer util.Trace("compose")()

	bg, err := cfg.BackgroundColor()
	if err != nil {
		return err
	}
	compositor, err := rembg.NewCompositor(cfg.Backend, bg)
	if err != nil {
		return err
	}
	proc, err := rembg.NewProcessor(cfg.ProcessorOptions(), compositor, log)
	if err != nil {
		return err
	}

	if cfg.Schedule == "" {
		_, err = proc.Run(ctx)
		return err
	}

	sched, err := rembg.NewScheduler(cfg.Schedule, proc)
	if err != nil {
		return err
	}
	log.Info("compose scheduled", zap.String("schedule", cfg.Schedule))
	sched.Start(ctx)
	return nil
}

func runInspect(cfg nn.Config, input string, channels, size int, log *zap.Logger) error {
	defer util.Trace("inspect")()

	if channels < 1 || size < 1 {
		return errors.New("channels and size must be positive")
	}
	img, err := util.OpenImage(input)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	small := resize.Thumbnail(uint(size), uint(size), img, resize.Bilinear)

	x := nn.FromImage(small)
	blk, err := nn.NewResBlk(cfg, x.C, channels)
	if err != nil {
		return err
	}
	y, err := blk.Forward(x, false)
	if err != nil {
		return err
	}

	in, out := x.Shape(), y.Shape()
	log.Info("forward done",
		zap.Ints("input", in[:]),
		zap.Int("channel_inter", blk.ChannelInter),
		zap.Bool("attention", blk.Att != nil),
		zap.Ints("output", out[:]))
	return nil
}
