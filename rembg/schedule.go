package rembg

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler 按 cron 表达式周期性地重跑批处理，同一时刻最多只有一次运行
type Scheduler struct {
	cron *cron.Cron
	proc *Processor
	ctx  context.Context // Start 之前为 Background
}

func NewScheduler(spec string, proc *Processor) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	s := &Scheduler{cron: c, proc: proc, ctx: context.Background()}

	_, err := c.AddFunc(spec, s.runOnce)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) runOnce() {
	if _, err := s.proc.Run(s.ctx); err != nil {
		s.proc.log.Error("scheduled run failed", zap.Error(err))
	}
}

// Start 启动调度，阻塞直到 ctx 结束；正在进行的批处理在下一帧之前停止
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

// Entries 已注册的任务数
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
