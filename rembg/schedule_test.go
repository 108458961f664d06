package rembg

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScheduler(t *testing.T) {
	f := newFixture(t)
	p := newTestProcessor(t, f, Options{})

	_, err := NewScheduler("not a spec", p)
	require.Error(t, err)

	s, err := NewScheduler("@every 1h", p)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Entries())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Start(ctx)
}

func TestScheduler_RunStopsWithContext(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"0.png", "1.png"} {
		writePNG(t, filepath.Join(f.frames, name), newFrame(2, 2))
		writePNG(t, filepath.Join(f.masks, name), newMask(2, 2, 255))
	}
	s, err := NewScheduler("@every 1h", newTestProcessor(t, f, Options{}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.ctx = ctx
	s.runOnce()

	assert.Empty(t, outputNames(t, f.output))
}
