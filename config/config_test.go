package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/mattekit/rembg"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, rembg.DefaultNamePattern, cfg.Compose.NamePattern)
	assert.Equal(t, []string{".jpg", ".png"}, cfg.Compose.Extensions)
	assert.Equal(t, rembg.BackendGo, cfg.Compose.Backend)
	assert.Equal(t, 16, cfg.Model.OutputStride)
	assert.Equal(t, 1, cfg.Model.Dilation)
	assert.True(t, cfg.Model.UseBN)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
compose:
  frames_dir: /data/frames
  masks_dir: /data/masks
  output_dir: /data/out
  background: "#00ff00"
  resize_mask: true
model:
  dilation: 2
  dec_channel_inter: adap
  dec_att: false
  output_stride: 8
server:
  port: ":9090"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/frames", cfg.Compose.FramesDir)
	assert.True(t, cfg.Compose.ResizeMask)
	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, 2, cfg.Model.Dilation)
	assert.Equal(t, "adap", cfg.Model.DecChannelInter)
	assert.False(t, cfg.Model.DecAtt)
	assert.Equal(t, 8, cfg.Model.OutputStride)

	bg, err := cfg.Compose.BackgroundColor()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{G: 255, A: 255}, bg)

	opts := cfg.Compose.ProcessorOptions()
	assert.Equal(t, "/data/out", opts.OutputDir)
	assert.True(t, opts.ResizeMask)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("MATTEKIT_COMPOSE_OUTPUT_DIR", "/env/out")
	t.Setenv("MATTEKIT_MODEL_DILATION", "3")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/env/out", cfg.Compose.OutputDir)
	assert.Equal(t, 3, cfg.Model.Dilation)
}

func TestLoad_BadBackground(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("compose:\n  background: white\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestBackgroundColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{in: "", want: rembg.White},
		{in: "#ffffff", want: rembg.White},
		{in: "#102030", want: color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 255}},
		{in: "#12", wantErr: true},
		{in: "#zzzzzz", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ComposeConfig{Background: tt.in}.BackgroundColor()
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.NoError(t, cfg.Model.Validate())
}
