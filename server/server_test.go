package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chaos-io/mattekit/config"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Mode = "test"
	r, err := NewRouter(cfg.Server, cfg.Compose, zap.NewNop())
	require.NoError(t, err)
	return r
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for field, data := range files {
		part, err := w.CreateFormFile(field, field+".png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "ok", got["status"])
}

func TestComposite(t *testing.T) {
	r := newTestRouter(t)
	red := color.RGBA{R: 200, A: 255}
	mask := image.NewGray(image.Rect(0, 0, 2, 1))
	mask.Pix[0] = 255

	body, contentType := multipartBody(t, map[string][]byte{
		"frame": encodePNG(t, solid(2, 1, red)),
		"mask":  encodePNG(t, mask),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/composite", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	out, err := png.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, color.RGBAModel.Convert(red), color.RGBAModel.Convert(out.At(0, 0)))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, color.RGBAModel.Convert(out.At(1, 0)))
}

func TestComposite_MissingMask(t *testing.T) {
	r := newTestRouter(t)
	body, contentType := multipartBody(t, map[string][]byte{
		"frame": encodePNG(t, solid(2, 2, color.Black)),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/composite", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
}

func TestComposite_SizeMismatch(t *testing.T) {
	r := newTestRouter(t)
	body, contentType := multipartBody(t, map[string][]byte{
		"frame": encodePNG(t, solid(2, 2, color.Black)),
		"mask":  encodePNG(t, image.NewGray(image.Rect(0, 0, 3, 3))),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/composite", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestComposite_BodyTooLarge(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Mode = "test"
	cfg.Server.MaxSize = 512
	r, err := NewRouter(cfg.Server, cfg.Compose, zap.NewNop())
	require.NoError(t, err)

	body, contentType := multipartBody(t, map[string][]byte{
		"frame": bytes.Repeat([]byte{0x5a}, 8*1024),
		"mask":  encodePNG(t, image.NewGray(image.Rect(0, 0, 2, 2))),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/composite", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
}

func TestNewRouter_BadBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Compose.Backend = "magick"
	_, err := NewRouter(cfg.Server, cfg.Compose, zap.NewNop())
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "go", got["backend"])
}
