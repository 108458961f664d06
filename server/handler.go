package server

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chaos-io/mattekit/rembg"
	"github.com/chaos-io/mattekit/util"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type ComposeHandler struct {
	compositor rembg.Compositor
	maxSize    int64
	resizeMask bool
	log        *zap.Logger
}

func NewComposeHandler(compositor rembg.Compositor, maxSize int64, resizeMask bool, log *zap.Logger) *ComposeHandler {
	return &ComposeHandler{
		compositor: compositor,
		maxSize:    maxSize,
		resizeMask: resizeMask,
		log:        log,
	}
}

// Composite 接收 multipart 字段 frame 和 mask，返回合成后的 PNG
func (h *ComposeHandler) Composite(c *gin.Context) {
	// 两个文件各自不超过 maxSize，在解析 multipart 之前限制整个请求体
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize*2)

	frame, err := h.formImage(c, "frame")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.log.Warn("request body too large", zap.Int64("limit", tooLarge.Limit))
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Success: false,
				Message: "上传文件过大",
				Error:   err.Error(),
			})
			return
		}
		h.badRequest(c, "请上传 frame 图片", err)
		return
	}
	maskImg, err := h.formImage(c, "mask")
	if err != nil {
		h.badRequest(c, "请上传 mask 图片", err)
		return
	}

	mask := util.ToGray(maskImg)
	if h.resizeMask {
		b := frame.Bounds()
		mask = rembg.FitMask(mask, b.Dx(), b.Dy())
	}

	out, err := h.compositor.Composite(frame, mask)
	if err != nil {
		if errors.Is(err, rembg.ErrSizeMismatch) {
			h.badRequest(c, "frame 与 mask 尺寸不一致", err)
			return
		}
		h.log.Error("failed to composite", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Success: false,
			Message: "合成失败",
			Error:   err.Error(),
		})
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		h.log.Error("failed to encode png", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Message: "编码失败", Error: err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (h *ComposeHandler) formImage(c *gin.Context, field string) (image.Image, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, err
	}
	if fh.Size > h.maxSize {
		return nil, fmt.Errorf("%s exceeds %d MB", field, h.maxSize/(1024*1024))
	}
	return decodeUpload(fh)
}

func decodeUpload(fh *multipart.FileHeader) (image.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", fh.Filename, err)
	}
	return img, nil
}

func (h *ComposeHandler) badRequest(c *gin.Context, msg string, err error) {
	h.log.Warn(msg, zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Message: msg,
		Error:   err.Error(),
	})
}
