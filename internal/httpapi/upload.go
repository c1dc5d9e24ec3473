package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"

	"zimg/internal/imaging"
	"zimg/internal/multipart"
	"zimg/internal/pathing"
	"zimg/internal/storage"
)

// supportedExtensions gates uploads by claimed filename extension. The magic
// bytes, not the extension, decide the actual format.
var supportedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
}

const uploadFailureBody = `{"status":-1}`

type uploadReply struct {
	Status  int    `json:"status"`
	Picture string `json:"picture"`
}

// handleUpload stores the image from a multipart POST body. All failures
// collapse to a negative-status JSON with HTTP 200; clients inspect the JSON.
func (h *Handler) handleUpload(c *gin.Context) {
	start := time.Now()
	fp, err := h.processUpload(c)
	if err != nil {
		h.logger.Error("upload failed", slog.String("remote_ip", c.ClientIP()), slog.Any("error", err))
		c.Data(http.StatusOK, contentTypeJSON, []byte(uploadFailureBody))
		return
	}
	h.logger.Info(
		"stored image",
		slog.String("remote_ip", c.ClientIP()),
		slog.String("picture", fp),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	c.JSON(http.StatusOK, uploadReply{Status: 0, Picture: fp})
}

func (h *Handler) processUpload(c *gin.Context) (string, error) {
	if c.Request.ContentLength <= 0 {
		return "", fmt.Errorf("missing or invalid Content-Length")
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("empty request body")
	}

	part, err := multipart.Parse(c.GetHeader("Content-Type"), body)
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(part.Filename))
	if _, ok := supportedExtensions[ext]; !ok {
		return "", fmt.Errorf("unsupported file extension %q", ext)
	}
	if imaging.Sniff(part.Payload) == imaging.FormatUnknown {
		return "", fmt.Errorf("payload magic matches no supported format")
	}

	fp := pathing.Fingerprint(part.Payload)
	originKey := pathing.Origin.Key(fp)
	if h.cache.Exists(originKey) {
		return fp, nil
	}

	originPath := h.layout.OriginPath(fp)
	if h.store.Exists(originPath) {
		h.cache.Put(originKey, part.Payload)
		return fp, nil
	}

	if err := h.store.EnsureDir(h.layout.Dir(fp)); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	if err := h.store.WriteNew(originPath, part.Payload); err != nil {
		if errors.Is(err, storage.ErrBusy) {
			// A peer is writing the identical origin; let it finish.
			return fp, nil
		}
		return "", err
	}
	h.writeBaseline(fp, part.Payload)
	return fp, nil
}

// writeBaseline stores the quality-75 stripped JPEG beside the origin.
// Best effort: a failure never fails the upload.
func (h *Handler) writeBaseline(fp string, payload []byte) {
	blob, err := h.codec.Baseline(payload, h.cfg.Image.JPEGQuality)
	if err != nil {
		h.logger.Warn("baseline encode", slog.String("picture", fp), slog.Any("error", err))
		return
	}
	if err := h.store.WriteNew(h.layout.BaselinePath(fp), blob); err != nil && !errors.Is(err, storage.ErrBusy) {
		h.logger.Warn("baseline write", slog.String("picture", fp), slog.Any("error", err))
	}
}
