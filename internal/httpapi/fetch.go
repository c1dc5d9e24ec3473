package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"

	"zimg/internal/imaging"
	"zimg/internal/pathing"
	"zimg/internal/storage"
)

// handleFetch resolves GET /<fingerprint>?w=&h=&p=&g= through three tiers:
// hot cache, materialized rendition file, render from origin.
func (h *Handler) handleFetch(c *gin.Context) {
	start := time.Now()

	if strings.Contains(c.Request.RequestURI, "..") || strings.Contains(c.Request.URL.Path, "..") {
		h.handleNotFound(c)
		return
	}

	fp := c.Param("fingerprint")
	if !pathing.IsFingerprint(fp) {
		h.handleNotFound(c)
		return
	}
	if c.Query("w") == "g" && c.Query("h") == "w" {
		c.Data(http.StatusOK, contentTypeHTML, []byte(easterEggBody))
		return
	}

	rend := pathing.Rendition{
		Width:      intQuery(c, "w", 0),
		Height:     intQuery(c, "h", 0),
		Proportion: intQuery(c, "p", 1) != 0,
		Gray:       intQuery(c, "g", 0) != 0,
	}
	key := rend.Key(fp)

	if blob, ok := h.cache.Get(key); ok {
		c.Data(http.StatusOK, contentTypeJPEG, blob)
		h.logFetch(c, key, "cache", time.Since(start))
		return
	}

	rendPath := h.layout.RenditionPath(fp, rend)
	if h.store.Exists(rendPath) {
		blob, err := h.store.ReadAll(rendPath)
		if err != nil {
			h.logger.Error("read rendition", slog.String("path", rendPath), slog.Any("error", err))
			h.handleNotFound(c)
			return
		}
		c.Data(http.StatusOK, contentTypeJPEG, blob)
		h.cache.Put(key, blob)
		h.logFetch(c, key, "disk", time.Since(start))
		return
	}

	release := h.locks.Lock(key)
	defer release()
	if blob, ok := h.cache.Get(key); ok {
		c.Data(http.StatusOK, contentTypeJPEG, blob)
		h.logFetch(c, key, "cache", time.Since(start))
		return
	}

	blob, atFullSize, err := h.render(fp, rend)
	if err != nil {
		h.logger.Error("render failed", slog.String("key", key), slog.Any("error", err))
		h.handleNotFound(c)
		return
	}

	c.Data(http.StatusOK, contentTypeJPEG, blob)
	h.cache.Put(key, blob)
	if !atFullSize {
		go h.materialize(fp, rendPath, blob)
	}
	h.logFetch(c, key, "render", time.Since(start))
}

// render produces the rendition bytes from the closest available source. The
// returned flag is true when the request exceeded the origin dimensions and
// the result must not be materialized as a rendition file.
func (h *Handler) render(fp string, rend pathing.Rendition) ([]byte, bool, error) {
	source, gotColor, err := h.renderSource(fp, rend)
	if err != nil {
		return nil, false, err
	}

	opts := imaging.Options{
		Gray:    rend.Gray,
		Quality: h.cfg.Image.JPEGQuality,
	}
	atFullSize := false
	if !gotColor {
		ow, oh, err := h.codec.Size(source)
		if err != nil {
			return nil, false, err
		}
		w, ht := rend.Width, rend.Height
		if w <= ow && ht <= oh {
			if rend.Proportion {
				if w != 0 && ht == 0 {
					ht = w * oh / ow
				} else if ht != 0 {
					w = ht * ow / oh
				}
			} else {
				if w == 0 {
					w = ow
				}
				if ht == 0 {
					ht = oh
				}
			}
			if (w != 0 || ht != 0) && !(w == ow && ht == oh) {
				opts.Width, opts.Height = w, ht
			}
		} else {
			// Requested size exceeds the origin: serve it unscaled and skip
			// the rendition file.
			atFullSize = true
		}
	}
	opts.Recompress = !gotColor || rend.Width == 0

	blob, err := h.codec.Transform(source, opts)
	if err != nil {
		return nil, false, err
	}
	return blob, atFullSize, nil
}

// renderSource finds the encoded bytes to render from. For gray requests the
// color sibling (cache, then disk) is preferred so the resize is skipped; the
// fallback is the origin blob, cached under the origin key on the way.
func (h *Handler) renderSource(fp string, rend pathing.Rendition) ([]byte, bool, error) {
	if rend.Gray {
		colorKey := rend.Color().Key(fp)
		if blob, ok := h.cache.Get(colorKey); ok {
			if _, _, err := h.codec.Size(blob); err != nil {
				h.logger.Warn("corrupt cached color rendition, evicting", slog.String("key", colorKey))
				h.cache.Delete(colorKey)
			} else {
				return blob, true, nil
			}
		}
		colorPath := h.layout.RenditionPath(fp, rend.Color())
		if h.store.Exists(colorPath) {
			if blob, err := h.store.ReadAll(colorPath); err == nil {
				if _, _, serr := h.codec.Size(blob); serr == nil {
					h.cache.Put(colorKey, blob)
					return blob, true, nil
				}
			}
		}
	}

	originKey := pathing.Origin.Key(fp)
	if blob, ok := h.cache.Get(originKey); ok {
		if _, _, err := h.codec.Size(blob); err != nil {
			h.logger.Warn("corrupt cached origin, evicting", slog.String("key", originKey))
			h.cache.Delete(originKey)
		} else {
			return blob, false, nil
		}
	}
	blob, err := h.store.ReadAll(h.layout.OriginPath(fp))
	if err != nil {
		return nil, false, err
	}
	h.cache.Put(originKey, blob)
	return blob, false, nil
}

// materialize writes the rendition beside the origin. A busy lock means a
// peer is writing the identical bytes, so the local copy is dropped.
func (h *Handler) materialize(fp, path string, blob []byte) {
	if err := h.store.EnsureDir(h.layout.Dir(fp)); err != nil {
		h.logger.Warn("rendition dir", slog.String("path", path), slog.Any("error", err))
		return
	}
	err := h.store.WriteNew(path, blob)
	switch {
	case errors.Is(err, storage.ErrBusy):
		h.logger.Debug("rendition locked by peer, dropping", slog.String("path", path))
	case err != nil:
		h.logger.Warn("materialize rendition", slog.String("path", path), slog.Any("error", err))
	}
}

func (h *Handler) logFetch(c *gin.Context, key, tier string, dur time.Duration) {
	h.logger.Info(
		"served rendition",
		slog.String("remote_ip", c.ClientIP()),
		slog.String("key", key),
		slog.String("tier", tier),
		slog.Int64("duration_ms", dur.Milliseconds()),
	)
}

// intQuery mirrors atoi semantics: absent or malformed values fall back to
// the default without failing the request.
func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}
