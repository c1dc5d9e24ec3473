package httpapi

import (
	"net/http"
	"os"

	"log/slog"

	"github.com/gin-gonic/gin"

	"zimg/internal/cache"
	"zimg/internal/config"
	"zimg/internal/imaging"
	"zimg/internal/locker"
	"zimg/internal/pathing"
	"zimg/internal/storage"
)

const (
	contentTypeHTML = "text/html"
	contentTypeJPEG = "image/jpeg"
	contentTypeJSON = "application/json"

	notFoundBody = "<html><body><h1>404 Not Found!</h1></body></html>"

	welcomeBody = "<html>\n<body>\n<h1>\nWelcome To zimg World!</h1>\n</body>\n</html>\n"

	easterEggBody = "<html>\n <head>\n" +
		"  <title>Love is Eternal</title>\n" +
		" </head>\n" +
		" <body>\n" +
		"  <h1>Single1024</h1>\n" +
		"Since 2008-12-22, there left no room in my heart for another one.</br>\n" +
		"</body>\n</html>\n"
)

// Handler serves the image storage and rendition endpoints.
type Handler struct {
	cfg    *config.Config
	cache  *cache.Manager
	codec  *imaging.Codec
	store  *storage.Store
	locks  *locker.KeyedLocker
	layout pathing.Layout
	logger *slog.Logger
}

// NewHandler constructs the HTTP handler.
func NewHandler(cfg *config.Config, cache *cache.Manager, codec *imaging.Codec, store *storage.Store, locks *locker.KeyedLocker, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:   cfg,
		cache: cache,
		codec: codec,
		store: store,
		locks: locks,
		layout: pathing.Layout{
			Root:      cfg.Storage.ImgPath,
			L1Buckets: cfg.Shard.Level1Buckets,
			L2Buckets: cfg.Shard.Level2Buckets,
		},
		logger: logger.With("component", "handler"),
	}
}

// Register attaches routes to the gin engine.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", h.handleRoot)
	r.GET("/favicon.ico", h.handleFavicon)
	r.GET("/:fingerprint", h.handleFetch)
	r.POST("/", h.handleUpload)
	r.POST("/:fingerprint", h.handleUpload)
	r.NoRoute(h.handleNotFound)
}

func (h *Handler) handleRoot(c *gin.Context) {
	if path := h.cfg.Storage.RootPath; path != "" {
		page, err := os.ReadFile(path)
		if err == nil {
			c.Data(http.StatusOK, contentTypeHTML, page)
			return
		}
		h.logger.Warn("welcome page unreadable, serving built-in", slog.String("path", path), slog.Any("error", err))
	}
	c.Data(http.StatusOK, contentTypeHTML, []byte(welcomeBody))
}

func (h *Handler) handleFavicon(c *gin.Context) {
	c.Data(http.StatusOK, contentTypeHTML, nil)
}

func (h *Handler) handleNotFound(c *gin.Context) {
	c.Data(http.StatusNotFound, contentTypeHTML, []byte(notFoundBody))
}
