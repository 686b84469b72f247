package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/zhaocg/app-download-center/internal/config"
	"github.com/zhaocg/app-download-center/internal/modules/handler"
	"github.com/zhaocg/app-download-center/internal/modules/serializer"
)

type Handlers struct {
	Upload      *handler.UploadHandler
	File        *handler.FileHandler
	Browse      *handler.BrowseHandler
	Maintenance *handler.MaintenanceHandler
}

// NewRouter assembles the gin engine with all routes and middleware.
func NewRouter(cfg *config.Config, log *zap.Logger, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	if cfg.Telemetry.Enabled {
		r.Use(otelgin.Middleware(cfg.App.Name))
	}
	// Uploads can run large; the limit protects the multipart parser.
	r.MaxMultipartMemory = 32 << 20

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, serializer.Response{Msg: "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/upload", h.Upload.Upload)
		api.GET("/download", h.File.Download)
		api.DELETE("/file", h.File.Delete)
		api.POST("/share", h.File.Share)
		api.GET("/icon", h.File.Icon)
		api.GET("/ios/manifest", h.File.Manifest)

		api.GET("/browse", h.Browse.Browse)
		api.GET("/projects", h.Browse.Projects)
		api.GET("/uploads", h.Browse.RecentUploads)

		maint := api.Group("", CleanupToken(cfg.Cleanup.Token))
		{
			maint.POST("/cleanup", h.Maintenance.Cleanup)
			maint.POST("/clear", h.Maintenance.Clear)
		}
	}

	r.GET("/share/:shareId", h.File.ResolveShare)

	return r
}
