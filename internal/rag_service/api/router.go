package api

import (
	"github.com/gin-gonic/gin"

	"Muninn/internal/config"
)

// RegisterRoutes mounts every endpoint of the retrieval service under the
// configured base path. The health endpoint is registered before the auth
// middleware so probes never need a token.
func RegisterRoutes(router *gin.Engine, a *API, cfg *config.AppConfig) {
	base := cfg.Server.BasePath
	if base == "" {
		base = "/api/v1"
	}

	router.Use(AccessLog(a.logger))

	v1 := router.Group(base)

	v1.GET("/health", a.HealthHandler)

	if cfg.Auth.Enabled {
		v1.Use(AuthMiddleware(cfg.Auth.JwtSecret))
	}

	upload := v1.Group("/upload")
	{
		upload.POST("/document", a.UploadDocumentHandler)
		upload.POST("/image", a.UploadImageHandler)
		upload.POST("/audio", a.UploadAudioHandler)
	}

	docs := v1.Group("/documents")
	{
		docs.GET("", a.ListDocumentsHandler)
		docs.GET("/:id", a.GetDocumentHandler)
		docs.DELETE("/:id", a.DeleteDocumentHandler)
		docs.GET("/:id/chunks", a.DocumentChunksHandler)
		docs.GET("/:id/content", a.DocumentContentHandler)
		docs.GET("/:id/download", a.DocumentDownloadHandler)
	}

	v1.POST("/query", a.QueryHandler)
	v1.POST("/search", a.SearchHandler)
	v1.POST("/suggestions", a.SuggestionsHandler)
}
