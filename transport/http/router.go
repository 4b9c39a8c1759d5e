package http

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/sessionkit"
	"github.com/rs/zerolog"
)

// SetupRouter sets up the Gin router. authToken, when set, protects every route.
func SetupRouter(client sessionkit.Client, authToken string, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger), AuthMiddleware(authToken), Serialize(&sync.Mutex{}))

	handlers := NewHandlers(client)

	keys := router.Group("/keys")
	{
		keys.GET("", handlers.ListKeys)
		keys.POST("", handlers.CreateKey)
		keys.POST("/import", handlers.ImportKey)
		keys.POST("/:id/rename", handlers.RenameKey)
		keys.GET("/:id/jwk", handlers.PublicKey)
		keys.GET("/:id/did", handlers.Identity)
		keys.PUT("/:id/session", handlers.UpdateSession)
		keys.POST("/:id/invocations", handlers.SignInvocation)
	}

	capabilities := router.Group("/capabilities")
	{
		capabilities.GET("", handlers.Capabilities)
		capabilities.DELETE("", handlers.ResetCapabilities)
		capabilities.POST("/default", handlers.AddDefaultActions)
		capabilities.POST("/targeted", handlers.AddTargetedActions)
		capabilities.POST("/extra", handlers.AddExtraFields)
	}

	siwe := router.Group("/siwe")
	{
		siwe.POST("/build", handlers.BuildMessage)
		siwe.POST("/complete", handlers.CompleteSignIn)
	}

	return router
}
