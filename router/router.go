// router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dev-mohitbeniwal/dirsync/controller"
	"github.com/dev-mohitbeniwal/dirsync/middleware"
)

func SetupRouter(
	syncController *controller.SyncController,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(rateLimitRequests, rateLimitDuration))

	api := router.Group("/api/v1")

	syncController.RegisterRoutes(api)

	return router
}
