package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetconsole/models"
)

func SetupRoutes(router *gin.Engine, h *Handlers) {
	router.Use(CORSMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, models.SuccessResponse(gin.H{"status": "ok"}))
	})

	api := router.Group("/api")
	{
		api.POST("/login", h.Login)
		api.GET("/version", h.Version)

		authed := api.Group("")
		authed.Use(h.requireSession())
		{
			authed.POST("/logout", h.Logout)
			authed.GET("/agents", h.GetAgents)
			authed.POST("/agents/refresh", h.RefreshAgents)

			authed.GET("/selection", h.GetSelection)
			authed.POST("/selection/mode", h.SetSelectionMode)
			authed.POST("/selection/toggle", h.ToggleSelection)
			authed.POST("/selection/all", h.SelectAllOrNone)
			authed.DELETE("/selection", h.ClearSelection)

			authed.POST("/dispatch", h.Dispatch)
			authed.GET("/history", h.GetHistory)
		}
	}

	// The log stream carries its own auth frame upstream, but opening a
	// view without a session is pointless, so it is gated the same way.
	router.GET("/ws/logs/:id", h.requireSession(), h.StreamLogs)
}

// requireSession rejects requests made before login or after the
// credential was invalidated.
func (h *Handlers) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.session.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse("not logged in"))
			return
		}
		c.Next()
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
