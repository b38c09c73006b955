package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(allowedOrigins []string, signalController *SignalController, roomController *RoomController, historyController *HistoryController) *gin.Engine {
	router := gin.Default()
	config := cors.DefaultConfig()
	config.AllowOrigins = allowedOrigins
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	if signalController != nil {
		router.GET("/ws", signalController.Connect)
	}

	api := router.Group("/api")

	if roomController != nil {
		api.GET("/rooms/:roomID", roomController.GetRoom)
		api.GET("/ice", roomController.GetICEServers)
	}

	if historyController != nil {
		api.GET("/history/:userID", historyController.ListCalls)
	}

	return router
}
