package routes

import (
	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/controllers"
	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/services/marketdata"
	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up all API routes and returns the stream controller
// so the composition root can close it on shutdown
func SetupRoutes(router *gin.Engine, service *marketdata.Service) *controllers.StreamController {
	// Initialize controllers
	marketController := controllers.NewMarketController(service)
	streamController := controllers.NewStreamController(service)

	// API v1 group
	api := router.Group("/api/v1")
	{
		// Quote routes
		quotes := api.Group("/quotes")
		{
			quotes.GET("/:symbol", marketController.GetQuote)
			quotes.GET("/:symbol/consistency", marketController.GetConsistencyReport)
		}

		// Market routes
		market := api.Group("/market")
		{
			market.GET("/sources", marketController.GetSources)
			market.GET("/status", marketController.GetStatus)
		}
	}

	// WebSocket quote stream
	router.GET("/ws/quotes", streamController.HandleWebSocket)

	return streamController
}
