package controllers

import (
	"net/http"

	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/services/marketdata"
	"github.com/gin-gonic/gin"
)

// MarketController handles quote and market status requests
type MarketController struct {
	service *marketdata.Service
}

// NewMarketController creates a new market controller
func NewMarketController(service *marketdata.Service) *MarketController {
	return &MarketController{service: service}
}

// GetQuote returns the latest quote for a symbol, served from the
// distribution cache when the symbol is actively subscribed, fetched
// on demand otherwise
// GET /api/v1/quotes/:symbol
func (mc *MarketController) GetQuote(c *gin.Context) {
	symbol := c.Param("symbol")

	if quote, ok := mc.service.GetCached(symbol); ok {
		c.JSON(http.StatusOK, gin.H{
			"data":   quote,
			"cached": true,
		})
		return
	}

	quote, err := mc.service.Lookup(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Quote not available for " + symbol})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   quote,
		"cached": false,
	})
}

// GetConsistencyReport returns the latest data-quality report for a symbol
// GET /api/v1/quotes/:symbol/consistency
func (mc *MarketController) GetConsistencyReport(c *gin.Context) {
	symbol := c.Param("symbol")

	report, ok := mc.service.GetConsistencyReport(symbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No consistency report for " + symbol})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

// GetSources returns which upstream sources are configured, for the
// UI connection-status display
// GET /api/v1/market/sources
func (mc *MarketController) GetSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": mc.service.GetAvailableSources()})
}

// GetStatus returns distribution service statistics
// GET /api/v1/market/status
func (mc *MarketController) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": mc.service.Stats()})
}
