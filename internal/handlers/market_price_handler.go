package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/stwalsh4118/kakaku/internal/errors"
	"github.com/stwalsh4118/kakaku/internal/models"
	"github.com/stwalsh4118/kakaku/internal/services"
)

// MarketPriceHandler serves the bracket table.
type MarketPriceHandler struct {
	service services.QueryService
}

// NewMarketPriceHandler creates a new MarketPriceHandler instance.
func NewMarketPriceHandler(service services.QueryService) *MarketPriceHandler {
	return &MarketPriceHandler{service: service}
}

// MarketPricesRequest represents the query parameters for the bracket listing.
type MarketPricesRequest struct {
	Region string `form:"region" binding:"omitempty,max=64"`
	Usable bool   `form:"usable"`
}

// MarketPricesResponse is the body of GET /api/v1/market-prices.
type MarketPricesResponse struct {
	MarketPrices []models.MarketPriceBracket `json:"marketPrices"`
	Count        int                         `json:"count"`
}

// List handles GET /api/v1/market-prices. usable=true drops brackets below
// the sample threshold.
func (h *MarketPriceHandler) List(c *gin.Context) {
	var req MarketPricesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err, "Invalid query parameters")
		return
	}

	brackets, err := h.service.ListMarketPrices(c.Request.Context(), req.Region, req.Usable)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to query market prices", err)
		return
	}

	c.JSON(http.StatusOK, MarketPricesResponse{
		MarketPrices: brackets,
		Count:        len(brackets),
	})
}
