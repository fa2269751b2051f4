package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/stwalsh4118/kakaku/internal/errors"
	"github.com/stwalsh4118/kakaku/internal/logger"
	"github.com/stwalsh4118/kakaku/internal/middleware"
	"github.com/stwalsh4118/kakaku/internal/models"
	"github.com/stwalsh4118/kakaku/internal/services"
)

// ListingHandler serves listing queries.
type ListingHandler struct {
	service services.QueryService
}

// NewListingHandler creates a new ListingHandler instance.
func NewListingHandler(service services.QueryService) *ListingHandler {
	return &ListingHandler{service: service}
}

// ListListingsRequest represents the query parameters for the listing search.
type ListListingsRequest struct {
	MinScore *float64 `form:"min_score" binding:"omitempty,lte=100"`
	Region   string   `form:"region" binding:"omitempty,max=64"`
	Status   string   `form:"status" binding:"omitempty,oneof=active inactive"`
	Limit    int      `form:"limit" binding:"omitempty,min=1,max=500"`
}

// ListingURI identifies one listing in the path.
type ListingURI struct {
	ID string `uri:"id" binding:"required,startswith=suumo_,max=128"`
}

// ListingsResponse is the body of GET /api/v1/listings.
type ListingsResponse struct {
	Listings []models.ListingRecord `json:"listings"`
	Count    int                    `json:"count"`
}

// bindError writes the error response for a failed bind.
func bindError(c *gin.Context, err error, message string) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apierrors.ValidationError(c, validationErrors)
		return
	}
	apierrors.BadRequest(c, message, nil)
}

// List handles GET /api/v1/listings. Results are ordered by deal score,
// best first, with unscored listings last.
func (h *ListingHandler) List(c *gin.Context) {
	var req ListListingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err, "Invalid query parameters")
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Debug("Processing listing search", logger.Fields{
			"region": req.Region,
			"status": req.Status,
			"limit":  req.Limit,
		})
	}

	listings, err := h.service.ListListings(c.Request.Context(), services.ListingQuery{
		MinScore: req.MinScore,
		Region:   req.Region,
		Status:   req.Status,
		Limit:    req.Limit,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidStatus) || errors.Is(err, services.ErrInvalidLimit) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to query listings", err)
		return
	}

	c.JSON(http.StatusOK, ListingsResponse{
		Listings: listings,
		Count:    len(listings),
	})
}

// Get handles GET /api/v1/listings/:id.
func (h *ListingHandler) Get(c *gin.Context) {
	var uri ListingURI
	if err := c.ShouldBindUri(&uri); err != nil {
		bindError(c, err, "Invalid listing id")
		return
	}

	detail, err := h.service.GetListing(c.Request.Context(), uri.ID)
	if err != nil {
		if errors.Is(err, services.ErrListingNotFound) {
			apierrors.NotFound(c, "Listing not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to query listing", err)
		return
	}

	c.JSON(http.StatusOK, detail)
}
