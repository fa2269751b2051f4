package handlers

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/stwalsh4118/kakaku/internal/logger"
	"github.com/stwalsh4118/kakaku/internal/middleware"
	"github.com/stwalsh4118/kakaku/internal/services"
)

// RouterConfig holds everything the API routes depend on.
type RouterConfig struct {
	DB          Pinger
	Query       services.QueryService
	Log         *logger.Logger
	Env         string
	CORSOrigins []string
}

var fieldNamesOnce sync.Once

// useParameterNames makes validation errors name the query or path
// parameter instead of the Go struct field.
func useParameterNames() {
	fieldNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"form", "uri"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
	})
}

// NewRouter builds the read-only API. Middleware order is RequestID, Logger,
// Recovery, CORS.
func NewRouter(cfg RouterConfig) *gin.Engine {
	useParameterNames()

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(cfg.Log))
	router.Use(middleware.Recovery(cfg.Log))
	router.Use(middleware.CORS(cfg.CORSOrigins))

	health := NewHealthHandler(cfg.DB, cfg.Env)
	router.GET("/health", health.Health)
	router.GET("/health/ready", health.Ready)

	listings := NewListingHandler(cfg.Query)
	prices := NewMarketPriceHandler(cfg.Query)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/info", health.Info)

		v1.GET("/listings", listings.List)
		v1.GET("/listings/:id", listings.Get)

		v1.GET("/market-prices", prices.List)
	}

	return router
}
