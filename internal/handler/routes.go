package handler

import (
	"net/http"

	"github.com/dafibh/fortuna/budget-backend/internal/middleware"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth        *AuthHandler
	Transaction *TransactionHandler
	Series      *SeriesHandler
	Occurrence  *OccurrenceHandler
	Category    *CategoryHandler
	Dashboard   *DashboardHandler
	CSV         *CSVHandler
	WebSocket   *WebSocketHandler
	OpenAPI     *OpenAPIHandler
}

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, rateLimiter *middleware.RateLimiter, h Handlers) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// WebSocket authenticates with the token query parameter
	if h.WebSocket != nil {
		e.GET("/ws", h.WebSocket.HandleWS)
	}

	// API version 1
	api := e.Group("/api/v1")
	if h.OpenAPI != nil {
		api.GET("/openapi.json", h.OpenAPI.ServeSpec)
	}

	// The callback runs before the user row exists
	auth := api.Group("/auth")
	auth.POST("/callback", h.Auth.Callback, authMiddleware.AuthenticateToken())
	auth.POST("/logout", h.Auth.Logout, authMiddleware.AuthenticateToken())
	auth.GET("/me", h.Auth.Me, authMiddleware.Authenticate())

	// Everything below requires a registered user
	protected := api.Group("")
	protected.Use(authMiddleware.Authenticate())
	if rateLimiter != nil {
		protected.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	transactions := protected.Group("/transactions")
	transactions.POST("", h.Transaction.CreateTransaction)
	transactions.GET("", h.Transaction.GetTransactions)
	transactions.GET("/:id", h.Transaction.GetTransaction)
	transactions.PUT("/:id", h.Transaction.UpdateTransaction)
	transactions.DELETE("/:id", h.Transaction.DeleteTransaction)
	transactions.PUT("/:id/series", h.Series.ModifySeries)

	protected.GET("/occurrences", h.Occurrence.GetOccurrences)

	categories := protected.Group("/categories")
	categories.GET("", h.Category.GetCategories)
	categories.POST("", h.Category.CreateCategory)
	categories.PUT("/:id", h.Category.UpdateCategory)
	categories.DELETE("/:id", h.Category.DeleteCategory)

	dashboard := protected.Group("/dashboard")
	dashboard.GET("/summary", h.Dashboard.GetSummary)
	dashboard.GET("/trend", h.Dashboard.GetTrend)

	csv := protected.Group("/csv")
	csv.GET("/export", h.CSV.Export)
	csv.POST("/import", h.CSV.Import)
	csv.POST("/archive", h.CSV.Archive)
}
