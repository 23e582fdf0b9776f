package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartserve/internal/auth"
	"smartserve/internal/incidents"
	"smartserve/internal/inventory"
	"smartserve/internal/lifecycle"
	"smartserve/internal/ordering"
	"smartserve/internal/pricing"
	"smartserve/internal/realtime"
	"smartserve/internal/store"
)

// API represents the HTTP surface of the venue service
type API struct {
	Router   *gin.Engine
	Ordering *ordering.Service
	Auth     *auth.Issuer
	Live     *realtime.Hub
}

// NewAPI creates a new API instance with all routes registered
func NewAPI(svc *ordering.Service, issuer *auth.Issuer, hub *realtime.Hub) *API {
	router := gin.Default()

	api := &API{
		Router:   router,
		Ordering: svc,
		Auth:     issuer,
		Live:     hub,
	}

	api.setupRoutes()
	return api
}

// setupRoutes configures all API endpoints
func (a *API) setupRoutes() {
	a.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "SmartServe API is running"})
	})

	v1 := a.Router.Group("/api/v1")
	{
		v1.POST("/sessions", a.CreateSession)

		// Catalog
		v1.GET("/menu", a.ListMenu)
		v1.POST("/menu/:id/price", a.PriceItem)
		v1.PUT("/menu/:id/stock", a.AdjustStock)

		// Customer orders
		customer := v1.Group("/orders", a.Auth.Middleware())
		{
			customer.GET("", a.ListOrders)
			customer.POST("", a.PlaceOrder)
			customer.POST("/service", a.RequestService)
			customer.PUT("/:id/service", a.SetServiceRequest)
			customer.DELETE("/:id/service", a.ClearServiceRequest)
			customer.POST("/:id/feedback", a.AttachFeedback)
			customer.POST("/:id/feedback/skip", a.SkipFeedback)
		}

		// Kitchen operations
		kitchen := v1.Group("/kitchen")
		{
			kitchen.GET("/orders", a.KitchenOrders)
			kitchen.POST("/orders/:customer/:id/advance", a.AdvanceOrder)
			kitchen.POST("/orders/:customer/:id/delay", a.DelayOrder)
			kitchen.GET("/incidents", a.ListIncidents)
			kitchen.POST("/incidents", a.RaiseIncident)
			kitchen.POST("/incidents/:id/resolve", a.ResolveIncident)
		}

		// Manager dashboard
		dashboard := v1.Group("/dashboard")
		{
			dashboard.GET("/ratings", a.Ratings)
			dashboard.GET("/analytics", a.Analytics)
			dashboard.GET("/insights", a.Insights)
			dashboard.GET("/metrics", a.LiveMetrics)
		}
	}

	if a.Live != nil {
		ws := a.Router.Group("/ws")
		{
			ws.GET("/orders", auth.QueryToken(), a.Auth.Middleware(), a.Live.HandleOrders)
			ws.GET("/menu", a.Live.HandleMenu)
			ws.GET("/kitchen", a.Live.HandleKitchen)
		}
	}
}

// statusOf maps domain errors onto HTTP status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, incidents.ErrUnknownIncident):
		return http.StatusNotFound

	case errors.Is(err, inventory.ErrOutOfStock),
		errors.Is(err, store.ErrStaleWrite),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, incidents.ErrSelfClearing),
		errors.Is(err, ordering.ErrFeedbackClosed),
		errors.Is(err, ordering.ErrActiveOrder):
		return http.StatusConflict

	case errors.Is(err, ordering.ErrEmptyCart),
		errors.Is(err, ordering.ErrMissingTable),
		errors.Is(err, ordering.ErrInvalidType),
		errors.Is(err, ordering.ErrEmptyRequest),
		errors.Is(err, ordering.ErrNotServed),
		errors.Is(err, ordering.ErrInvalidStock),
		errors.Is(err, ordering.ErrInvalidDelay),
		errors.Is(err, ordering.ErrUnknownStatus),
		errors.Is(err, ordering.ErrInvalidRating),
		errors.Is(err, ordering.ErrNotPreparing),
		errors.Is(err, ordering.ErrTerminal),
		errors.Is(err, incidents.ErrInvalidIncident),
		errors.Is(err, pricing.ErrUnknownModifier),
		errors.Is(err, pricing.ErrUnknownOption),
		errors.Is(err, pricing.ErrTooManyOptions),
		errors.Is(err, pricing.ErrDuplicateOption):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": "..."} with the matching status
func respondError(c *gin.Context, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}

	body := gin.H{"error": err.Error()}
	var oos *inventory.OutOfStockError
	if errors.As(err, &oos) {
		body["itemId"] = oos.ItemID
		body["itemName"] = oos.ItemName
	}
	c.JSON(code, body)
}
