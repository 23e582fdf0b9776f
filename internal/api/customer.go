package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"smartserve/internal/auth"
	"smartserve/internal/models"
	"smartserve/internal/ordering"
	"smartserve/internal/pricing"
)

// CreateSession issues an anonymous session. A caller that still holds a
// valid token gets a fresh one for the same customer.
func (a *API) CreateSession(c *gin.Context) {
	customerID := ""
	if header := c.GetHeader("Authorization"); header != "" {
		if id, err := a.Auth.Verify(strings.TrimPrefix(header, "Bearer ")); err == nil {
			customerID = id
		}
	}

	session, err := a.Auth.Issue(customerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// Catalog handlers

// ListMenu returns the catalog, optionally narrowed with ?tag=popular.
func (a *API) ListMenu(c *gin.Context) {
	menu, err := a.Ordering.Menu(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if tag := c.Query("tag"); tag != "" {
		tagged := make([]models.MenuItem, 0, len(menu))
		for i := range menu {
			if menu[i].HasTag(tag) {
				tagged = append(tagged, menu[i])
			}
		}
		menu = tagged
	}
	c.JSON(http.StatusOK, menu)
}

func (a *API) PriceItem(c *gin.Context) {
	var req struct {
		Modifiers models.Selection `json:"modifiers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	price, err := a.Ordering.Quote(c.Request.Context(), c.Param("id"), req.Modifiers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"price": price, "formatted": pricing.FormatKSh(price)})
}

func (a *API) AdjustStock(c *gin.Context) {
	var req struct {
		Stock *int `json:"stock" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := a.Ordering.AdjustStock(c.Request.Context(), c.Param("id"), *req.Stock)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Customer order handlers

func (a *API) ListOrders(c *gin.Context) {
	view, err := a.Ordering.CustomerView(c.Request.Context(), auth.CustomerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *API) PlaceOrder(c *gin.Context) {
	var req ordering.PlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := a.Ordering.PlaceOrder(c.Request.Context(), auth.CustomerID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

type serviceRequest struct {
	Text string `json:"text"`
}

func (a *API) RequestService(c *gin.Context) {
	var req serviceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	order, err := a.Ordering.RequestGeneralService(c.Request.Context(), auth.CustomerID(c), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (a *API) SetServiceRequest(c *gin.Context) {
	var req serviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := a.Ordering.SetServiceRequest(c.Request.Context(), auth.CustomerID(c), c.Param("id"), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (a *API) ClearServiceRequest(c *gin.Context) {
	order, err := a.Ordering.ClearServiceRequest(c.Request.Context(), auth.CustomerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (a *API) AttachFeedback(c *gin.Context) {
	var fb models.Feedback
	if err := c.ShouldBindJSON(&fb); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := a.Ordering.AttachFeedback(c.Request.Context(), auth.CustomerID(c), c.Param("id"), fb)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (a *API) SkipFeedback(c *gin.Context) {
	order, err := a.Ordering.SkipFeedback(c.Request.Context(), auth.CustomerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
