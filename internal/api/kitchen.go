package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartserve/internal/incidents"
	"smartserve/internal/models"
)

// Kitchen handlers

func (a *API) KitchenOrders(c *gin.Context) {
	view, err := a.Ordering.KitchenView(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *API) AdvanceOrder(c *gin.Context) {
	var req struct {
		Expected models.Status `json:"expected" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := a.Ordering.Advance(c.Request.Context(), c.Param("customer"), c.Param("id"), req.Expected)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (a *API) DelayOrder(c *gin.Context) {
	var req struct {
		Minutes int `json:"minutes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := a.Ordering.DeclareDelay(c.Request.Context(), c.Param("customer"), c.Param("id"), req.Minutes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// Incident handlers

func (a *API) ListIncidents(c *gin.Context) {
	feed, err := a.Ordering.Incidents(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, feed)
}

func (a *API) RaiseIncident(c *gin.Context) {
	var req struct {
		Type  incidents.Type `json:"type"`
		Text  string         `json:"text"`
		Table string         `json:"table"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in, err := a.Ordering.RaiseIncident(c.Request.Context(), incidents.Incident{
		Type:  req.Type,
		Text:  req.Text,
		Table: req.Table,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, in)
}

func (a *API) ResolveIncident(c *gin.Context) {
	if err := a.Ordering.ResolveIncident(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Incident resolved"})
}

// Dashboard handlers

func (a *API) Ratings(c *gin.Context) {
	ratings, err := a.Ordering.Ratings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ratings)
}

func (a *API) Analytics(c *gin.Context) {
	report, err := a.Ordering.Analytics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (a *API) Insights(c *gin.Context) {
	insights, err := a.Ordering.Insights(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, insights)
}

// LiveMetrics returns the dashboard and live feed figures
func (a *API) LiveMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, a.Ordering.LiveMetrics())
}
