package milestones

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fundrise/invest-portal/invest-portal-backend/internal/auth"
	"fundrise/invest-portal/invest-portal-backend/internal/ledger"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	milestones := rg.Group("/milestones")
	{
		milestones.POST("", h.Create)
		milestones.POST("/:id/verify", h.Verify)
		milestones.GET("/company/:companyId", h.ListByCompany)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if userID, ok := auth.UserID(c); ok {
		req.CreatedBy = userID
	}

	milestone, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, milestone)
}

func (h *Handler) Verify(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	result, err := h.service.Verify(c.Request.Context(), id, userID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListByCompany(c *gin.Context) {
	companyID, err := uuid.Parse(c.Param("companyId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company id"})
		return
	}

	milestones, err := h.service.ListForCompany(c.Request.Context(), companyID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, milestones)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrMilestoneNotFound), errors.Is(err, ledger.ErrCompanyNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrBlockchainWrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
