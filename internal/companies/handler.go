package companies

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fundrise/invest-portal/invest-portal-backend/internal/auth"
	"fundrise/invest-portal/invest-portal-backend/internal/ledger"
	"fundrise/invest-portal/invest-portal-backend/internal/verification"
)

type Handler struct {
	service  *Service
	verifier *verification.Service
}

func NewHandler(service *Service, verifier *verification.Service) *Handler {
	return &Handler{service: service, verifier: verifier}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	companies := rg.Group("/companies")
	{
		companies.POST("", h.Create)
		companies.GET("", h.List)
		companies.GET("/:id", h.Get)
		companies.DELETE("/:id", h.Deactivate)
		companies.POST("/:id/mint", h.Mint)
		companies.POST("/:id/verify", h.Verify)
		companies.GET("/:id/chain", h.ChainActivity)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if userID, ok := auth.UserID(c); ok {
		req.OwnerID = userID
	}

	company, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, company)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	company, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, company)
}

func (h *Handler) List(c *gin.Context) {
	activeOnly := c.Query("active") == "true"

	companies, err := h.service.List(c.Request.Context(), activeOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, companies)
}

func (h *Handler) Deactivate(c *gin.Context) {
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

	if err := h.service.Deactivate(c.Request.Context(), id, userID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Mint(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req struct {
		TokenURI string `json:"token_uri"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.MintOnChain(c.Request.Context(), id, req.TokenURI)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if result.PendingConfirmation {
		status = http.StatusAccepted
	}
	c.JSON(status, result)
}

func (h *Handler) Verify(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	result, err := h.verifier.VerifyCompany(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, verification.ErrNotLinked) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ChainActivity returns the contract's live records for a linked company.
func (h *Handler) ChainActivity(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	activity, err := h.verifier.ChainActivity(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, verification.ErrNotLinked) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, activity)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrCompanyNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidValuation):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrAlreadyLinked):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrBlockchainRead), errors.Is(err, ledger.ErrBlockchainWrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
