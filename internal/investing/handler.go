package investing

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fundrise/invest-portal/invest-portal-backend/internal/auth"
	"fundrise/invest-portal/invest-portal-backend/internal/ledger"
	"fundrise/invest-portal/invest-portal-backend/internal/reports"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	investments := rg.Group("/investments")
	{
		investments.POST("", h.Record)
		investments.GET("/:id", h.Get)
		investments.POST("/:id/confirm", h.ConfirmPending)
		investments.GET("/company/:companyId", h.ListByCompany)
		investments.GET("/company/:companyId/export", h.ExportCompany)
		investments.GET("/investor/:investorId", h.ListByInvestor)
		investments.GET("/investor/:investorId/export", h.ExportInvestor)
		investments.GET("/wallet/:wallet/holdings", h.WalletHoldings)
	}
}

func (h *Handler) Record(c *gin.Context) {
	var req RecordInvestmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if userID, ok := auth.UserID(c); ok {
		req.InvestorID = userID
	}

	result, err := h.service.RecordInvestment(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	status := http.StatusCreated
	if result.PendingConfirmation {
		status = http.StatusAccepted
	}
	c.JSON(status, result)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	investment, err := h.service.GetInvestment(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, investment)
}

// ConfirmPending resolves an investment whose mirror write was submitted
// but never confirmed.
func (h *Handler) ConfirmPending(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	investment, err := h.service.ConfirmPendingInvestment(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, investment)
}

func (h *Handler) ListByCompany(c *gin.Context) {
	companyID, err := uuid.Parse(c.Param("companyId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company id"})
		return
	}

	investments, err := h.service.ListCompanyInvestments(c.Request.Context(), companyID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, investments)
}

func (h *Handler) ListByInvestor(c *gin.Context) {
	investorID, err := uuid.Parse(c.Param("investorId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid investor id"})
		return
	}

	investments, err := h.service.ListInvestorInvestments(c.Request.Context(), investorID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, investments)
}

// ExportCompany streams the company's investment history as a spreadsheet.
func (h *Handler) ExportCompany(c *gin.Context) {
	companyID, err := uuid.Parse(c.Param("companyId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company id"})
		return
	}

	investments, err := h.service.ListCompanyInvestments(c.Request.Context(), companyID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	buf, err := reports.InvestmentWorkbook(investments)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filename := fmt.Sprintf("investments-%s.xlsx", companyID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// ExportInvestor streams the investor's history as a spreadsheet.
func (h *Handler) ExportInvestor(c *gin.Context) {
	investorID, err := uuid.Parse(c.Param("investorId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid investor id"})
		return
	}

	investments, err := h.service.ListInvestorInvestments(c.Request.Context(), investorID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	buf, err := reports.InvestmentWorkbook(investments)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filename := fmt.Sprintf("investments-%s.xlsx", investorID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// WalletHoldings returns the on-chain token ids a wallet has invested in.
func (h *Handler) WalletHoldings(c *gin.Context) {
	wallet := c.Param("wallet")
	if wallet == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wallet is required"})
		return
	}

	holdings, err := h.service.WalletHoldings(c.Request.Context(), wallet)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"wallet": wallet, "token_ids": holdings})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrCompanyNotFound), errors.Is(err, ledger.ErrInvestmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrSelfInvestment), errors.Is(err, ledger.ErrCompanyInactive):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrBlockchainWrite), errors.Is(err, ledger.ErrBlockchainRead):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
