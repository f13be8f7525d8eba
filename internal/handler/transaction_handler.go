package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/dispatch"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/events"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/middleware"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/models"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/orchestrator"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/repository"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/validation"
)

// Orchestration defines the operations used by TransactionHandler.
type Orchestration interface {
	Submit(ctx context.Context, req events.TransactionRequest) (*orchestrator.SubmitResult, error)
	GetTransaction(ctx context.Context, eventID string) (*models.TransactionRecord, error)
}

type TransactionHandler struct {
	orchestration Orchestration
}

type SubmitTransactionRequest struct {
	EventID            string          `json:"eventId" validate:"required"`
	Type               string          `json:"type" validate:"required,oneof=DEPOSIT WITHDRAWAL TRANSFER"`
	Amount             decimal.Decimal `json:"amount"`
	SourceAccount      string          `json:"sourceAccount" validate:"required"`
	DestinationAccount string          `json:"destinationAccount"`
}

func NewTransactionHandler(orchestration Orchestration) *TransactionHandler {
	return &TransactionHandler{orchestration: orchestration}
}

func (h *TransactionHandler) SubmitTransaction(c *gin.Context) {
	clientID, _ := middleware.GetClientID(c)

	var req SubmitTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	originating, ok := middleware.GetService(c)
	if !ok {
		originating = "rest-api"
	}

	result, err := h.orchestration.Submit(c.Request.Context(), events.TransactionRequest{
		EventID:            req.EventID,
		Type:               events.TransactionType(req.Type),
		Amount:             req.Amount,
		SourceAccount:      req.SourceAccount,
		DestinationAccount: req.DestinationAccount,
		ClientID:           clientID,
		OriginatingService: originating,
		Timestamp:          time.Now().UTC(),
	})
	if err != nil {
		var verr *validation.Error
		switch {
		case errors.As(err, &verr):
			middleware.RespondWithError(c, http.StatusBadRequest, verr.Error())
		case errors.Is(err, dispatch.ErrUnknownAccount):
			middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
		default:
			middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to process transaction")
		}
		return
	}

	if result.Duplicate {
		c.JSON(http.StatusOK, result.Record)
		return
	}
	c.JSON(http.StatusCreated, result.Record)
}

func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	eventID := c.Param("eventId")

	record, err := h.orchestration.GetTransaction(c.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			middleware.RespondWithError(c, http.StatusNotFound, "Transaction not found")
			return
		}
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to get transaction")
		return
	}

	c.JSON(http.StatusOK, record)
}
