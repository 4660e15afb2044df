package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"newsletter/internal/service"
	"newsletter/internal/util"
)

type SubscriptionHandler struct {
	subscriptions *service.SubscriptionService
	confirmations *service.ConfirmationService
	logger        *zap.Logger
}

func NewSubscriptionHandler(
	subscriptions *service.SubscriptionService,
	confirmations *service.ConfirmationService,
	logger *zap.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		confirmations: confirmations,
		logger:        logger,
	}
}

// Subscribe handles POST /subscriptions
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	var req struct {
		Name  string `form:"name" json:"name" binding:"required"`
		Email string `form:"email" json:"email" binding:"required"`
	}

	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and email are required"})
		return
	}

	err := h.subscriptions.Subscribe(c.Request.Context(), req.Name, req.Email)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "pending_confirmation"})
	case errors.Is(err, service.ErrInvalidSubscriber):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid name or email"})
	case errors.Is(err, service.ErrAlreadySubscribed):
		c.JSON(http.StatusConflict, gin.H{"error": "email is already subscribed"})
	case errors.Is(err, service.ErrThrottled):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "confirmation email recently sent"})
	default:
		// Covers store failures and delivery failures alike. Details stay in
		// the logs; the response carries no internals.
		util.WithTrace(c.Request.Context(), h.logger).Error("Subscription intake failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscription failed"})
	}
}

// Confirm handles GET /subscriptions/confirm?subscription_token=...
//
// An unresolvable token is always 401, never 404 or 500, so callers cannot
// tell a bad token apart from a consumed one, and a store outage is never
// mistaken for an invalid token.
func (h *SubscriptionHandler) Confirm(c *gin.Context) {
	token := c.Query("subscription_token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subscription_token is required"})
		return
	}

	outcome, err := h.confirmations.Confirm(c.Request.Context(), token)
	if err != nil {
		util.WithTrace(c.Request.Context(), h.logger).Error("Confirmation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "confirmation failed"})
		return
	}

	switch outcome {
	case service.OutcomeUnknownToken:
		c.Status(http.StatusUnauthorized)
	default:
		// Confirmed and AlreadyConfirmed are indistinguishable to callers.
		c.Status(http.StatusOK)
	}
}
