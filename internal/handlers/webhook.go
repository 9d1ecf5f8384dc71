package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"imagemorph-backend/internal/models"
	"imagemorph-backend/internal/payments"
	"imagemorph-backend/internal/supabase"
)

type WebhookHandler struct {
	dbClient       ProjectStore
	paymentsClient CheckoutProvider
	realtimeClient *supabase.RealtimeClient
}

func NewWebhookHandler(dbClient ProjectStore, paymentsClient CheckoutProvider, realtimeClient *supabase.RealtimeClient) *WebhookHandler {
	return &WebhookHandler{
		dbClient:       dbClient,
		paymentsClient: paymentsClient,
		realtimeClient: realtimeClient,
	}
}

// HandleWebhook processes payment gateway events. The signature is verified
// over the exact raw body before anything is parsed as trusted. Delivery is
// at-least-once, so applying the same event twice must change nothing.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to read request body",
			Message: err.Error(),
		})
		return
	}

	event, err := h.paymentsClient.ConstructEvent(body, c.GetHeader(payments.SignatureHeader))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid signature",
			Message: err.Error(),
		})
		return
	}

	if event.Type != payments.EventCheckoutSessionCompleted {
		// Other event types are acknowledged, not acted upon.
		c.JSON(http.StatusOK, models.WebhookResponse{Received: true})
		return
	}

	var session payments.CheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to parse event",
			Message: err.Error(),
		})
		return
	}

	// Project and owner come from session metadata only. The event
	// originates from the gateway's servers, never from the browser.
	projectIDStr := session.Metadata["project_id"]
	userIDStr := session.Metadata["user_id"]
	if projectIDStr == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "no project_id in metadata"})
		return
	}

	projectID, err := uuid.Parse(projectIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project_id in metadata"})
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user_id in metadata"})
		return
	}

	affected, err := h.dbClient.MarkPaid(projectID, userID, session.ID, session.PaymentIntent)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to update project",
			Message: err.Error(),
		})
		return
	}
	if affected == 0 {
		// Project deleted, owner mismatch, or already paid (a redelivery).
		// Absorbed: the gateway gets its acknowledgment and stops
		// redelivering.
		log.Printf("payment event %s matched no unpaid project (project_id=%s)", event.ID, projectID)
	} else {
		h.realtimeClient.PublishProjectEvent(projectID, "payment_received",
			supabase.PaymentReceivedPayload(projectID, session.PaymentIntent))
	}

	c.JSON(http.StatusOK, models.WebhookResponse{Received: true})
}
