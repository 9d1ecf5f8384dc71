package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"imagemorph-backend/internal/models"
	"imagemorph-backend/internal/supabase"
)

type GenerateHandler struct {
	dbClient        ProjectStore
	storageClient   ObjectStore
	inferenceClient ImageGenerator
	realtimeClient  *supabase.RealtimeClient
	outputBucket    string
	timeout         time.Duration
}

func NewGenerateHandler(dbClient ProjectStore, storageClient ObjectStore, inferenceClient ImageGenerator, realtimeClient *supabase.RealtimeClient, outputBucket string, timeout time.Duration) *GenerateHandler {
	return &GenerateHandler{
		dbClient:        dbClient,
		storageClient:   storageClient,
		inferenceClient: inferenceClient,
		realtimeClient:  realtimeClient,
		outputBucket:    outputBucket,
		timeout:         timeout,
	}
}

// Generate runs the one paid generation for a project. Preconditions are
// checked in order (exists+owned, paid, not yet completed) and the
// pending->processing transition is claimed with a conditional update, so of
// two concurrent requests exactly one proceeds.
func (h *GenerateHandler) Generate(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "missing projectId"})
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id"})
		return
	}

	project, err := h.dbClient.GetProject(projectID, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "project not found"})
		return
	}

	if project.PaymentStatus != models.PaymentStatusPaid {
		c.JSON(http.StatusPaymentRequired, models.ErrorResponse{Error: "payment required"})
		return
	}

	if project.Status == models.StatusCompleted {
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "already generated"})
		return
	}

	claimed, err := h.dbClient.ClaimForProcessing(projectID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to start generation",
			Message: err.Error(),
		})
		return
	}
	if !claimed {
		// Lost the race against a concurrent request for the same project.
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "already generated"})
		return
	}

	h.realtimeClient.PublishProjectEvent(projectID, "generation_started",
		supabase.GenerationStartedPayload(projectID))

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resultURL, err := h.inferenceClient.Generate(ctx, project.InputImageURL, project.Prompt)
	if err != nil {
		h.failGeneration(c, projectID, "generation failed", err)
		return
	}

	data, err := h.inferenceClient.Download(ctx, resultURL)
	if err != nil {
		h.failGeneration(c, projectID, "failed to download generated image", err)
		return
	}

	filename := fmt.Sprintf("output-%d.png", time.Now().UnixMilli())
	_, outputImageURL, err := h.storageClient.Upload(h.outputBucket, filename, data, "image/png")
	if err != nil {
		h.failGeneration(c, projectID, "failed to store generated image", err)
		return
	}

	if err := h.dbClient.CompleteProject(projectID, userID, outputImageURL); err != nil {
		h.failGeneration(c, projectID, "failed to complete project", err)
		return
	}

	h.realtimeClient.PublishProjectEvent(projectID, "generation_completed",
		supabase.GenerationCompletedPayload(projectID, outputImageURL))

	c.JSON(http.StatusOK, models.GenerateResponse{
		ProjectID:      projectID.String(),
		OutputImageURL: outputImageURL,
	})
}

// failGeneration reports a generation error. The project stays in
// processing; there is no automatic revert or retry, recovery is a manual
// operation.
func (h *GenerateHandler) failGeneration(c *gin.Context, projectID uuid.UUID, msg string, err error) {
	h.realtimeClient.PublishProjectEvent(projectID, "generation_failed",
		supabase.GenerationFailedPayload(projectID, err.Error()))

	status := http.StatusBadGateway
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
		msg = "generation timed out"
	}

	c.JSON(status, models.ErrorResponse{
		Error:   msg,
		Message: err.Error(),
	})
}
