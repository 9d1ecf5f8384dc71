package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"imagemorph-backend/internal/middleware"
	"imagemorph-backend/internal/models"
	"imagemorph-backend/internal/payments"
)

// ProjectStore is the durable record store shared by all handlers. Every
// method is scoped by owner, and the transition methods evaluate their
// status guards atomically inside the store operation.
type ProjectStore interface {
	CreateProject(userID uuid.UUID, inputImageURL, prompt string, amountCents int64) (*models.Project, error)
	GetProject(projectID, userID uuid.UUID) (*models.Project, error)
	ListProjects(userID uuid.UUID) ([]models.Project, error)
	SetCheckoutSession(projectID, userID uuid.UUID, sessionID string) error
	MarkPaid(projectID, userID uuid.UUID, sessionID, paymentIntentID string) (int64, error)
	ClaimForProcessing(projectID, userID uuid.UUID) (bool, error)
	CompleteProject(projectID, userID uuid.UUID, outputImageURL string) error
	DeleteProject(projectID, userID uuid.UUID) error
}

// ObjectStore is blob storage with public URL issuance.
type ObjectStore interface {
	Upload(bucket, name string, data []byte, contentType string) (string, string, error)
	PublicURL(bucket, path string) string
	Delete(bucket, name string) error
}

// CheckoutProvider is the payment gateway: hosted session creation plus
// verification of its signed webhook events.
type CheckoutProvider interface {
	CreateCheckoutSession(params payments.CheckoutSessionParams) (*payments.CheckoutSession, error)
	ConstructEvent(payload []byte, sigHeader string) (*payments.Event, error)
}

// ImageGenerator is the inference service normalized to "terminal result URL
// or error", regardless of whether the provider answered synchronously or
// had to be polled.
type ImageGenerator interface {
	Generate(ctx context.Context, imageURL, prompt string) (string, error)
	Download(ctx context.Context, resultURL string) ([]byte, error)
}

// currentUserID extracts the authenticated caller set by the auth
// middleware. Writes the error response itself when the identity is absent
// or unusable.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user id"})
		return uuid.Nil, false
	}

	return userID, true
}
