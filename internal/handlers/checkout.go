package handlers

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"imagemorph-backend/internal/models"
	"imagemorph-backend/internal/payments"
)

// Fixed unit price, computed server-side. Client-supplied amounts are never
// accepted.
const (
	paymentAmountCents = 200
	paymentCurrency    = "eur"
	productName        = "AI image generation"

	// Prompt length when echoed to the payment gateway as the line item
	// description.
	promptDisplayLimit = 100
)

type CheckoutHandler struct {
	dbClient       ProjectStore
	storageClient  ObjectStore
	paymentsClient CheckoutProvider
	inputBucket    string
	baseURL        string
}

func NewCheckoutHandler(dbClient ProjectStore, storageClient ObjectStore, paymentsClient CheckoutProvider, inputBucket, baseURL string) *CheckoutHandler {
	return &CheckoutHandler{
		dbClient:       dbClient,
		storageClient:  storageClient,
		paymentsClient: paymentsClient,
		inputBucket:    inputBucket,
		baseURL:        baseURL,
	}
}

// CreateCheckout uploads the source image, creates the pending project and
// opens a hosted checkout session whose metadata carries the project and
// owner ids back on the completion webhook.
func (h *CheckoutHandler) CreateCheckout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	file, err := c.FormFile("image")
	prompt := c.PostForm("prompt")
	if err != nil || prompt == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "missing image or prompt"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to open uploaded file",
			Message: err.Error(),
		})
		return
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to read uploaded file",
			Message: err.Error(),
		})
		return
	}

	// Time-based prefix keeps names collision-resistant across uploads of
	// the same file.
	filename := fmt.Sprintf("input-%d-%s", time.Now().UnixMilli(), filepath.Base(file.Filename))
	contentType := file.Header.Get("Content-Type")

	_, inputImageURL, err := h.storageClient.Upload(h.inputBucket, filename, data, contentType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to store image",
			Message: err.Error(),
		})
		return
	}

	project, err := h.dbClient.CreateProject(userID, inputImageURL, prompt, paymentAmountCents)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to create project",
			Message: err.Error(),
		})
		return
	}

	session, err := h.paymentsClient.CreateCheckoutSession(payments.CheckoutSessionParams{
		AmountCents: paymentAmountCents,
		Currency:    paymentCurrency,
		ProductName: productName,
		Description: truncate(prompt, promptDisplayLimit),
		SuccessURL:  h.baseURL + "/dashboard?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   h.baseURL + "/dashboard?canceled=true",
		Metadata: map[string]string{
			"project_id": project.ID.String(),
			"user_id":    userID.String(),
		},
		ClientReferenceID: userID.String(),
	})
	if err != nil {
		// The blob and row persist; they are orphaned but not user-visible.
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to create checkout session",
			Message: err.Error(),
		})
		return
	}

	// Correlation also works from webhook metadata alone, so a failure here
	// is not fatal.
	if err := h.dbClient.SetCheckoutSession(project.ID, userID, session.ID); err != nil {
		log.Printf("failed to record checkout session %s on project %s: %v", session.ID, project.ID, err)
	}

	c.JSON(http.StatusOK, models.CheckoutResponse{
		SessionID:   session.ID,
		RedirectURL: session.URL,
	})
}

// truncate cuts s to at most limit bytes without splitting a multibyte rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
