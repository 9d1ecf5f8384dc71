package supabase

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"
)

type RealtimeClient struct {
	client *supabase.Client
}

func NewRealtimeClient(client *supabase.Client) *RealtimeClient {
	return &RealtimeClient{
		client: client,
	}
}

func (r *RealtimeClient) PublishEvent(channel string, event string, payload map[string]interface{}) error {
	// The Supabase Go client has no direct Realtime publish; row updates on
	// the projects table already trigger Realtime for subscribed dashboards.
	// Kept as the seam for explicit event publishing via the Realtime REST
	// API if the dashboard ever needs events that have no row update.
	return nil
}

func (r *RealtimeClient) PublishProjectEvent(projectID uuid.UUID, event string, payload map[string]interface{}) error {
	channel := fmt.Sprintf("project:%s", projectID.String())
	return r.PublishEvent(channel, event, payload)
}

// Event payloads

func PaymentReceivedPayload(projectID uuid.UUID, paymentIntentID string) map[string]interface{} {
	return map[string]interface{}{
		"project_id":        projectID.String(),
		"payment_status":    "paid",
		"payment_intent_id": paymentIntentID,
	}
}

func GenerationStartedPayload(projectID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"project_id": projectID.String(),
		"status":     "processing",
	}
}

func GenerationCompletedPayload(projectID uuid.UUID, outputImageURL string) map[string]interface{} {
	return map[string]interface{}{
		"project_id":       projectID.String(),
		"status":           "completed",
		"output_image_url": outputImageURL,
	}
}

func GenerationFailedPayload(projectID uuid.UUID, errorMsg string) map[string]interface{} {
	return map[string]interface{}{
		"project_id": projectID.String(),
		"status":     "processing",
		"error":      errorMsg,
	}
}
