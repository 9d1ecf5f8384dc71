package models

import "time"

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type CheckoutResponse struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
}

type WebhookResponse struct {
	Received bool `json:"received"`
}

type GenerateResponse struct {
	ProjectID      string `json:"projectId"`
	OutputImageURL string `json:"outputImageUrl"`
}

type DeleteResponse struct {
	Success bool `json:"success"`
}

type ProjectResponse struct {
	ID                 string    `json:"project_id"`
	InputImageURL      string    `json:"input_image_url"`
	OutputImageURL     string    `json:"output_image_url,omitempty"`
	Prompt             string    `json:"prompt"`
	Status             string    `json:"status"`
	PaymentStatus      string    `json:"payment_status"`
	PaymentAmountCents int64     `json:"payment_amount_cents"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type ProjectListResponse struct {
	Projects []ProjectSummary `json:"projects"`
}

type ProjectSummary struct {
	ID             string    `json:"project_id"`
	Prompt         string    `json:"prompt"`
	Status         string    `json:"status"`
	PaymentStatus  string    `json:"payment_status"`
	OutputImageURL string    `json:"output_image_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
