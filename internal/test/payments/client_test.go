package payments_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagemorph-backend/internal/payments"
)

const webhookSecret = "whsec_unit_test"

func TestCreateCheckoutSession(t *testing.T) {
	var gotForm url.Values
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/checkout/sessions", r.URL.Path)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		json.NewEncoder(w).Encode(map[string]string{
			"id":  "cs_test_abc",
			"url": "https://checkout.test/pay/cs_test_abc",
		})
	}))
	defer server.Close()

	client := payments.NewClient(server.URL, "sk_test_key", webhookSecret)
	session, err := client.CreateCheckoutSession(payments.CheckoutSessionParams{
		AmountCents: 200,
		Currency:    "eur",
		ProductName: "AI image generation",
		Description: "turn cat into astronaut",
		SuccessURL:  "https://app.test/dashboard?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   "https://app.test/dashboard?canceled=true",
		Metadata: map[string]string{
			"project_id": "proj-1",
			"user_id":    "user-1",
		},
		ClientReferenceID: "user-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "cs_test_abc", session.ID)
	assert.Equal(t, "https://checkout.test/pay/cs_test_abc", session.URL)

	assert.Equal(t, "Bearer sk_test_key", gotAuth)
	assert.Equal(t, "payment", gotForm.Get("mode"))
	assert.Equal(t, "card", gotForm.Get("payment_method_types[0]"))
	assert.Equal(t, "1", gotForm.Get("line_items[0][quantity]"))
	assert.Equal(t, "eur", gotForm.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "200", gotForm.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "AI image generation", gotForm.Get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "turn cat into astronaut", gotForm.Get("line_items[0][price_data][product_data][description]"))
	assert.Equal(t, "proj-1", gotForm.Get("metadata[project_id]"))
	assert.Equal(t, "user-1", gotForm.Get("metadata[user_id]"))
	assert.Equal(t, "user-1", gotForm.Get("client_reference_id"))
}

func TestCreateCheckoutSession_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "invalid key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := payments.NewClient(server.URL, "sk_bad", webhookSecret)
	_, err := client.CreateCheckoutSession(payments.CheckoutSessionParams{
		AmountCents: 200,
		Currency:    "eur",
		ProductName: "AI image generation",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func eventPayload(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":   "evt_1",
		"type": payments.EventCheckoutSessionCompleted,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":             "cs_test_abc",
				"payment_intent": "pi_1",
				"metadata": map[string]string{
					"project_id": "proj-1",
					"user_id":    "user-1",
				},
			},
		},
	})
	require.NoError(t, err)
	return payload
}

func TestConstructEvent_ValidSignature(t *testing.T) {
	client := payments.NewClient("https://api.test", "sk", webhookSecret)
	payload := eventPayload(t)
	header := payments.SignPayload(webhookSecret, time.Now(), payload)

	event, err := client.ConstructEvent(payload, header)

	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, payments.EventCheckoutSessionCompleted, event.Type)

	var session payments.CheckoutSession
	require.NoError(t, json.Unmarshal(event.Data.Object, &session))
	assert.Equal(t, "cs_test_abc", session.ID)
	assert.Equal(t, "proj-1", session.Metadata["project_id"])
}

func TestConstructEvent_WrongSecret(t *testing.T) {
	client := payments.NewClient("https://api.test", "sk", webhookSecret)
	payload := eventPayload(t)
	header := payments.SignPayload("whsec_other", time.Now(), payload)

	_, err := client.ConstructEvent(payload, header)

	assert.ErrorIs(t, err, payments.ErrInvalidSignature)
}

func TestConstructEvent_TamperedPayload(t *testing.T) {
	client := payments.NewClient("https://api.test", "sk", webhookSecret)
	payload := eventPayload(t)
	header := payments.SignPayload(webhookSecret, time.Now(), payload)

	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)-2] ^= 0x01

	_, err := client.ConstructEvent(tampered, header)

	assert.ErrorIs(t, err, payments.ErrInvalidSignature)
}

func TestConstructEvent_StaleTimestamp(t *testing.T) {
	client := payments.NewClient("https://api.test", "sk", webhookSecret)
	payload := eventPayload(t)
	header := payments.SignPayload(webhookSecret, time.Now().Add(-10*time.Minute), payload)

	_, err := client.ConstructEvent(payload, header)

	assert.ErrorIs(t, err, payments.ErrInvalidSignature)
}

func TestConstructEvent_MalformedHeader(t *testing.T) {
	client := payments.NewClient("https://api.test", "sk", webhookSecret)
	payload := eventPayload(t)

	for _, header := range []string{"", "garbage", "t=notanumber,v1=aa", "v1=deadbeef"} {
		_, err := client.ConstructEvent(payload, header)
		assert.ErrorIs(t, err, payments.ErrMalformedHeader, "header %q", header)
	}
}
