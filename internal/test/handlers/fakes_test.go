package handlers_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"imagemorph-backend/internal/models"
	"imagemorph-backend/internal/payments"
)

// fakeProjectStore is an in-memory ProjectStore with the same conditional
// update semantics as the SQL store: guards are evaluated under one lock so
// concurrent claims race the way concurrent UPDATEs do.
type fakeProjectStore struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*models.Project
}

func newFakeProjectStore() *fakeProjectStore {
	return &fakeProjectStore{projects: make(map[uuid.UUID]*models.Project)}
}

func (s *fakeProjectStore) put(p *models.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.projects[p.ID] = &cp
}

func (s *fakeProjectStore) snapshot(id uuid.UUID) *models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (s *fakeProjectStore) CreateProject(userID uuid.UUID, inputImageURL, prompt string, amountCents int64) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &models.Project{
		ID:                 uuid.New(),
		UserID:             userID,
		InputImageURL:      inputImageURL,
		Prompt:             prompt,
		Status:             models.StatusPending,
		PaymentStatus:      models.PaymentStatusPending,
		PaymentAmountCents: amountCents,
	}
	s.projects[p.ID] = p
	cp := *p
	return &cp, nil
}

func (s *fakeProjectStore) GetProject(projectID, userID uuid.UUID) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok || p.UserID != userID {
		return nil, fmt.Errorf("failed to get project: no rows")
	}
	cp := *p
	return &cp, nil
}

func (s *fakeProjectStore) ListProjects(userID uuid.UUID) ([]models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Project
	for _, p := range s.projects {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakeProjectStore) SetCheckoutSession(projectID, userID uuid.UUID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if ok && p.UserID == userID {
		p.CheckoutSessionID.String = sessionID
		p.CheckoutSessionID.Valid = true
	}
	return nil
}

func (s *fakeProjectStore) MarkPaid(projectID, userID uuid.UUID, sessionID, paymentIntentID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok || p.UserID != userID || p.PaymentStatus == models.PaymentStatusPaid {
		return 0, nil
	}
	p.PaymentStatus = models.PaymentStatusPaid
	p.CheckoutSessionID.String = sessionID
	p.CheckoutSessionID.Valid = true
	p.PaymentIntentID.String = paymentIntentID
	p.PaymentIntentID.Valid = true
	return 1, nil
}

func (s *fakeProjectStore) ClaimForProcessing(projectID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok || p.UserID != userID {
		return false, nil
	}
	if p.PaymentStatus != models.PaymentStatusPaid {
		return false, nil
	}
	if p.Status == models.StatusProcessing || p.Status == models.StatusCompleted {
		return false, nil
	}
	p.Status = models.StatusProcessing
	return true, nil
}

func (s *fakeProjectStore) CompleteProject(projectID, userID uuid.UUID, outputImageURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok || p.UserID != userID || p.Status != models.StatusProcessing || p.OutputImageURL.Valid {
		return fmt.Errorf("project %s not in processing state", projectID)
	}
	p.Status = models.StatusCompleted
	p.OutputImageURL.String = outputImageURL
	p.OutputImageURL.Valid = true
	return nil
}

func (s *fakeProjectStore) DeleteProject(projectID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if ok && p.UserID == userID {
		delete(s.projects, projectID)
	}
	return nil
}

// fakeObjectStore keeps blobs in memory and records deletions.
type fakeObjectStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte // "bucket/name" -> data
	deleted []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{blobs: make(map[string][]byte)}
}

func (s *fakeObjectStore) Upload(bucket, name string, data []byte, contentType string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[bucket+"/"+name] = data
	return name, s.PublicURL(bucket, name), nil
}

func (s *fakeObjectStore) PublicURL(bucket, path string) string {
	return "https://storage.test/object/public/" + bucket + "/" + path
}

func (s *fakeObjectStore) Delete(bucket, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, bucket+"/"+name)
	s.deleted = append(s.deleted, bucket+"/"+name)
	return nil
}

// fakeCheckoutProvider records the session params it was asked to create.
type fakeCheckoutProvider struct {
	lastParams payments.CheckoutSessionParams
	createErr  error
}

func (f *fakeCheckoutProvider) CreateCheckoutSession(params payments.CheckoutSessionParams) (*payments.CheckoutSession, error) {
	f.lastParams = params
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &payments.CheckoutSession{
		ID:  "cs_test_123",
		URL: "https://checkout.test/pay/cs_test_123",
	}, nil
}

func (f *fakeCheckoutProvider) ConstructEvent(payload []byte, sigHeader string) (*payments.Event, error) {
	return nil, fmt.Errorf("not implemented")
}

// fakeGenerator answers with a fixed result URL and bytes, or fails.
type fakeGenerator struct {
	resultURL   string
	resultData  []byte
	generateErr error
	downloadErr error
	calls       int
	mu          sync.Mutex
}

func (f *fakeGenerator) Generate(ctx context.Context, imageURL, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return f.resultURL, nil
}

func (f *fakeGenerator) Download(ctx context.Context, resultURL string) ([]byte, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.resultData, nil
}
