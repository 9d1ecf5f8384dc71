package supabase

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"imagemorph-backend/internal/models"
)

const projectColumns = `id, user_id, input_image_url, output_image_url, prompt,
		status, payment_status, payment_amount_cents,
		checkout_session_id, payment_intent_id, created_at, updated_at`

// DatabaseClient is the project store. Every query is scoped by user_id so a
// caller can never read or mutate another tenant's project, and every state
// transition is a single conditional UPDATE so concurrent handlers race on
// the row, not on local memory.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func scanProject(row *sql.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID, &p.UserID, &p.InputImageURL, &p.OutputImageURL, &p.Prompt,
		&p.Status, &p.PaymentStatus, &p.PaymentAmountCents,
		&p.CheckoutSessionID, &p.PaymentIntentID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DatabaseClient) CreateProject(userID uuid.UUID, inputImageURL, prompt string, amountCents int64) (*models.Project, error) {
	row := d.db.QueryRow(`
		INSERT INTO projects (user_id, input_image_url, prompt, status, payment_status, payment_amount_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+projectColumns+`
	`, userID, inputImageURL, prompt, models.StatusPending, models.PaymentStatusPending, amountCents)

	project, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

func (d *DatabaseClient) GetProject(projectID, userID uuid.UUID) (*models.Project, error) {
	row := d.db.QueryRow(`
		SELECT `+projectColumns+`
		FROM projects
		WHERE id = $1 AND user_id = $2
	`, projectID, userID)

	project, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func (d *DatabaseClient) ListProjects(userID uuid.UUID) ([]models.Project, error) {
	rows, err := d.db.Query(`
		SELECT `+projectColumns+`
		FROM projects
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		err := rows.Scan(
			&p.ID, &p.UserID, &p.InputImageURL, &p.OutputImageURL, &p.Prompt,
			&p.Status, &p.PaymentStatus, &p.PaymentAmountCents,
			&p.CheckoutSessionID, &p.PaymentIntentID, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}

	return projects, rows.Err()
}

// SetCheckoutSession records the hosted checkout session reference after the
// session is created at the payment provider.
func (d *DatabaseClient) SetCheckoutSession(projectID, userID uuid.UUID, sessionID string) error {
	_, err := d.db.Exec(`
		UPDATE projects
		SET checkout_session_id = $1
		WHERE id = $2 AND user_id = $3
	`, sessionID, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to set checkout session: %w", err)
	}
	return nil
}

// MarkPaid transitions payment_status to paid for the project identified by
// the webhook metadata. Zero rows affected means the project was deleted,
// the owner does not match, or the payment is already recorded; callers
// treat all three as an absorbed no-op so provider redeliveries stay
// idempotent and trigger no repeated side effects.
func (d *DatabaseClient) MarkPaid(projectID, userID uuid.UUID, sessionID, paymentIntentID string) (int64, error) {
	result, err := d.db.Exec(`
		UPDATE projects
		SET payment_status = $1, checkout_session_id = $2, payment_intent_id = $3
		WHERE id = $4 AND user_id = $5
		  AND payment_status <> $1
	`, models.PaymentStatusPaid, sessionID, paymentIntentID, projectID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark project paid: %w", err)
	}
	return result.RowsAffected()
}

// ClaimForProcessing is the pending->processing transition. The status and
// payment guards are evaluated inside the UPDATE itself, so of two
// concurrent generation requests exactly one claims the row; the other sees
// zero rows affected and reports the generation as already done.
func (d *DatabaseClient) ClaimForProcessing(projectID, userID uuid.UUID) (bool, error) {
	result, err := d.db.Exec(`
		UPDATE projects
		SET status = $1
		WHERE id = $2 AND user_id = $3
		  AND payment_status = $4
		  AND status <> $1
		  AND status <> $5
	`, models.StatusProcessing, projectID, userID, models.PaymentStatusPaid, models.StatusCompleted)
	if err != nil {
		return false, fmt.Errorf("failed to claim project: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// CompleteProject sets the result URL and the terminal status in one update.
// output_image_url is written at most once.
func (d *DatabaseClient) CompleteProject(projectID, userID uuid.UUID, outputImageURL string) error {
	result, err := d.db.Exec(`
		UPDATE projects
		SET status = $1, output_image_url = $2
		WHERE id = $3 AND user_id = $4
		  AND status = $5
		  AND output_image_url IS NULL
	`, models.StatusCompleted, outputImageURL, projectID, userID, models.StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to complete project: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("project %s not in processing state", projectID)
	}
	return nil
}

func (d *DatabaseClient) DeleteProject(projectID, userID uuid.UUID) error {
	_, err := d.db.Exec(`
		DELETE FROM projects
		WHERE id = $1 AND user_id = $2
	`, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}
