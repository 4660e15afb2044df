package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"newsletter/internal/model"
	"newsletter/pkg/metrics"
)

type SubscriberRepository struct {
	db DB
}

func NewSubscriberRepository(db DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

// IsConfirmed reads the subscriber's current status. An unknown subscriber
// reads as not confirmed.
func (r *SubscriberRepository) IsConfirmed(ctx context.Context, id uuid.UUID) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("select", "subscriptions", time.Since(start)) }()

	query := `
        SELECT status
        FROM subscriptions
        WHERE id = $1
    `
	var status string
	err := r.db.QueryRow(ctx, query, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read subscriber status: %w", err)
	}
	return status == model.StatusConfirmed, nil
}

// MarkConfirmed flips the subscriber to confirmed inside tx. The status guard
// makes the transition one-way: applied reports whether this call performed
// it, so a caller that lost a redemption race sees applied == false.
func (r *SubscriberRepository) MarkConfirmed(ctx context.Context, tx pgx.Tx, id uuid.UUID) (applied bool, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("update", "subscriptions", time.Since(start)) }()

	query := `
        UPDATE subscriptions
        SET status = $1
        WHERE id = $2 AND status = $3
    `
	tag, err := tx.Exec(ctx, query, model.StatusConfirmed, id, model.StatusPendingConfirmation)
	if err != nil {
		return false, fmt.Errorf("failed to mark subscriber confirmed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Insert stores a new pending subscriber inside the intake transaction.
func (r *SubscriberRepository) Insert(ctx context.Context, tx pgx.Tx, s *model.Subscriber) error {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("insert", "subscriptions", time.Since(start)) }()

	query := `
        INSERT INTO subscriptions (id, email, name, status, subscribed_at)
        VALUES ($1, $2, $3, $4, $5)
    `
	if _, err := tx.Exec(ctx, query, s.ID, s.Email, s.Name, s.Status, s.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert subscriber: %w", err)
	}
	return nil
}

// FindByEmail returns the subscriber for a normalized address, if present.
func (r *SubscriberRepository) FindByEmail(ctx context.Context, email string) (*model.Subscriber, bool, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("select", "subscriptions", time.Since(start)) }()

	query := `
        SELECT id, email, name, status, subscribed_at
        FROM subscriptions
        WHERE email = $1
    `
	var s model.Subscriber
	err := r.db.QueryRow(ctx, query, email).Scan(&s.ID, &s.Email, &s.Name, &s.Status, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to find subscriber by email: %w", err)
	}
	return &s, true, nil
}
