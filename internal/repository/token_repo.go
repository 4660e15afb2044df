package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"newsletter/pkg/metrics"
)

type TokenRepository struct {
	db DB
}

func NewTokenRepository(db DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// SubscriberIDForToken resolves a confirmation token to its subscriber.
// An unknown or already consumed token is expected traffic, not an error:
// found reports whether a live mapping exists.
func (r *TokenRepository) SubscriberIDForToken(ctx context.Context, token string) (id uuid.UUID, found bool, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("select", "subscription_tokens", time.Since(start)) }()

	query := `
        SELECT subscriber_id
        FROM subscription_tokens
        WHERE subscription_token = $1
    `
	err = r.db.QueryRow(ctx, query, token).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to resolve subscription token: %w", err)
	}
	return id, true, nil
}

// TokenForSubscriber looks up the live token issued to a subscriber, for
// resending the confirmation email. found is false once redemption deleted it.
func (r *TokenRepository) TokenForSubscriber(ctx context.Context, subscriberID uuid.UUID) (token string, found bool, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("select", "subscription_tokens", time.Since(start)) }()

	query := `
        SELECT subscription_token
        FROM subscription_tokens
        WHERE subscriber_id = $1
    `
	err = r.db.QueryRow(ctx, query, subscriberID).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up subscription token: %w", err)
	}
	return token, true, nil
}

// Insert stores a freshly issued token inside the intake transaction.
func (r *TokenRepository) Insert(ctx context.Context, tx pgx.Tx, token string, subscriberID uuid.UUID) error {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("insert", "subscription_tokens", time.Since(start)) }()

	query := `
        INSERT INTO subscription_tokens (subscription_token, subscriber_id)
        VALUES ($1, $2)
    `
	if _, err := tx.Exec(ctx, query, token, subscriberID); err != nil {
		return fmt.Errorf("failed to store subscription token: %w", err)
	}
	return nil
}

// DeleteForSubscriber removes every token bound to the subscriber. It must run
// inside the same transaction that confirms the subscriber. Deleting a token
// that is already gone is not an error.
func (r *TokenRepository) DeleteForSubscriber(ctx context.Context, tx pgx.Tx, subscriberID uuid.UUID) error {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("delete", "subscription_tokens", time.Since(start)) }()

	query := `
        DELETE FROM subscription_tokens
        WHERE subscriber_id = $1
    `
	if _, err := tx.Exec(ctx, query, subscriberID); err != nil {
		return fmt.Errorf("failed to delete subscription token: %w", err)
	}
	return nil
}
