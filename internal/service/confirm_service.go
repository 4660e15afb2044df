package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"newsletter/internal/mq"
	"newsletter/internal/repository"
	"newsletter/internal/util"
	"newsletter/pkg/metrics"
)

// Outcome is the terminal state of one confirmation attempt.
type Outcome int

const (
	// OutcomeInvalid is the zero value. Confirm returns it only together
	// with a non-nil error, so a dropped error check can never read as a
	// successful confirmation.
	OutcomeInvalid Outcome = iota
	// OutcomeConfirmed: the token resolved and this call performed the
	// pending -> confirmed transition.
	OutcomeConfirmed
	// OutcomeAlreadyConfirmed: the token resolved but the subscriber was
	// confirmed before this call touched anything. Reported to callers
	// identically to OutcomeConfirmed.
	OutcomeAlreadyConfirmed
	// OutcomeUnknownToken: no live token mapping. Covers never-issued tokens
	// and tokens consumed by an earlier redemption.
	OutcomeUnknownToken
)

// EventPublisher is satisfied by *mq.Producer.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

type ConfirmationService struct {
	db          repository.DB
	tokens      *repository.TokenRepository
	subscribers *repository.SubscriberRepository
	producer    EventPublisher
	logger      *zap.Logger
}

func NewConfirmationService(
	db repository.DB,
	tokens *repository.TokenRepository,
	subscribers *repository.SubscriberRepository,
	producer EventPublisher,
	logger *zap.Logger,
) *ConfirmationService {
	return &ConfirmationService{
		db:          db,
		tokens:      tokens,
		subscribers: subscribers,
		producer:    producer,
		logger:      logger,
	}
}

// Confirm redeems a confirmation token. The status write and the token delete
// happen in one transaction, status first, so a crash can never leave a
// confirmed subscriber with a redeemable token or a pending subscriber with no
// token. Redemption races are settled by the status guard in MarkConfirmed:
// the losing transaction rolls back untouched.
func (s *ConfirmationService) Confirm(ctx context.Context, token string) (Outcome, error) {
	logger := util.WithTrace(ctx, s.logger)

	subscriberID, found, err := s.tokens.SubscriberIDForToken(ctx, token)
	if err != nil {
		metrics.RecordConfirmation("error")
		return OutcomeInvalid, fmt.Errorf("resolve token: %w", err)
	}
	if !found {
		metrics.RecordConfirmation("unknown_token")
		return OutcomeUnknownToken, nil
	}

	confirmed, err := s.subscribers.IsConfirmed(ctx, subscriberID)
	if err != nil {
		// Fail closed: treat the subscriber as unconfirmed and let the
		// transactional path settle it rather than report a false success.
		logger.Warn("Status pre-check failed, falling through to transaction",
			zap.String("subscriber_id", subscriberID.String()),
			zap.Error(err),
		)
		confirmed = false
	}
	if confirmed {
		metrics.RecordConfirmation("already_confirmed")
		return OutcomeAlreadyConfirmed, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		metrics.RecordConfirmation("error")
		return OutcomeInvalid, fmt.Errorf("begin confirmation transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	applied, err := s.subscribers.MarkConfirmed(ctx, tx, subscriberID)
	if err != nil {
		metrics.RecordConfirmation("error")
		return OutcomeInvalid, fmt.Errorf("mark subscriber confirmed: %w", err)
	}
	if !applied {
		// Another redemption committed between the pre-check and our lock.
		metrics.RecordConfirmation("already_confirmed")
		return OutcomeAlreadyConfirmed, nil
	}

	if err := s.tokens.DeleteForSubscriber(ctx, tx, subscriberID); err != nil {
		metrics.RecordConfirmation("error")
		return OutcomeInvalid, fmt.Errorf("delete subscription token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.RecordConfirmation("error")
		return OutcomeInvalid, fmt.Errorf("commit confirmation transaction: %w", err)
	}

	metrics.RecordConfirmation("confirmed")
	logger.Info("Subscriber confirmed",
		zap.String("subscriber_id", subscriberID.String()),
	)

	s.publishConfirmed(logger, subscriberID)

	return OutcomeConfirmed, nil
}

// publishConfirmed emits the post-commit event. The confirmation already
// committed, so a broker failure is logged and swallowed.
func (s *ConfirmationService) publishConfirmed(logger *zap.Logger, subscriberID uuid.UUID) {
	if s.producer == nil {
		return
	}
	payload := mq.SubscriberConfirmedPayload{
		SubscriberID: subscriberID,
		ConfirmedAt:  time.Now(),
	}
	if err := s.producer.Publish(mq.RoutingKeySubscriberConfirmed, payload); err != nil {
		logger.Warn("Failed to publish subscriber.confirmed event",
			zap.String("subscriber_id", subscriberID.String()),
			zap.Error(err),
		)
	}
}
