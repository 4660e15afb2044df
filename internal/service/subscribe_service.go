package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"newsletter/internal/model"
	"newsletter/internal/mq"
	"newsletter/internal/repository"
	"newsletter/internal/util"
	"newsletter/pkg/metrics"
)

var (
	// ErrInvalidSubscriber: the submitted name or email failed validation.
	ErrInvalidSubscriber = errors.New("invalid subscriber details")
	// ErrAlreadySubscribed: the address already has a subscription row.
	ErrAlreadySubscribed = errors.New("email is already subscribed")
	// ErrThrottled: a confirmation email went out for this address recently.
	ErrThrottled = errors.New("confirmation email recently sent")
	// ErrDeliveryFailed: the subscriber was stored but the confirmation email
	// did not go out. The token stays live for a later attempt.
	ErrDeliveryFailed = errors.New("failed to deliver confirmation email")
)

// Mailer is satisfied by *mailer.Client.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, htmlBody, textBody string) error
}

// SendGuard is satisfied by *util.ResendGuard.
type SendGuard interface {
	AcquireOnce(ctx context.Context, email string) bool
}

type SubscriptionService struct {
	db          repository.DB
	subscribers *repository.SubscriberRepository
	tokens      *repository.TokenRepository
	mailer      Mailer
	guard       SendGuard
	producer    EventPublisher
	baseURL     string
	logger      *zap.Logger
}

func NewSubscriptionService(
	db repository.DB,
	subscribers *repository.SubscriberRepository,
	tokens *repository.TokenRepository,
	mailer Mailer,
	guard SendGuard,
	producer EventPublisher,
	baseURL string,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		db:          db,
		subscribers: subscribers,
		tokens:      tokens,
		mailer:      mailer,
		guard:       guard,
		producer:    producer,
		baseURL:     baseURL,
		logger:      logger,
	}
}

// Subscribe stores a pending subscriber together with a fresh confirmation
// token in one transaction, then sends the confirmation email. The email goes
// out after the commit: an undeliverable email must not lose the subscriber,
// and the stored token lets a later resend recover.
func (s *SubscriptionService) Subscribe(ctx context.Context, name, email string) error {
	logger := util.WithTrace(ctx, s.logger)

	validName, err := model.ValidateName(name)
	if err != nil {
		metrics.RecordSubscription("failed")
		return fmt.Errorf("%w: %s", ErrInvalidSubscriber, err)
	}
	normalized, err := model.NormalizeEmail(email)
	if err != nil {
		metrics.RecordSubscription("failed")
		return fmt.Errorf("%w: %s", ErrInvalidSubscriber, err)
	}

	if existing, exists, err := s.subscribers.FindByEmail(ctx, normalized); err != nil {
		metrics.RecordSubscription("failed")
		return fmt.Errorf("check existing subscriber: %w", err)
	} else if exists {
		if existing.Status == model.StatusConfirmed {
			metrics.RecordSubscription("failed")
			return ErrAlreadySubscribed
		}
		// Still pending: the earlier email may never have arrived, so a
		// repeat request resends the stored token instead of conflicting.
		return s.resendConfirmation(ctx, logger, existing)
	}

	subscriber := &model.Subscriber{
		ID:        uuid.New(),
		Email:     normalized,
		Name:      validName,
		Status:    model.StatusPendingConfirmation,
		CreatedAt: time.Now().UTC(),
	}

	token, err := util.GenerateSubscriptionToken()
	if err != nil {
		metrics.RecordSubscription("failed")
		return fmt.Errorf("issue confirmation token: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		metrics.RecordSubscription("failed")
		return fmt.Errorf("begin intake transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.subscribers.Insert(ctx, tx, subscriber); err != nil {
		metrics.RecordSubscription("failed")
		return fmt.Errorf("store subscriber: %w", err)
	}
	if err := s.tokens.Insert(ctx, tx, token, subscriber.ID); err != nil {
		metrics.RecordSubscription("failed")
		return fmt.Errorf("store confirmation token: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		metrics.RecordSubscription("failed")
		return fmt.Errorf("commit intake transaction: %w", err)
	}

	// The throttle slot is claimed only once the row is committed; an
	// aborted transaction must leave the address free to retry immediately.
	if s.guard != nil && !s.guard.AcquireOnce(ctx, normalized) {
		metrics.RecordSubscription("throttled")
		return ErrThrottled
	}

	if err := s.sendConfirmationEmail(ctx, subscriber, token); err != nil {
		metrics.RecordSubscription("failed")
		logger.Error("Confirmation email delivery failed",
			zap.String("subscriber_id", subscriber.ID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s", ErrDeliveryFailed, err)
	}

	metrics.RecordSubscription("created")
	logger.Info("Pending subscriber stored, confirmation email sent",
		zap.String("subscriber_id", subscriber.ID.String()),
	)

	if s.producer != nil {
		payload := mq.SubscriberCreatedPayload{
			SubscriberID: subscriber.ID,
			Email:        subscriber.Email,
			CreatedAt:    subscriber.CreatedAt,
		}
		if err := s.producer.Publish(mq.RoutingKeySubscriberCreated, payload); err != nil {
			logger.Warn("Failed to publish subscriber.created event",
				zap.String("subscriber_id", subscriber.ID.String()),
				zap.Error(err),
			)
		}
	}

	return nil
}

// resendConfirmation sends the confirmation link for a subscriber whose row
// already exists but has not been confirmed. The token issued at intake is
// reused, so every email carries the same redeemable link.
func (s *SubscriptionService) resendConfirmation(ctx context.Context, logger *zap.Logger, subscriber *model.Subscriber) error {
	if s.guard != nil && !s.guard.AcquireOnce(ctx, subscriber.Email) {
		metrics.RecordSubscription("throttled")
		return ErrThrottled
	}

	token, found, err := s.tokens.TokenForSubscriber(ctx, subscriber.ID)
	if err != nil {
		metrics.RecordSubscription("failed")
		return fmt.Errorf("look up confirmation token: %w", err)
	}
	if !found {
		// Pending rows are stored together with their token, so a missing
		// one means the store is inconsistent, not that the caller is late.
		metrics.RecordSubscription("failed")
		return fmt.Errorf("no confirmation token on file for subscriber %s", subscriber.ID)
	}

	if err := s.sendConfirmationEmail(ctx, subscriber, token); err != nil {
		metrics.RecordSubscription("failed")
		logger.Error("Confirmation email delivery failed",
			zap.String("subscriber_id", subscriber.ID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s", ErrDeliveryFailed, err)
	}

	metrics.RecordSubscription("resent")
	logger.Info("Confirmation email resent",
		zap.String("subscriber_id", subscriber.ID.String()),
	)
	return nil
}

func (s *SubscriptionService) sendConfirmationEmail(ctx context.Context, subscriber *model.Subscriber, token string) error {
	link := fmt.Sprintf("%s/subscriptions/confirm?subscription_token=%s", s.baseURL, token)

	subject := "Welcome to our newsletter!"
	htmlBody := fmt.Sprintf(
		"Welcome to our newsletter!<br />Click <a href=\"%s\">here</a> to confirm your subscription.",
		link,
	)
	textBody := fmt.Sprintf(
		"Welcome to our newsletter!\nVisit %s to confirm your subscription.",
		link,
	)

	return s.mailer.Send(ctx, subscriber.Email, subject, htmlBody, textBody)
}
