package mq

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoutingKeySubscriberCreated   = "subscriber.created"
	RoutingKeySubscriberConfirmed = "subscriber.confirmed"
)

type SubscriberCreatedPayload struct {
	SubscriberID uuid.UUID `json:"subscriber_id"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
}

type SubscriberConfirmedPayload struct {
	SubscriberID uuid.UUID `json:"subscriber_id"`
	ConfirmedAt  time.Time `json:"confirmed_at"`
}
