package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"newsletter/internal/config"
	"newsletter/internal/util"
	"newsletter/pkg/metrics"
)

// Client delivers transactional email through the provider's HTTP API.
// Exactly one network attempt is made per Send call; retry policy, if any
// belongs to the caller.
type Client struct {
	baseURL    string
	sender     string
	apiKey     config.Secret
	apiSecret  config.Secret
	httpClient *http.Client
	logger     *zap.Logger
}

type emailInformation struct {
	Email string  `json:"Email"`
	Name  *string `json:"Name"`
}

type sendEmailRequest struct {
	From     emailInformation   `json:"From"`
	To       []emailInformation `json:"To"`
	Subject  string             `json:"Subject"`
	HTMLPart string             `json:"HTMLPart"`
	TextPart string             `json:"TextPart"`
}

type sendEmailRequestBody struct {
	Messages []sendEmailRequest `json:"Messages"`
}

func NewClient(cfg config.EmailConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		sender:    cfg.Sender,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		httpClient: &http.Client{
			Timeout: cfg.SendTimeout,
		},
		logger: logger,
	}
}

// Send posts one message with an HTML and a plain-text rendering to the
// provider. Credentials travel only in the basic-auth header, never in the
// body or the logs.
func (c *Client) Send(ctx context.Context, recipient, subject, htmlBody, textBody string) error {
	body := sendEmailRequestBody{
		Messages: []sendEmailRequest{
			{
				From:     emailInformation{Email: c.sender},
				To:       []emailInformation{{Email: recipient}},
				Subject:  subject,
				HTMLPart: htmlBody,
				TextPart: textBody,
			},
		},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.apiKey.Reveal(), c.apiSecret.Reveal())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if (errors.As(err, &urlErr) && urlErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
			metrics.RecordEmailSend("timeout", time.Since(start))
			return fmt.Errorf("%w after %s", ErrTimeout, time.Since(start).Round(time.Millisecond))
		}
		metrics.RecordEmailSend("transport_error", time.Since(start))
		return fmt.Errorf("%w: %s", ErrTransport, errorWithoutCredentials(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordEmailSend("rejected", time.Since(start))
		return &RejectedError{StatusCode: resp.StatusCode}
	}

	metrics.RecordEmailSend("sent", time.Since(start))
	util.WithTrace(ctx, c.logger).Info("Confirmation email accepted by provider",
		zap.String("recipient", recipient),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// errorWithoutCredentials strips the failing URL's userinfo, if any, before
// the error text reaches a log line. The original error is left untouched.
func errorWithoutCredentials(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if u, parseErr := url.Parse(urlErr.URL); parseErr == nil && u.User != nil {
			u.User = nil
			sanitized := url.Error{Op: urlErr.Op, URL: u.String(), Err: urlErr.Err}
			return sanitized.Error()
		}
		return urlErr.Error()
	}
	return err.Error()
}
