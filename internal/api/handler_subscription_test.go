package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"newsletter/internal/api"
	"newsletter/internal/model"
	"newsletter/internal/repository"
	"newsletter/internal/service"
	"newsletter/pkg/trace"
)

var testSubscriberID = uuid.MustParse("a1b2c3d4-e5f6-4a5b-8c9d-0e1f2a3b4c5d")

type noopMailer struct{}

func (noopMailer) Send(context.Context, string, string, string, string) error { return nil }

type allowAllGuard struct{}

func (allowAllGuard) AcquireOnce(context.Context, string) bool { return true }

func newTestRouter(t *testing.T, mock pgxmock.PgxPoolIface) *api.Router {
	t.Helper()
	gin.SetMode(gin.TestMode)

	subscribers := repository.NewSubscriberRepository(mock)
	tokens := repository.NewTokenRepository(mock)
	logger := zap.NewNop()

	subscriptionService := service.NewSubscriptionService(
		mock, subscribers, tokens, noopMailer{}, allowAllGuard{}, nil,
		"https://newsletter.example.com", logger,
	)
	confirmationService := service.NewConfirmationService(mock, tokens, subscribers, nil, logger)

	handler := api.NewSubscriptionHandler(subscriptionService, confirmationService, logger)
	return api.NewRouter(handler)
}

func TestConfirmEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("valid token confirms and returns 200", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT subscriber_id").
			WithArgs("abc123").
			WillReturnRows(pgxmock.NewRows([]string{"subscriber_id"}).AddRow(testSubscriberID))
		mock.ExpectQuery("SELECT status").
			WithArgs(testSubscriberID).
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(model.StatusPendingConfirmation))
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE subscriptions").
			WithArgs(model.StatusConfirmed, testSubscriberID, model.StatusPendingConfirmation).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("DELETE FROM subscription_tokens").
			WithArgs(testSubscriberID).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCommit()

		router := newTestRouter(t, mock)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/subscriptions/confirm?subscription_token=abc123", nil)
		router.Engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown token returns 401, not 404 or 500", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT subscriber_id").
			WithArgs("zzz").
			WillReturnRows(pgxmock.NewRows([]string{"subscriber_id"}))

		router := newTestRouter(t, mock)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/subscriptions/confirm?subscription_token=zzz", nil)
		router.Engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing token parameter returns 400", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		router := newTestRouter(t, mock)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/subscriptions/confirm", nil)
		router.Engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("store outage returns 500 without internal detail", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT subscriber_id").
			WithArgs("abc123").
			WillReturnError(errors.New("dial tcp 10.0.0.5:5432: connection refused"))

		router := newTestRouter(t, mock)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/subscriptions/confirm?subscription_token=abc123", nil)
		router.Engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "10.0.0.5", "connection details must not leak")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSubscribeEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("valid submission returns 200", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT id, email, name, status, subscribed_at").
			WithArgs("jane@example.com").
			WillReturnRows(pgxmock.NewRows([]string{"id", "email", "name", "status", "subscribed_at"}))
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO subscriptions").
			WithArgs(pgxmock.AnyArg(), "jane@example.com", "Jane", model.StatusPendingConfirmation, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec("INSERT INTO subscription_tokens").
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		router := newTestRouter(t, mock)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/subscriptions",
			strings.NewReader(`{"name":"Jane","email":"jane@example.com"}`))
		req.Header.Set("Content-Type", "application/json")
		router.Engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing fields return 400", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		router := newTestRouter(t, mock)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader(`{"name":"Jane"}`))
		req.Header.Set("Content-Type", "application/json")
		router.Engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid email returns 400", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		router := newTestRouter(t, mock)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/subscriptions",
			strings.NewReader(`{"name":"Jane","email":"not-an-email"}`))
		req.Header.Set("Content-Type", "application/json")
		router.Engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	router := newTestRouter(t, mock)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTraceHeaderPropagation(t *testing.T) {
	t.Parallel()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	router := newTestRouter(t, mock)

	t.Run("caller trace id is echoed", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(trace.HeaderName(), "trace-abc")
		router.Engine.ServeHTTP(w, req)

		assert.Equal(t, "trace-abc", w.Header().Get(trace.HeaderName()))
	})

	t.Run("a trace id is minted when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		router.Engine.ServeHTTP(w, req)

		assert.NotEmpty(t, w.Header().Get(trace.HeaderName()))
	})
}
