package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/agency-backoffice/internal/domain"
	"github.com/agency-backoffice/internal/email"
	jwtinfra "github.com/agency-backoffice/internal/infrastructure/jwt"
	"github.com/agency-backoffice/internal/ratelimit"
	"github.com/agency-backoffice/internal/transport/http/middleware"
)

// --- mocks ---

type mockRequestSvc struct{ mock.Mock }

func (m *mockRequestSvc) SubmitLead(ctx context.Context, in domain.LeadInput) (*domain.ServiceRequest, error) {
	args := m.Called(ctx, in)
	if r, _ := args.Get(0).(*domain.ServiceRequest); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRequestSvc) Get(ctx context.Context, requestID string) (*domain.ServiceRequest, error) {
	args := m.Called(ctx, requestID)
	if r, _ := args.Get(0).(*domain.ServiceRequest); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRequestSvc) List(ctx context.Context, status domain.RequestStatus) ([]domain.ServiceRequest, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]domain.ServiceRequest), args.Error(1)
}

func (m *mockRequestSvc) Approve(ctx context.Context, principalID, requestID string, in domain.ReviewInput) (*domain.ServiceRequest, error) {
	args := m.Called(ctx, principalID, requestID, in)
	if r, _ := args.Get(0).(*domain.ServiceRequest); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRequestSvc) Reject(ctx context.Context, principalID, requestID string, in domain.ReviewInput) (*domain.ServiceRequest, error) {
	args := m.Called(ctx, principalID, requestID, in)
	if r, _ := args.Get(0).(*domain.ServiceRequest); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRequestSvc) Analyze(ctx context.Context, principalID, requestID string) (*domain.ServiceRequest, error) {
	args := m.Called(ctx, principalID, requestID)
	if r, _ := args.Get(0).(*domain.ServiceRequest); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockNotifSvc struct{ mock.Mock }

func (m *mockNotifSvc) ListUnread(ctx context.Context) ([]domain.Notification, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Notification), args.Error(1)
}

func (m *mockNotifSvc) ListRecent(ctx context.Context, limit int) ([]domain.Notification, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.Notification), args.Error(1)
}

func (m *mockNotifSvc) MarkAsRead(ctx context.Context, notificationID string) (*domain.Notification, error) {
	args := m.Called(ctx, notificationID)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotifSvc) MarkAllAsRead(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockNotifSvc) Delete(ctx context.Context, notificationID string) error {
	return m.Called(ctx, notificationID).Error(0)
}

func (m *mockNotifSvc) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	args := m.Called(ctx, retention)
	return args.Int(0), args.Error(1)
}

func (m *mockNotifSvc) SendTest(ctx context.Context, principalID string) error {
	return m.Called(ctx, principalID).Error(0)
}

type mockLimiter struct{ mock.Mock }

func (m *mockLimiter) Status(ctx context.Context, principalID string) (ratelimit.Status, error) {
	args := m.Called(ctx, principalID)
	return args.Get(0).(ratelimit.Status), args.Error(1)
}

type mockBatch struct{ mock.Mock }

func (m *mockBatch) DeliverBatch(ctx context.Context, events []domain.NotificationEvent) email.BatchResult {
	return m.Called(ctx, events).Get(0).(email.BatchResult)
}

// --- helpers ---

// serve routes one request through a chi mux so URL params resolve, as admin-1.
func serve(method, pattern, target string, body []byte, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithClaims(req.Context(), &jwtinfra.Claims{PrincipalID: "admin-1", Role: domain.RoleAdmin})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.MethodFunc(method, pattern, h)

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v))
}

// --- httpError ---

func TestHTTPError_Mapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("x: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", domain.ErrConflict), http.StatusConflict},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: field", domain.ErrBadRequest), http.StatusBadRequest},
		{fmt.Errorf("allow: %w: dial", domain.ErrRateLimiterUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		httpError(rr, tc.err)
		assert.Equal(t, tc.code, rr.Code, tc.err.Error())
	}
}

func TestHTTPError_RateLimitedSetsRetryAfter(t *testing.T) {
	rr := httptest.NewRecorder()
	httpError(rr, fmt.Errorf("analyze: %w", &domain.RateLimitExceededError{RetryAfter: 1500 * time.Millisecond}))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("Retry-After"))
}

func TestHTTPError_InternalHidesDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	httpError(rr, errors.New("dynamodb: table secret-prod missing"))
	var env MessageEnvelope
	decodeBody(t, rr, &env)
	assert.Equal(t, "internal server error", env.Error)
}

// --- requests ---

func TestSubmitLead_Created(t *testing.T) {
	svc := &mockRequestSvc{}
	in := domain.LeadInput{ClientName: "Acme", ClientEmail: "a@b.com", ServiceName: "Web Dev"}
	svc.On("SubmitLead", mock.Anything, in).Return(&domain.ServiceRequest{RequestID: "r1", Status: domain.RequestPending}, nil)

	body, _ := json.Marshal(in)
	rr := serve(http.MethodPost, "/leads", "/leads", body, NewRequestHandler(svc).SubmitLead)

	assert.Equal(t, http.StatusCreated, rr.Code)
	var got domain.ServiceRequest
	decodeBody(t, rr, &got)
	assert.Equal(t, "r1", got.RequestID)
	svc.AssertExpectations(t)
}

func TestSubmitLead_BadBody(t *testing.T) {
	rr := serve(http.MethodPost, "/leads", "/leads", []byte("{"), NewRequestHandler(&mockRequestSvc{}).SubmitLead)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListRequests_PassesStatus(t *testing.T) {
	svc := &mockRequestSvc{}
	svc.On("List", mock.Anything, domain.RequestPending).Return([]domain.ServiceRequest{{RequestID: "r1"}}, nil)

	rr := serve(http.MethodGet, "/requests", "/requests?status=PENDING", nil, NewRequestHandler(svc).List)

	assert.Equal(t, http.StatusOK, rr.Code)
	var got ListEnvelope[domain.ServiceRequest]
	decodeBody(t, rr, &got)
	assert.Equal(t, 1, got.Count)
}

func TestApprove_UsesPrincipalAndNote(t *testing.T) {
	svc := &mockRequestSvc{}
	svc.On("Approve", mock.Anything, "admin-1", "r1", domain.ReviewInput{Note: "ok"}).
		Return(&domain.ServiceRequest{RequestID: "r1", Status: domain.RequestVerified}, nil)

	rr := serve(http.MethodPost, "/requests/{id}/approve", "/requests/r1/approve", []byte(`{"note":"ok"}`), NewRequestHandler(svc).Approve)
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestReject_EmptyBodyAndConflict(t *testing.T) {
	svc := &mockRequestSvc{}
	svc.On("Reject", mock.Anything, "admin-1", "r1", domain.ReviewInput{}).
		Return(nil, fmt.Errorf("request r1 is already VERIFIED: %w", domain.ErrConflict))

	rr := serve(http.MethodPost, "/requests/{id}/reject", "/requests/r1/reject", nil, NewRequestHandler(svc).Reject)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestAnalyze_RateLimited(t *testing.T) {
	svc := &mockRequestSvc{}
	svc.On("Analyze", mock.Anything, "admin-1", "r1").Return(nil, &domain.RateLimitExceededError{RetryAfter: 42 * time.Second})

	rr := serve(http.MethodPost, "/requests/{id}/analyze", "/requests/r1/analyze", nil, NewRequestHandler(svc).Analyze)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "42", rr.Header().Get("Retry-After"))
}

func TestAnalyze_NoClaims(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/requests/r1/analyze", nil)
	rr := httptest.NewRecorder()
	NewRequestHandler(&mockRequestSvc{}).Analyze(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

// --- notifications ---

func TestListUnread_EmptyIsArray(t *testing.T) {
	svc := &mockNotifSvc{}
	svc.On("ListUnread", mock.Anything).Return([]domain.Notification(nil), nil)

	rr := serve(http.MethodGet, "/notifications", "/notifications", nil, NewNotificationHandler(svc).ListUnread)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":[],"count":0}`, rr.Body.String())
}

func TestListRecent_Limit(t *testing.T) {
	svc := &mockNotifSvc{}
	svc.On("ListRecent", mock.Anything, 20).Return([]domain.Notification{{NotificationID: "n1"}}, nil)

	rr := serve(http.MethodGet, "/notifications/recent", "/notifications/recent?limit=20", nil, NewNotificationHandler(svc).ListRecent)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(http.MethodGet, "/notifications/recent", "/notifications/recent?limit=abc", nil, NewNotificationHandler(svc).ListRecent)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNumberOfCalls(t, "ListRecent", 1)
}

func TestMarkAsRead_NotFound(t *testing.T) {
	svc := &mockNotifSvc{}
	svc.On("MarkAsRead", mock.Anything, "missing").Return(nil, domain.ErrNotFound)

	rr := serve(http.MethodPut, "/notifications/{id}", "/notifications/missing", nil, NewNotificationHandler(svc).MarkAsRead)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMarkAllAsRead(t *testing.T) {
	svc := &mockNotifSvc{}
	svc.On("MarkAllAsRead", mock.Anything).Return(3, nil)

	rr := serve(http.MethodPut, "/notifications/read-all", "/notifications/read-all", nil, NewNotificationHandler(svc).MarkAllAsRead)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"updated":3}`, rr.Body.String())
}

func TestDeleteNotification(t *testing.T) {
	svc := &mockNotifSvc{}
	svc.On("Delete", mock.Anything, "n1").Return(nil)

	rr := serve(http.MethodDelete, "/notifications/{id}", "/notifications/n1", nil, NewNotificationHandler(svc).Delete)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestSendTest_Accepted(t *testing.T) {
	svc := &mockNotifSvc{}
	svc.On("SendTest", mock.Anything, "admin-1").Return(nil)

	rr := serve(http.MethodPost, "/notifications/test", "/notifications/test", nil, NewNotificationHandler(svc).SendTest)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	svc.AssertExpectations(t)
}

// --- rate limit status ---

func TestRateLimitStatus(t *testing.T) {
	l := &mockLimiter{}
	l.On("Status", mock.Anything, "admin-1").Return(ratelimit.Status{Limit: 15, Remaining: 12, ResetIn: 90 * time.Second}, nil)

	rr := serve(http.MethodGet, "/ratelimit", "/ratelimit", nil, NewRateLimitHandler(l).Status)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"limit":15,"remaining":12,"reset_seconds":90}`, rr.Body.String())
}

func TestRateLimitStatus_StoreDown(t *testing.T) {
	l := &mockLimiter{}
	l.On("Status", mock.Anything, "admin-1").Return(ratelimit.Status{}, fmt.Errorf("status: %w", domain.ErrRateLimiterUnavailable))

	rr := serve(http.MethodGet, "/ratelimit", "/ratelimit", nil, NewRateLimitHandler(l).Status)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

// --- emails ---

func TestSendBatch_Summary(t *testing.T) {
	m := &mockBatch{}
	m.On("DeliverBatch", mock.Anything, mock.MatchedBy(func(ev []domain.NotificationEvent) bool {
		return len(ev) == 2 && ev[0].RecipientEmail == "a@b.com" && ev[1].Type == domain.EventTest && ev[1].SendEmail
	})).Return(email.BatchResult{Sent: 1, Failed: 1, Errors: []email.BatchError{{Index: 1, Recipient: "c@d.com", Error: "boom"}}})

	body := []byte(`{"emails":[
		{"to":"a@b.com","type":"REQUEST_VERIFIED","client_name":"Acme","service_name":"Web Dev"},
		{"to":"c@d.com","type":"TEST","title":"Hello"}
	]}`)
	rr := serve(http.MethodPost, "/emails/batch", "/emails/batch", body, NewEmailHandler(m, time.Second).SendBatch)

	assert.Equal(t, http.StatusOK, rr.Code)
	var res email.BatchResult
	decodeBody(t, rr, &res)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	m.AssertExpectations(t)
}

func TestSendBatch_Validation(t *testing.T) {
	m := &mockBatch{}
	for _, body := range []string{
		`{"emails":[]}`,
		`{"emails":[{"to":"not-an-email","type":"TEST"}]}`,
		`{"emails":[{"to":"a@b.com","type":"NOPE"}]}`,
	} {
		rr := serve(http.MethodPost, "/emails/batch", "/emails/batch", []byte(body), NewEmailHandler(m, time.Second).SendBatch)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
	m.AssertNotCalled(t, "DeliverBatch", mock.Anything, mock.Anything)
}

func TestSendBatch_BoundedByTimeout(t *testing.T) {
	m := &mockBatch{}
	m.On("DeliverBatch", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= 50*time.Millisecond
	}), mock.Anything).Return(email.BatchResult{Sent: 1})

	body := []byte(`{"emails":[{"to":"a@b.com","type":"TEST"}]}`)
	rr := serve(http.MethodPost, "/emails/batch", "/emails/batch", body, NewEmailHandler(m, 50*time.Millisecond).SendBatch)

	assert.Equal(t, http.StatusOK, rr.Code)
	m.AssertExpectations(t)
}

func TestNewEmailHandler_DefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultBatchTimeout, NewEmailHandler(&mockBatch{}, 0).timeout)
}

// --- health ---

func TestHealthPing(t *testing.T) {
	h := NewHealthHandler()
	rr := serve(http.MethodGet, "/health-check/{action}", "/health-check/ping", nil, h.Ping)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(http.MethodGet, "/health-check/{action}", "/health-check/other", nil, h.Ping)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
