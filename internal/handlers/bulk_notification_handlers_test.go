package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cyphera/cyphera-notify/internal/audit"
	"github.com/cyphera/cyphera-notify/internal/auth"
	"github.com/cyphera/cyphera-notify/internal/dispatch"
	"github.com/cyphera/cyphera-notify/internal/mocks"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

type bulkMocks struct {
	sender   *mocks.MockSender
	verifier *mocks.MockVerifier
	roles    *mocks.MockRoleChecker
	audit    *mocks.MockAuditStore
}

func newBulkTestRouter(t *testing.T) (*gin.Engine, bulkMocks) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := bulkMocks{
		sender:   mocks.NewMockSenderForTest(t),
		verifier: mocks.NewMockVerifierForTest(t),
		roles:    mocks.NewMockRoleCheckerForTest(t),
		audit:    mocks.NewMockAuditStoreForTest(t),
	}

	handler := NewBulkNotificationHandler(
		dispatch.NewValidator(50),
		auth.NewAuthenticator(m.verifier, m.roles, zap.NewNop()),
		dispatch.NewDispatcher(m.sender, dispatch.WithPacer(dispatch.NewFixedStagger(0, nil)), dispatch.WithLogger(zap.NewNop())),
		audit.NewRecorder(m.audit, zap.NewNop(), audit.WithRetryConfig(audit.RetryConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
			Timeout:         time.Second,
		})),
	)

	router := gin.New()
	router.POST("/api/v1/notifications/bulk", handler.SendBulkNotification)
	return router, m
}

func postBulk(router *gin.Engine, body string, authHeader string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/bulk", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	router.ServeHTTP(w, req)
	return w
}

func decodeBulk(t *testing.T, w *httptest.ResponseRecorder) BulkNotificationResponse {
	t.Helper()
	var resp BulkNotificationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func batchBody(recipients []string, subject, body string) string {
	b, _ := json.Marshal(map[string]interface{}{"recipients": recipients, "subject": subject, "body": body})
	return string(b)
}

func expectAdmin(m bulkMocks, isAdmin bool) {
	m.verifier.EXPECT().Verify(gomock.Any(), "admin-token").Return(auth.Identity{Subject: "u1", Email: "admin@cyphera.com"}, nil)
	m.roles.EXPECT().IsAdmin(gomock.Any(), "admin@cyphera.com").Return(isAdmin, nil)
}

func TestSendBulkNotification_PartialFailure(t *testing.T) {
	router, m := newBulkTestRouter(t)
	expectAdmin(m, true)

	m.sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg dispatch.Message) error {
		if msg.Recipient == "b@x.com" {
			return errors.New("mailbox unavailable")
		}
		return nil
	}).Times(3)

	var recorded audit.Record
	m.audit.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r audit.Record) error {
		recorded = r
		return nil
	}).Times(1)

	w := postBulk(router, batchBody([]string{"a@x.com", "b@x.com", "c@x.com"}, "Hello", "Body text"), "Bearer admin-token")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBulk(t, w)
	assert.True(t, resp.OperationSucceeded)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 3, resp.Summary.Total)
	assert.Equal(t, []dispatch.DispatchOutcome{
		{Recipient: "a@x.com", Status: dispatch.StatusSent},
		{Recipient: "c@x.com", Status: dispatch.StatusSent},
	}, resp.Summary.Successful)
	assert.Equal(t, []dispatch.DispatchOutcome{
		{Recipient: "b@x.com", Status: dispatch.StatusFailed, ErrorDetail: "mailbox unavailable"},
	}, resp.Summary.Failed)
	assert.Equal(t, &dispatch.BatchStats{TotalSent: 2, TotalFailed: 1, SuccessRate: "66.7%"}, resp.Stats)

	assert.Equal(t, "admin@cyphera.com", recorded.SentBy)
	assert.Equal(t, 3, recorded.RecipientCount)
	assert.Equal(t, 2, recorded.SuccessfulCount)
	assert.Equal(t, 1, recorded.FailedCount)
	assert.Equal(t, "admin-bulk", recorded.Category)
}

func TestSendBulkNotification_AllFailStillSucceeds(t *testing.T) {
	router, m := newBulkTestRouter(t)
	expectAdmin(m, true)
	m.sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("rejected")).Times(2)
	m.audit.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	w := postBulk(router, batchBody([]string{"a@x.com", "b@x.com"}, "s", "b"), "Bearer admin-token")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBulk(t, w)
	assert.True(t, resp.OperationSucceeded)
	assert.Equal(t, "0.0%", resp.Stats.SuccessRate)
	assert.Len(t, resp.Summary.Failed, 2)
	assert.NotNil(t, resp.Summary.Successful)
}

func TestSendBulkNotification_RequestErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		header     string
		setup      func(m bulkMocks)
		wantStatus int
		wantError  string
	}{
		{
			name:       "empty recipients",
			body:       batchBody([]string{}, "s", "b"),
			header:     "Bearer admin-token",
			wantStatus: http.StatusBadRequest,
			wantError:  "Recipients array is required and must not be empty",
		},
		{
			name:       "recipients not an array",
			body:       `{"recipients":"a@x.com","subject":"s","body":"b"}`,
			header:     "Bearer admin-token",
			wantStatus: http.StatusBadRequest,
			wantError:  "Recipients array is required and must not be empty",
		},
		{
			name:       "missing body",
			body:       batchBody([]string{"a@x.com"}, "s", ""),
			header:     "Bearer admin-token",
			wantStatus: http.StatusBadRequest,
			wantError:  "Subject and body are required",
		},
		{
			name: "51 recipients",
			body: func() string {
				rs := make([]string, 51)
				for i := range rs {
					rs[i] = fmt.Sprintf("u%d@x.com", i)
				}
				return batchBody(rs, "s", "b")
			}(),
			header:     "Bearer admin-token",
			wantStatus: http.StatusBadRequest,
			wantError:  "Maximum 50 recipients allowed per batch",
		},
		{
			name:       "malformed json",
			body:       `{"recipients": [`,
			header:     "Bearer admin-token",
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
		{
			name:       "recipients array with a number",
			body:       `{"recipients":["a@x.com",5],"subject":"s","body":"b"}`,
			header:     "Bearer admin-token",
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
		{
			name:       "missing authorization header",
			body:       batchBody([]string{"a@x.com"}, "s", "b"),
			wantStatus: http.StatusUnauthorized,
			wantError:  "Unauthorized: missing bearer token",
		},
		{
			name:   "invalid token",
			body:   batchBody([]string{"a@x.com"}, "s", "b"),
			header: "Bearer forged",
			setup: func(m bulkMocks) {
				m.verifier.EXPECT().Verify(gomock.Any(), "forged").Return(auth.Identity{}, auth.ErrInvalidToken)
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  "Unauthorized: invalid token",
		},
		{
			name:   "non-admin caller",
			body:   batchBody([]string{"a@x.com"}, "s", "b"),
			header: "Bearer admin-token",
			setup: func(m bulkMocks) {
				expectAdmin(m, false)
			},
			wantStatus: http.StatusForbidden,
			wantError:  "Forbidden: admin access required",
		},
		{
			name:   "role store failure",
			body:   batchBody([]string{"a@x.com"}, "s", "b"),
			header: "Bearer admin-token",
			setup: func(m bulkMocks) {
				m.verifier.EXPECT().Verify(gomock.Any(), "admin-token").Return(auth.Identity{Email: "admin@cyphera.com"}, nil)
				m.roles.EXPECT().IsAdmin(gomock.Any(), "admin@cyphera.com").Return(false, errors.New("connection refused"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, m := newBulkTestRouter(t)
			if tt.setup != nil {
				tt.setup(m)
			}
			// No Send or Append expectations: any dispatch or audit call fails the test.

			w := postBulk(router, tt.body, tt.header)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeBulk(t, w)
			assert.False(t, resp.OperationSucceeded)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Nil(t, resp.Summary)
		})
	}
}

func TestSendBulkNotification_AuditFailureStillSucceeds(t *testing.T) {
	router, m := newBulkTestRouter(t)
	expectAdmin(m, true)
	m.sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	m.audit.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("audit table locked")).Times(3)

	w := postBulk(router, batchBody([]string{"a@x.com", "b@x.com"}, "s", "b"), "Bearer admin-token")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBulk(t, w)
	assert.True(t, resp.OperationSucceeded)
	assert.Equal(t, "100.0%", resp.Stats.SuccessRate)
}

func TestSendBulkNotification_SenderUnavailable(t *testing.T) {
	router, m := newBulkTestRouter(t)
	expectAdmin(m, true)
	m.sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(dispatch.ErrSenderUnavailable).Times(2)

	w := postBulk(router, batchBody([]string{"a@x.com", "b@x.com"}, "s", "b"), "Bearer admin-token")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeBulk(t, w)
	assert.False(t, resp.OperationSucceeded)
	assert.Equal(t, "Internal server error", resp.Error)
}

func TestSendBulkNotification_ResubmissionResends(t *testing.T) {
	router, m := newBulkTestRouter(t)
	m.verifier.EXPECT().Verify(gomock.Any(), "admin-token").Return(auth.Identity{Email: "admin@cyphera.com"}, nil).Times(2)
	m.roles.EXPECT().IsAdmin(gomock.Any(), "admin@cyphera.com").Return(true, nil).Times(2)
	m.sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	m.audit.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	body := batchBody([]string{"a@x.com"}, "s", "b")
	assert.Equal(t, http.StatusOK, postBulk(router, body, "Bearer admin-token").Code)
	assert.Equal(t, http.StatusOK, postBulk(router, body, "Bearer admin-token").Code)
}
