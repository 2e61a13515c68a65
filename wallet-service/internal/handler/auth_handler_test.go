package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ledgerwire/core/errs"
	"github.com/ledgerwire/shared/cqrs"
)

// ---- mocks ----

type mockAuthCommander struct {
	requestErr error
	verifyFn   func(ctx context.Context, cmd cqrs.VerifyOTPCommand) (string, error)
}

func (m *mockAuthCommander) RequestOTP(ctx context.Context, cmd cqrs.RequestOTPCommand) error {
	return m.requestErr
}

func (m *mockAuthCommander) VerifyOTP(ctx context.Context, cmd cqrs.VerifyOTPCommand) (string, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, cmd)
	}
	return "", fmt.Errorf("not configured")
}

// ---- helpers ----

func newAuthTestRouter(commands AuthCommander) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAuthHandler(commands)
	r.POST("/api/auth/request-otp", h.RequestOTP)
	r.POST("/api/auth/verify-otp", h.VerifyOTP)
	return r
}

func doRequest(router *gin.Engine, method, url string, body interface{}) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, url, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ---- tests ----

func TestRequestOTP(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		requestErr     error
		expectedStatus int
	}{
		{
			name:           "success",
			body:           map[string]string{"phoneNumber": "+15551234567"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bad request - missing phone number",
			body:           map[string]string{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - not E.164",
			body:           map[string]string{"phoneNumber": "not-a-phone"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "internal error - sender failure",
			body:           map[string]string{"phoneNumber": "+15551234567"},
			requestErr:     errs.Internal("sms provider down", fmt.Errorf("sms provider down")),
			expectedStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newAuthTestRouter(&mockAuthCommander{requestErr: tt.requestErr})
			w := doRequest(router, http.MethodPost, "/api/auth/request-otp", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestVerifyOTPNewUserProvisionsWalletAndIssuesToken(t *testing.T) {
	commander := &mockAuthCommander{
		verifyFn: func(ctx context.Context, cmd cqrs.VerifyOTPCommand) (string, error) {
			return "session-token", nil
		},
	}

	router := newAuthTestRouter(commander)
	w := doRequest(router, http.MethodPost, "/api/auth/verify-otp", map[string]string{
		"phoneNumber": "+15551234567",
		"code":        "123456",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body: %s", w.Code, w.Body.String())
	}
	var resp AuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Token == "" {
		t.Error("expected a non-empty token")
	}
}

func TestVerifyOTPRejectsInvalidCode(t *testing.T) {
	commander := &mockAuthCommander{
		verifyFn: func(ctx context.Context, cmd cqrs.VerifyOTPCommand) (string, error) {
			return "", errs.InvalidOtp("code is invalid or expired")
		},
	}
	router := newAuthTestRouter(commander)

	w := doRequest(router, http.MethodPost, "/api/auth/verify-otp", map[string]string{
		"phoneNumber": "+15551234567",
		"code":        "000000",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d; body: %s", w.Code, w.Body.String())
	}
}

func TestVerifyOTPRejectsFrozenAccount(t *testing.T) {
	commander := &mockAuthCommander{
		verifyFn: func(ctx context.Context, cmd cqrs.VerifyOTPCommand) (string, error) {
			return "", errs.AccountFrozen("account is frozen")
		},
	}
	router := newAuthTestRouter(commander)

	w := doRequest(router, http.MethodPost, "/api/auth/verify-otp", map[string]string{
		"phoneNumber": "+15551234567",
		"code":        "123456",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d; body: %s", w.Code, w.Body.String())
	}
}

func TestVerifyOTPRejectsBadRequestBody(t *testing.T) {
	router := newAuthTestRouter(&mockAuthCommander{})
	w := doRequest(router, http.MethodPost, "/api/auth/verify-otp", map[string]string{"phoneNumber": "+15551234567"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a missing code, got %d; body: %s", w.Code, w.Body.String())
	}
}
