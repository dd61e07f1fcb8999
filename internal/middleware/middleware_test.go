package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "pennywise/internal/errors"
	"pennywise/internal/uuid"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	return result
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseBody(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response: %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

func setupAuthRouter() *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(testSecret))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("userID"), "email": c.GetString("email")})
	})
	return r
}

func signClaims(t *testing.T, claims *JWTClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	valid, err := GenerateAccessToken(userID, "ada@example.com", testSecret)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	expired := signClaims(t, &JWTClaims{
		UserID:    userID,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}, testSecret)
	refresh := signClaims(t, &JWTClaims{
		UserID:    userID,
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)
	badUser := signClaims(t, &JWTClaims{
		UserID:    "42",
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)
	otherSecret, _ := GenerateAccessToken(userID, "ada@example.com", "other-secret")

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid_token", header: "Bearer " + valid, wantStatus: http.StatusOK},
		{name: "missing_header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong_scheme", header: "Token " + valid, wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
		{name: "refresh_token", header: "Bearer " + refresh, wantStatus: http.StatusUnauthorized},
		{name: "non_uuid_user", header: "Bearer " + badUser, wantStatus: http.StatusUnauthorized},
		{name: "wrong_secret", header: "Bearer " + otherSecret, wantStatus: http.StatusUnauthorized},
	}

	r := setupAuthRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				if got := parseBody(t, rec)["user_id"]; got != userID {
					t.Errorf("expected user %s, got %v", userID, got)
				}
			} else if code := errorCode(t, rec); code != "UNAUTHORIZED" {
				t.Errorf("expected UNAUTHORIZED, got %s", code)
			}
		})
	}
}

func TestServiceKeyMiddleware(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name          string
		configuredKey string
		requestKey    string
		path          string
		wantStatus    int
		wantErrorCode string
	}{
		{
			name:          "valid_key",
			configuredKey: "reporting-key",
			requestKey:    "reporting-key",
			path:          "/internal/users/" + userID,
			wantStatus:    http.StatusOK,
		},
		{
			name:          "invalid_key",
			configuredKey: "reporting-key",
			requestKey:    "wrong",
			path:          "/internal/users/" + userID,
			wantStatus:    http.StatusUnauthorized,
			wantErrorCode: "INVALID_API_KEY",
		},
		{
			name:          "missing_key",
			configuredKey: "reporting-key",
			path:          "/internal/users/" + userID,
			wantStatus:    http.StatusUnauthorized,
			wantErrorCode: "INVALID_API_KEY",
		},
		{
			name:          "not_configured",
			requestKey:    "anything",
			path:          "/internal/users/" + userID,
			wantStatus:    http.StatusServiceUnavailable,
			wantErrorCode: "INTERNAL_API_NOT_CONFIGURED",
		},
		{
			name:          "invalid_user_id",
			configuredKey: "reporting-key",
			requestKey:    "reporting-key",
			path:          "/internal/users/not-a-uuid",
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: "INVALID_INPUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			internal := r.Group("/internal", ServiceKeyMiddleware(tt.configuredKey))
			internal.GET("/users/:user_id", UserFromPath(), func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("userID")})
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			if tt.requestKey != "" {
				req.Header.Set("X-API-Key", tt.requestKey)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantErrorCode != "" {
				if code := errorCode(t, rec); code != tt.wantErrorCode {
					t.Errorf("expected error code %s, got %s", tt.wantErrorCode, code)
				}
				return
			}
			if got := parseBody(t, rec)["user_id"]; got != userID {
				t.Errorf("expected user %s, got %v", userID, got)
			}
		})
	}
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/app", func(c *gin.Context) {
		_ = c.Error(apperrors.Field(apperrors.ErrValidation, "month", "month must be between 1 and 12"))
	})
	r.GET("/unexpected", func(c *gin.Context) {
		_ = c.Error(errors.New("pq: connection reset"))
	})

	t.Run("app_error_with_fields", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app", http.NoBody))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		errObj := parseBody(t, rec)["error"].(map[string]interface{})
		if errObj["code"] != "VALIDATION_ERROR" {
			t.Errorf("expected VALIDATION_ERROR, got %v", errObj["code"])
		}
		fields, _ := errObj["fields"].(map[string]interface{})
		if fields["month"] == nil {
			t.Errorf("expected month field error, got %v", errObj)
		}
	})

	t.Run("unexpected_error_is_hidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unexpected", http.NoBody))

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if code := errorCode(t, rec); code != "INTERNAL_ERROR" {
			t.Errorf("expected INTERNAL_ERROR, got %s", code)
		}
		if body := rec.Body.String(); body == "" || strings.Contains(body, "pq:") {
			t.Errorf("expected internal details to be hidden, got %s", body)
		}
	})
}

func TestRequestLogging(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogging())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(requestIDKey))
	})

	t.Run("generates_id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", http.NoBody))

		id := rec.Header().Get("X-Request-ID")
		if !uuid.IsValid(id) {
			t.Errorf("expected generated request id, got %q", id)
		}
		if rec.Body.String() != id {
			t.Errorf("expected request id in context, got %q", rec.Body.String())
		}
	})

	t.Run("reuses_caller_id", func(t *testing.T) {
		callerID := uuid.New()
		req := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
		req.Header.Set("X-Request-ID", callerID)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Header().Get("X-Request-ID") != callerID {
			t.Errorf("expected caller id %s, got %s", callerID, rec.Header().Get("X-Request-ID"))
		}
	})
}
