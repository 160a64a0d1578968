package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const jwtTestSecret = "unit-test-secret"

func signTestToken(t *testing.T, claims TokenClaims) string {
	t.Helper()
	token, err := SignJWT(jwtTestSecret, claims)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	return token
}

func TestVerifyJWTRoundTrip(t *testing.T) {
	token := signTestToken(t, TokenClaims{
		Sub:    "user-1",
		Plan:   "pro",
		Locale: "id",
		Exp:    time.Now().Add(time.Hour).Unix(),
	})
	claims, err := VerifyJWT(jwtTestSecret, token)
	if err != nil {
		t.Fatalf("VerifyJWT returned error: %v", err)
	}
	if claims.Sub != "user-1" || claims.Plan != "pro" || claims.Locale != "id" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestVerifyJWTRejects(t *testing.T) {
	valid := signTestToken(t, TokenClaims{Sub: "user-1"})
	expired := signTestToken(t, TokenClaims{Sub: "user-1", Exp: time.Now().Add(-time.Minute).Unix()})

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other-secret", valid},
		{"malformed", jwtTestSecret, "not.a-token"},
		{"tampered payload", jwtTestSecret, tamper(valid)},
		{"expired", jwtTestSecret, expired},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := VerifyJWT(tc.secret, tc.token); err == nil {
				t.Fatal("expected verification to fail")
			}
		})
	}
}

func tamper(token string) string {
	b := []byte(token)
	// Flip a byte inside the payload segment.
	for i, c := range b {
		if c == '.' {
			if b[i+1] == 'A' {
				b[i+1] = 'B'
			} else {
				b[i+1] = 'A'
			}
			break
		}
	}
	return string(b)
}

func TestAuthJWTMiddleware(t *testing.T) {
	var gotUser string
	handler := AuthJWT(jwtTestSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token := signTestToken(t, TokenClaims{Sub: "user-42", Exp: time.Now().Add(time.Hour).Unix()})

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid bearer", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotUser = ""
			rec := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.authHeader != "" {
				r.Header.Set("Authorization", tc.authHeader)
			}
			handler.ServeHTTP(rec, r)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusOK && gotUser != "user-42" {
				t.Fatalf("user id = %q, want user-42", gotUser)
			}
		})
	}
}
