package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewJWTService(t *testing.T) {
	tests := []struct {
		name    string
		secret  []byte
		wantErr bool
	}{
		{"valid secret", []byte("a-very-long-secret-that-is-at-least-32-chars"), false},
		{"short secret", []byte("short"), false}, // Still valid, just not recommended
		{"empty secret", []byte{}, true},
		{"nil secret", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJWTService(tt.secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewJWTService() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	secret := []byte("test-secret-that-is-long-enough-for-testing")
	svc, err := NewJWTService(secret)
	if err != nil {
		t.Fatalf("NewJWTService() error = %v", err)
	}

	token, err := svc.GenerateToken("testuser")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateToken() returned empty token")
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Username != "testuser" {
		t.Errorf("claims.Username = %s, want testuser", claims.Username)
	}
}

func TestJWTService_ValidateToken_Invalid(t *testing.T) {
	secret := []byte("test-secret-that-is-long-enough-for-testing")
	svc, _ := NewJWTService(secret)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"invalid format", "not-a-jwt"},
		{"wrong signature", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJ1c2VybmFtZSI6InRlc3QifQ.wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			if err == nil {
				t.Error("ValidateToken() expected error for invalid token")
			}
		})
	}
}

func TestJWTService_ValidateToken_WrongSecret(t *testing.T) {
	svc1, _ := NewJWTService([]byte("secret-one-that-is-long-enough"))
	svc2, _ := NewJWTService([]byte("secret-two-that-is-different"))

	token, _ := svc1.GenerateToken("testuser")

	_, err := svc2.ValidateToken(token)
	if err == nil {
		t.Error("ValidateToken() should fail with wrong secret")
	}
}

func TestRateLimiter_FailureCap(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		MaxFailedAttempts: 3,
		Window:            time.Minute,
		CleanupInterval:   time.Hour,
	})
	defer rl.Stop()

	ip := "192.168.1.1"

	for i := 1; i <= 3; i++ {
		if limited := rl.IsLimited(ip); limited != (i > 3) {
			t.Errorf("IsLimited() = %v before failure %d", limited, i)
		}
		rl.RecordFailure(ip)
	}

	if !rl.IsLimited(ip) {
		t.Error("IsLimited() = false after reaching the failure cap")
	}

	rl.Reset(ip)
	if rl.IsLimited(ip) {
		t.Error("IsLimited() = true after Reset()")
	}
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		MaxFailedAttempts: 2,
		Window:            80 * time.Millisecond,
		CleanupInterval:   time.Hour,
	})
	defer rl.Stop()

	ip := "192.168.1.1"

	rl.RecordFailure(ip)
	time.Sleep(50 * time.Millisecond)
	rl.RecordFailure(ip)

	if !rl.IsLimited(ip) {
		t.Error("IsLimited() = false with two failures inside the window")
	}

	// The first failure slides out; only the second remains.
	time.Sleep(50 * time.Millisecond)
	if rl.IsLimited(ip) {
		t.Error("IsLimited() = true after the oldest failure aged out")
	}

	// And eventually the second ages out too.
	time.Sleep(50 * time.Millisecond)
	if rl.IsLimited(ip) {
		t.Error("IsLimited() = true after all failures aged out")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		xri        string
		remoteAddr string
		want       string
	}{
		{"X-Forwarded-For single", "192.168.1.1", "", "127.0.0.1:8080", "192.168.1.1"},
		{"X-Forwarded-For multiple", "192.168.1.1, 10.0.0.1, 172.16.0.1", "", "127.0.0.1:8080", "192.168.1.1"},
		{"X-Real-IP", "", "192.168.1.1", "127.0.0.1:8080", "192.168.1.1"},
		{"RemoteAddr with port", "", "", "192.168.1.1:12345", "192.168.1.1"},
		{"RemoteAddr without port", "", "", "192.168.1.1", "192.168.1.1"},
		{"X-Forwarded-For takes precedence", "10.0.0.1", "192.168.1.1", "127.0.0.1:8080", "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}

			got := GetClientIP(req)
			if got != tt.want {
				t.Errorf("GetClientIP() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestJWTService_Middleware(t *testing.T) {
	secret := []byte("test-secret-that-is-long-enough-for-testing")
	svc, _ := NewJWTService(secret)
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	handler := svc.Middleware(rl)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	token, _ := svc.GenerateToken("testuser")

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("handler returned %d, want %d", rr.Code, http.StatusOK)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("handler returned %d, want %d", rr.Code, http.StatusUnauthorized)
		}
	})

	t.Run("bad format", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("handler returned %d, want %d", rr.Code, http.StatusUnauthorized)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("handler returned %d, want %d", rr.Code, http.StatusUnauthorized)
		}
	})

	t.Run("rate limited after repeated failures", func(t *testing.T) {
		limited := NewRateLimiter(RateLimiterConfig{
			MaxFailedAttempts: 2,
			Window:            time.Minute,
			CleanupInterval:   time.Hour,
		})
		defer limited.Stop()

		limitedHandler := svc.Middleware(limited)(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		for i := 0; i < 2; i++ {
			req := httptest.NewRequest("GET", "/test", nil)
			req.RemoteAddr = "203.0.113.9:1234"
			req.Header.Set("Authorization", "Bearer invalid-token")
			rr := httptest.NewRecorder()
			limitedHandler.ServeHTTP(rr, req)
		}

		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		limitedHandler.ServeHTTP(rr, req)

		if rr.Code != http.StatusTooManyRequests {
			t.Errorf("handler returned %d, want %d", rr.Code, http.StatusTooManyRequests)
		}
	})
}
