package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hivedesk/onboarding/backend/config"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// decode unwraps the response envelope into data
func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("Failed to parse data: %v", err)
		}
	}
	return envelope{Success: env.Success, Error: env.Error}
}

func TestAuthHandlerLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hrpass"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret",
			TokenExpireHours: 24,
		},
		Users: []config.User{
			{Username: "testuser", Password: "testpass", Role: "employee", EmployeeID: "E-1"},
			{Username: "hr", Password: string(hash), Role: "hr", EmployeeID: "HR-1", Name: "Priya"},
		},
	}

	handler := NewAuthHandler(cfg)

	tests := []struct {
		name           string
		body           map[string]string
		expectedStatus int
		expectedRole   string
	}{
		{
			name:           "valid login",
			body:           map[string]string{"username": "testuser", "password": "testpass"},
			expectedStatus: http.StatusOK,
			expectedRole:   "employee",
		},
		{
			name:           "bcrypt password",
			body:           map[string]string{"username": "hr", "password": "hrpass"},
			expectedStatus: http.StatusOK,
			expectedRole:   "hr",
		},
		{
			name:           "wrong bcrypt password",
			body:           map[string]string{"username": "hr", "password": "nope"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid username",
			body:           map[string]string{"username": "wronguser", "password": "testpass"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid password",
			body:           map[string]string{"username": "testuser", "password": "wrongpass"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "missing fields",
			body:           map[string]string{"username": "testuser"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.POST("/login", handler.Login)

			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest("POST", "/login", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			var response LoginResponse
			env := decode(t, w, &response)
			if tt.expectedStatus != http.StatusOK {
				if env.Success || env.Error == "" {
					t.Errorf("Expected failure envelope, got %+v", env)
				}
				return
			}
			if response.Token == "" {
				t.Error("Expected token in response")
			}
			if response.Username != tt.body["username"] {
				t.Errorf("Expected username %q, got %q", tt.body["username"], response.Username)
			}
			if response.Role != tt.expectedRole {
				t.Errorf("Expected role %q, got %q", tt.expectedRole, response.Role)
			}
		})
	}
}

func TestAuthHandlerGetCurrentUser(t *testing.T) {
	cfg := &config.Config{
		Users: []config.User{{Username: "testuser", Name: "Test User"}},
	}

	handler := NewAuthHandler(cfg)

	router := gin.New()
	router.GET("/me", func(c *gin.Context) {
		c.Set("username", "testuser")
		c.Set("role", "employee")
		c.Set("employee_id", "E-1")
		handler.GetCurrentUser(c)
	})

	req := httptest.NewRequest("GET", "/me", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]string
	decode(t, w, &response)

	want := map[string]string{"username": "testuser", "role": "employee", "employee_id": "E-1", "name": "Test User"}
	for k, v := range want {
		if response[k] != v {
			t.Errorf("Expected %s %q, got %q", k, v, response[k])
		}
	}
}

func TestAuthHandlerLoginInvalidJSON(t *testing.T) {
	handler := NewAuthHandler(&config.Config{})

	router := gin.New()
	router.POST("/login", handler.Login)

	req := httptest.NewRequest("POST", "/login", bytes.NewBufferString("invalid json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestPasswordMatches(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)

	tests := []struct {
		stored, given string
		want          bool
	}{
		{"plain", "plain", true},
		{"plain", "Plain", false},
		{string(hash), "s3cret", true},
		{string(hash), string(hash), false},
	}
	for _, tt := range tests {
		if got := passwordMatches(tt.stored, tt.given); got != tt.want {
			t.Errorf("passwordMatches(%q, %q) = %v, want %v", tt.stored, tt.given, got, tt.want)
		}
	}
}
