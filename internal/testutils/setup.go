package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/Kyz7/authserver/internal/cache"
	"github.com/Kyz7/authserver/internal/config"
	"github.com/Kyz7/authserver/internal/database"
	"github.com/Kyz7/authserver/internal/mail"
	"github.com/Kyz7/authserver/internal/models"
	"github.com/Kyz7/authserver/internal/reset"
	"github.com/Kyz7/authserver/internal/server"
	"github.com/Kyz7/authserver/internal/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testAccessSecret  = "access_secret_for_handler_tests_0123456789"
	testRefreshSecret = "refresh_secret_for_handler_tests_0123456789"
)

// Env is a fully wired app backed by in-memory sqlite, an in-memory cache and
// a recording mailer.
type Env struct {
	App    *fiber.App
	DB     *gorm.DB
	Config *config.Config
	Cache  *cache.MemoryStore
	Resets *reset.Store
	Mail   *MailRecorder
}

func TestConfig() *config.Config {
	return &config.Config{
		DBDriver:        "sqlite",
		DBPath:          ":memory:",
		AccessSecret:    testAccessSecret,
		RefreshSecret:   testRefreshSecret,
		AccessTokenTTL:  config.DefaultAccessTokenTTL,
		RefreshTokenTTL: config.DefaultRefreshTokenTTL,
		ResetTokenTTL:   config.DefaultResetTokenTTL,
		BcryptCost:      4,
		Domain:          "app.example.test",
		CORSOrigins:     "http://localhost:3000",
		MailDriver:      "log",
	}
}

func TestDB(t *testing.T) *gorm.DB {
	db, err := database.Connect(TestConfig())
	require.NoError(t, err, "Failed to create test database")
	require.NoError(t, database.Migrate(db), "Failed to migrate test database")

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func SetupTestApp(t *testing.T) *Env {
	cfg := TestConfig()
	db := TestDB(t)
	store := cache.NewMemoryStore(0)
	resets := reset.NewStore(db)
	recorder := &MailRecorder{}

	deps, err := server.Build(cfg, db, store, resets, recorder)
	require.NoError(t, err, "Failed to wire test app")

	return &Env{
		App:    server.New(deps),
		DB:     db,
		Config: cfg,
		Cache:  store,
		Resets: resets,
		Mail:   recorder,
	}
}

func CreateTestUser(t *testing.T, db *gorm.DB, email, password string) *models.User {
	hashedPassword, err := utils.NewBcryptHasher(4).Hash(password)
	require.NoError(t, err)

	user := &models.User{
		Email:    email,
		Password: hashedPassword,
	}
	err = db.Create(user).Error
	require.NoError(t, err, "Failed to create test user")
	return user
}

// MailRecorder is a mail.Sender that keeps every message. Err, when set, is
// returned from Send after recording.
type MailRecorder struct {
	mu       sync.Mutex
	messages []mail.Message
	Err      error
}

func (r *MailRecorder) Send(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return r.Err
}

func (r *MailRecorder) Messages() []mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mail.Message(nil), r.messages...)
}

// LastResetLink returns the token and email carried by the newest reset mail
// sent to the given address.
func (r *MailRecorder) LastResetLink(t *testing.T, to string) (email, token string) {
	msgs := r.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].To != to || msgs[i].Link == "" {
			continue
		}
		u, err := url.Parse(msgs[i].Link)
		require.NoError(t, err)
		return u.Query().Get("email"), u.Query().Get("token")
	}
	t.Fatalf("no reset mail sent to %s", to)
	return "", ""
}

func MakeRequest(app *fiber.App, method, url string, body interface{}, token string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req := httptest.NewRequest(method, url, bodyReader)
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()

	resp, err := app.Test(req, -1)
	if err != nil {
		return rec, err
	}

	for k, v := range resp.Header {
		for _, val := range v {
			rec.Header().Add(k, val)
		}
	}
	rec.Code = resp.StatusCode

	io.Copy(rec.Body, resp.Body)
	resp.Body.Close()

	return rec, nil
}

// ResponseCookie returns the named Set-Cookie of a recorded response.
func ResponseCookie(resp *httptest.ResponseRecorder, name string) *http.Cookie {
	header := http.Header{"Set-Cookie": resp.Header().Values("Set-Cookie")}
	for _, c := range (&http.Response{Header: header}).Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func ParseResponse(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	if resp.Body.Len() == 0 {
		t.Log("Warning: Response body is empty")
		return
	}

	err := json.NewDecoder(resp.Body).Decode(v)
	if err != nil && err != io.EOF {
		t.Logf("Response body: %s", resp.Body.String())
		assert.NoError(t, err, "Failed to parse response")
	}
}

type StandardResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    interface{}  `json:"data"`
	Error   *ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func AssertSuccess(t *testing.T, resp *httptest.ResponseRecorder) {
	var result StandardResponse
	ParseResponse(t, resp, &result)
	assert.True(t, result.Success, "Expected success response")
	assert.Empty(t, result.Error, "Expected no error")
}

func AssertError(t *testing.T, resp *httptest.ResponseRecorder, expectedCode string) {
	var result StandardResponse
	ParseResponse(t, resp, &result)
	assert.False(t, result.Success, "Expected error response")
	if assert.NotNil(t, result.Error, "Expected error object") {
		assert.Equal(t, expectedCode, result.Error.Code, "Error code mismatch")
	}
}

// Login signs in through the API and returns the access token.
func Login(t *testing.T, app *fiber.App, email, password string) string {
	resp, err := MakeRequest(app, "POST", "/auth/login", map[string]interface{}{
		"email":    email,
		"password": password,
	}, "")
	require.NoError(t, err)
	require.Equal(t, 200, resp.Code, "login failed: %s", resp.Body.String())

	for _, c := range (&http.Response{Header: resp.Header()}).Cookies() {
		if c.Name == "access_token" {
			return c.Value
		}
	}
	t.Fatal("login did not set an access token cookie")
	return ""
}
