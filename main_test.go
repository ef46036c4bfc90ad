package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"relaychat/controller"
	"relaychat/model"
	"relaychat/platform"
	"relaychat/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"gorm.io/driver/sqlite"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testRouter(t *testing.T, limiter *ipRateLimiter) *gin.Engine {
	t.Helper()
	db, err := platform.OpenDB(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), true)
	require.NoError(t, err)
	t.Cleanup(func() { platform.CloseDB(db) })
	require.NoError(t, model.InstallDB(db))

	store := model.NewStore(db)
	cfg := &platform.Config{CORSOrigin: "http://localhost:5173"}
	llmCfg := platform.LLMConfig{BaseURL: "http://127.0.0.1:1", APIKey: "unused", HeaderTimeout: time.Second}
	tokens := service.NewTokenService("main-secret", time.Hour)
	catalog := model.DefaultCatalog()
	relay := service.NewRelay(store,
		platform.NewCompletionClient(llmCfg),
		service.NewTitleSynthesizer(platform.NewTitleClient(llmCfg), "title-model"),
		platform.NewMemoryLocker(),
		catalog)

	return newRouter(cfg, handlers{
		auth: controller.NewAuthController(tokens),
		user: controller.NewUserController(service.NewUserService(store, tokens)),
		chat: controller.NewChatController(service.NewChatService(store), relay, catalog),
	}, limiter)
}

func TestHealthAndRequestID(t *testing.T) {
	r := testRouter(t, newIPRateLimiter(rate.Inf, 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	_, err := uuid.Parse(w.Header().Get("X-Request-Id"))
	assert.NoError(t, err)
}

func TestCORSPreflight(t *testing.T) {
	r := testRouter(t, newIPRateLimiter(rate.Inf, 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/v1/chats", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	r := testRouter(t, newIPRateLimiter(rate.Every(time.Hour), 2))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/user/login", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)

	// other routes are not limited
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIPRateLimiterSweep(t *testing.T) {
	l := newIPRateLimiter(rate.Every(time.Hour), 1)
	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))

	l.visitors["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)
	assert.Equal(t, 1, l.sweep(30*time.Minute))
	assert.True(t, l.allow("10.0.0.1"))
}
