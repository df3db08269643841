//go:build integration

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/extraweb/internal/domain/auth"
	"github.com/xenking/extraweb/internal/domain/product"
	"github.com/xenking/extraweb/internal/domain/user"
	"github.com/xenking/extraweb/internal/id"
	"github.com/xenking/extraweb/internal/storage/mongo"
)

const testSecret = "integration-secret"

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return nooptrace.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return noopmetric.NewMeterProvider() }

type apiEnv struct {
	baseURL string
	store   *mongo.Store
	tokens  *auth.Tokens
	client  *http.Client
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func startAPI(t *testing.T) *apiEnv {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	t.Cleanup(cancel)

	container, err := tcmongo.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	t.Setenv("EXTRAWEB_MONGO_URI", uri)
	t.Setenv("EXTRAWEB_AUTH_JWT_SECRET", testSecret)
	t.Setenv("EXTRAWEB_ADDR", freeAddr(t))
	t.Setenv("EXTRAWEB_GRACEFUL_READINESS_DELAY", "0s")
	cfg, err := loadConfig(testLoader())
	require.NoError(t, err)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- Run(runCtx, zaptest.NewLogger(t), noopTelemetry{}, cfg) }()
	t.Cleanup(func() {
		stop()
		assert.NoError(t, <-done)
	})

	store, err := mongo.Open(ctx, uri, cfg.Mongo.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	env := &apiEnv{
		baseURL: "http://" + cfg.Addr,
		store:   store,
		tokens:  auth.NewTokens([]byte(testSecret), ""),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	require.Eventually(t, func() bool {
		resp, err := env.client.Get(env.baseURL + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Minute, 200*time.Millisecond)
	return env
}

func (e *apiEnv) seedUser(t *testing.T, role auth.Role) (*user.User, string) {
	t.Helper()
	u := &user.User{
		ID:        id.New(id.User),
		FirstName: "Test",
		LastName:  string(role),
		Email:     id.Suffix(id.User) + "@example.com",
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	tok, err := e.tokens.Issue(auth.Principal{UserID: u.ID, Role: role, Email: u.Email, Name: u.FullName()}, time.Hour)
	require.NoError(t, err)
	return u, tok
}

func (e *apiEnv) call(t *testing.T, method, path, token, body string, hdr ...string) (*http.Response, apiEnvelope) {
	t.Helper()
	req, err := http.NewRequest(method, e.baseURL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env apiEnvelope
	if len(raw) > 0 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.Unmarshal(raw, &env), "body: %s", raw)
	}
	return resp, env
}

func TestAPI(t *testing.T) {
	env := startAPI(t)
	_, userTok := env.seedUser(t, auth.RoleUser)
	_, adminTok := env.seedUser(t, auth.RoleAdmin)

	t.Run("Livez", func(t *testing.T) {
		resp, _ := env.call(t, http.MethodGet, "/livez", "", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	})

	t.Run("RequestIDEchoed", func(t *testing.T) {
		resp, _ := env.call(t, http.MethodGet, "/livez", "", "", "X-Request-ID", "custom-request-id-12345")
		assert.Equal(t, "custom-request-id-12345", resp.Header.Get("X-Request-ID"))
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		resp, _ := env.call(t, http.MethodOptions, "/api/v1/stats/dashboard", "", "",
			"Origin", "http://example.com",
			"Access-Control-Request-Method", "GET",
		)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
		assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Methods"))
	})

	t.Run("Dashboard", func(t *testing.T) {
		resp, body := env.call(t, http.MethodGet, "/api/v1/stats/dashboard", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, body.Success)
		assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Remaining"))
	})

	t.Run("Unauthorized", func(t *testing.T) {
		resp, body := env.call(t, http.MethodGet, "/api/v1/orders/my", "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.False(t, body.Success)
	})

	t.Run("Forbidden", func(t *testing.T) {
		resp, _ := env.call(t, http.MethodGet, "/api/v1/orders/admin/all", userTok, "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("NotFound", func(t *testing.T) {
		resp, body := env.call(t, http.MethodGet, "/api/v1/nope", "", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "API not found", body.Message)
	})

	t.Run("CouponLifecycle", func(t *testing.T) {
		start := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
		end := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
		create := fmt.Sprintf(`{"code":"itest10","discountType":"percentage","discountValue":10,"startDate":%q,"endDate":%q,"showInTopHeader":true}`, start, end)

		resp, body := env.call(t, http.MethodPost, "/api/v1/coupons", adminTok, create)
		require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)

		resp, body = env.call(t, http.MethodPost, "/api/v1/coupons", adminTok, create)
		assert.Equal(t, http.StatusConflict, resp.StatusCode, body.Message)

		resp, body = env.call(t, http.MethodPost, "/api/v1/coupons/validate", "",
			`{"code":"ITEST10","cartTotal":1000,"productType":"course"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, body.Message)
		var quote struct {
			DiscountAmount float64 `json:"discountAmount"`
			FinalAmount    float64 `json:"finalAmount"`
		}
		require.NoError(t, json.Unmarshal(body.Data, &quote))
		assert.Equal(t, 100.0, quote.DiscountAmount)
		assert.Equal(t, 900.0, quote.FinalAmount)

		resp, _ = env.call(t, http.MethodGet, "/api/v1/coupons/top-header", "", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("OrderFlow", func(t *testing.T) {
		course := &product.Product{
			ID:        id.New(id.Course),
			Type:      product.TypeCourse,
			Title:     "Integration Course",
			Price:     decimal.NewFromInt(500),
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, env.store.Products().Create(context.Background(), course))

		create := fmt.Sprintf(`{"items":[{"productId":%q,"productType":"course","title":"x","price":1}],"paymentMethod":"bkash"}`, course.ID)
		resp, body := env.call(t, http.MethodPost, "/api/v1/orders", userTok, create)
		require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)

		var created struct {
			ID          string  `json:"id"`
			TotalAmount float64 `json:"totalAmount"`
		}
		require.NoError(t, json.Unmarshal(body.Data, &created))
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, 500.0, created.TotalAmount)

		resp, body = env.call(t, http.MethodGet, "/api/v1/orders/my/"+created.ID, userTok, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode, body.Message)

		resp, body = env.call(t, http.MethodGet, "/api/v1/orders/admin/all", adminTok, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode, body.Message)
	})
}
