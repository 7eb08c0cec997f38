package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"idle-market/config"
	"idle-market/internal/adapter/events"
	"idle-market/internal/adapter/storage/memory"
	redisStore "idle-market/internal/adapter/storage/redis"
	"idle-market/internal/core/domain"
	"idle-market/internal/core/ports"
	"idle-market/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testMarket is the full HTTP stack over the in-memory store and miniredis.
type testMarket struct {
	router *gin.Engine
	store  *memory.Store
	tokens *service.JWTTokenService
	hub    *events.WSHub
}

func newTestMarket(t *testing.T, limits config.RateLimitConfig) *testMarket {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := memory.NewStore()
	accounts := memory.NewAccountRepo(store)
	listings := memory.NewListingRepo(store)
	listingCache := redisStore.NewListingCache(client)

	hub := events.NewWSHub(16, zerolog.Nop())
	go hub.Run(ctx)

	engine := service.NewListingService(
		accounts, listings, memory.NewIdempotencyRepo(store),
		redisStore.NewIdempotencyCache(client), listingCache,
		events.NewFanout(events.Sink{Name: "ws", Publisher: hub}),
		service.NewStaticCatalog([]string{"carrot"}, nil),
		store,
		service.ListingSettings{Currencies: []string{"coins"}},
		zerolog.Nop(),
	)
	query := service.NewMarketQueryService(accounts, listings, listingCache,
		service.QuerySettings{DefaultPageSize: 20, MaxPageSize: 100, ListingCacheTTL: time.Minute},
		zerolog.Nop())
	tokens := service.NewJWTTokenService("test-secret", time.Hour, "idle-market")

	router := SetupRouter(RouterDeps{
		ListingSvc:     engine,
		QuerySvc:       query,
		TokenSvc:       tokens,
		Paging:         Paging{DefaultPageSize: 20, MaxPageSize: 100},
		RateLimitStore: redisStore.NewRateLimitStore(client),
		RateLimits:     limits,
		HealthCheckers: []ports.HealthChecker{redisStore.NewHealthCheck(client)},
		AuditSvc:       service.NewAuditService(memory.NewAuditRepo(store), zerolog.Nop()),
		Feed:           hub.Handle,
		Mode:           gin.TestMode,
		Logger:         zerolog.Nop(),
	})

	return &testMarket{router: router, store: store, tokens: tokens, hub: hub}
}

func (m *testMarket) seed(t *testing.T, balance int64, carrots int64) (uuid.UUID, string) {
	t.Helper()
	a := domain.NewAccount(uuid.New(), balance)
	if carrots > 0 {
		require.NoError(t, a.CreditItem(domain.ItemCategoryFood, "carrot", carrots))
	}
	m.store.Seed(a)
	token, _, err := m.tokens.Generate(a.ID)
	require.NoError(t, err)
	return a.ID, token
}

func (m *testMarket) call(t *testing.T, method, path, token string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, jsonBody(t, body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	m.router.ServeHTTP(w, req)
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") && w.Body.Len() > 0 {
		var env envelope
		_ = json.Unmarshal(w.Body.Bytes(), &env)
		return w, env
	}
	return w, envelope{}
}

type listingView struct {
	ID              string `json:"id"`
	Amount          int64  `json:"amount"`
	Status          string `json:"status"`
	UnclaimedAmount int64  `json:"unclaimed_amount"`
	Purchases       []struct {
		Amount  int64 `json:"amount"`
		Claimed bool  `json:"claimed"`
	} `json:"purchases"`
}

type accountView struct {
	CurrentBalance int64            `json:"current_balance"`
	TotalSpent     int64            `json:"total_spent"`
	Food           map[string]int64 `json:"food"`
}

func unmarshalData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestRouter_WorkedExample(t *testing.T) {
	m := newTestMarket(t, config.RateLimitConfig{})
	_, sellerTok := m.seed(t, 0, 10)
	_, buyerTok := m.seed(t, 100, 0)

	w, env := m.call(t, http.MethodPost, "/api/v1/listings", sellerTok,
		map[string]any{"item": "carrot", "amount": 10, "price": 5, "currency": "coins"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "SUCCESS", env.Status)
	created := unmarshalData[listingView](t, env)
	assert.Equal(t, "ACTIVE", created.Status)

	path := "/api/v1/listings/" + created.ID

	w, env = m.call(t, http.MethodPost, path+"/purchase", buyerTok, map[string]any{"amount": 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(6), unmarshalData[listingView](t, env).Amount)

	w, env = m.call(t, http.MethodPost, path+"/purchase", buyerTok, map[string]any{"amount": 6})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sold := unmarshalData[listingView](t, env)
	assert.Equal(t, "SOLD", sold.Status)
	assert.Equal(t, int64(10), sold.UnclaimedAmount)

	// sold listings leave the default (ACTIVE) market view
	_, env = m.call(t, http.MethodGet, "/api/v1/listings", buyerTok, nil)
	assert.Empty(t, unmarshalData[listingPage](t, env).Items)

	w, env = m.call(t, http.MethodPost, path+"/claim", sellerTok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	claimed := unmarshalData[listingView](t, env)
	assert.Equal(t, "COMPLETED", claimed.Status)
	for _, p := range claimed.Purchases {
		assert.True(t, p.Claimed)
	}

	_, env = m.call(t, http.MethodGet, "/api/v1/accounts/me", sellerTok, nil)
	seller := unmarshalData[accountView](t, env)
	assert.Equal(t, int64(50), seller.CurrentBalance)
	assert.Equal(t, int64(0), seller.Food["carrot"])

	_, env = m.call(t, http.MethodGet, "/api/v1/accounts/me", buyerTok, nil)
	buyer := unmarshalData[accountView](t, env)
	assert.Equal(t, int64(50), buyer.CurrentBalance)
	assert.Equal(t, int64(50), buyer.TotalSpent)
	assert.Equal(t, int64(10), buyer.Food["carrot"])

	_, env = m.call(t, http.MethodGet, "/api/v1/accounts/me/listings", sellerTok, nil)
	mine := unmarshalData[listingPage](t, env)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, "COMPLETED", mine.Items[0].Status)

	// audit entries are written asynchronously
	assert.Eventually(t, func() bool {
		return len(m.store.AuditEntries()) == 4
	}, time.Second, 10*time.Millisecond)
}

type listingPage struct {
	Items []listingView `json:"items"`
	Total int64         `json:"total"`
}

func TestRouter_EnvelopeStatuses(t *testing.T) {
	m := newTestMarket(t, config.RateLimitConfig{})
	_, sellerTok := m.seed(t, 0, 10)

	w, env := m.call(t, http.MethodPost, "/api/v1/listings", sellerTok,
		map[string]any{"item": "carrot", "amount": 4, "price": 5, "currency": "coins"})
	require.Equal(t, http.StatusOK, w.Code)
	id := unmarshalData[listingView](t, env).ID

	t.Run("self trade is a bad request", func(t *testing.T) {
		w, env := m.call(t, http.MethodPost, "/api/v1/listings/"+id+"/purchase", sellerTok, map[string]any{"amount": 1})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "BAD_REQUEST", env.Status)
		assert.Equal(t, "TRD_104", env.ErrorCode)
	})

	t.Run("unknown currency is a bad request", func(t *testing.T) {
		w, env := m.call(t, http.MethodPost, "/api/v1/listings", sellerTok,
			map[string]any{"item": "carrot", "amount": 1, "price": 5, "currency": "gems"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "TRD_400", env.ErrorCode)
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		w, env := m.call(t, http.MethodGet, "/api/v1/listings", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "AUTH_001", env.ErrorCode)
	})

	t.Run("forged token is unauthorized", func(t *testing.T) {
		other := service.NewJWTTokenService("another-secret", time.Hour, "idle-market")
		forged, _, err := other.Generate(uuid.New())
		require.NoError(t, err)
		w, _ := m.call(t, http.MethodGet, "/api/v1/listings", forged, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("request id is echoed", func(t *testing.T) {
		w, env := m.call(t, http.MethodGet, "/api/v1/listings/"+id, sellerTok, nil, "X-Request-ID", "trace-7")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "trace-7", env.RequestID)
	})

	t.Run("unknown route", func(t *testing.T) {
		w, env := m.call(t, http.MethodGet, "/api/v1/nope", sellerTok, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "TRD_404", env.ErrorCode)
	})
}

func TestRouter_IdempotentPurchase(t *testing.T) {
	m := newTestMarket(t, config.RateLimitConfig{})
	_, sellerTok := m.seed(t, 0, 10)
	_, buyerTok := m.seed(t, 100, 0)

	_, env := m.call(t, http.MethodPost, "/api/v1/listings", sellerTok,
		map[string]any{"item": "carrot", "amount": 10, "price": 5, "currency": "coins"})
	id := unmarshalData[listingView](t, env).ID

	for i := 0; i < 3; i++ {
		w, env := m.call(t, http.MethodPost, "/api/v1/listings/"+id+"/purchase", buyerTok,
			map[string]any{"amount": 3}, HeaderIdempotencyKey, "retry-1")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, int64(7), unmarshalData[listingView](t, env).Amount)
	}

	_, env = m.call(t, http.MethodGet, "/api/v1/accounts/me", buyerTok, nil)
	assert.Equal(t, int64(85), unmarshalData[accountView](t, env).CurrentBalance)
}

func TestRouter_RateLimitedWrites(t *testing.T) {
	m := newTestMarket(t, config.RateLimitConfig{
		Enabled: true,
		Write:   config.RateRule{Limit: 2, Window: time.Minute},
		Read:    config.RateRule{Limit: 100, Window: time.Minute},
	})
	_, sellerTok := m.seed(t, 0, 10)

	body := map[string]any{"item": "carrot", "amount": 1, "price": 1, "currency": "coins"}
	for i := 0; i < 2; i++ {
		w, _ := m.call(t, http.MethodPost, "/api/v1/listings", sellerTok, body)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, env := m.call(t, http.MethodPost, "/api/v1/listings", sellerTok, body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_001", env.ErrorCode)

	// reads use their own budget
	w, _ = m.call(t, http.MethodGet, "/api/v1/accounts/me", sellerTok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	m := newTestMarket(t, config.RateLimitConfig{})

	w, _ := m.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis"`)

	w, _ = m.call(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "idm_http_requests_total")
}

func TestRouter_FeedStreamsEvents(t *testing.T) {
	m := newTestMarket(t, config.RateLimitConfig{})
	_, sellerTok := m.seed(t, 0, 10)

	srv := httptest.NewServer(m.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/feed"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return m.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	_, env := m.call(t, http.MethodPost, "/api/v1/listings", sellerTok,
		map[string]any{"item": "carrot", "amount": 2, "price": 9, "currency": "coins"})
	id := unmarshalData[listingView](t, env).ID

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event domain.ListingEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, domain.EventListingCreated, event.Type)
	assert.Equal(t, id, event.ListingID.String())
	assert.Equal(t, int64(2), event.Quantity)
	assert.Equal(t, int64(9), event.Price)
}
