package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"rentwy-service/internal/models"
	"rentwy-service/internal/security"
	"rentwy-service/internal/service"
	"rentwy-service/internal/store/memstore"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32-bytes-long"

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]uuid.UUID
}

func (m *memIdempotency) GetBookingID(_ context.Context, key string) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.keys[key]
	return id, ok, nil
}

func (m *memIdempotency) SaveBookingID(_ context.Context, key string, id uuid.UUID, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = id
	return nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type apiFixture struct {
	router *gin.Engine
	tokens *security.TokenManager
	store  *memstore.Store
	item   models.Item
	owner  uuid.UUID
	renter uuid.UUID
}

func newAPIFixture(t *testing.T, checks map[string]Pinger) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := memstore.New()
	activity := service.NewActivityService(st, st)
	bookings := service.NewBookingService(st, activity, &memIdempotency{keys: map[string]uuid.UUID{}},
		service.BookingOptions{DeliveryFeeCents: 1500, IdempotencyTTL: time.Hour})
	tokens := security.NewTokenManager(testSecret, "rentwy")

	owner := uuid.New()
	item := models.Item{
		ID:               uuid.New(),
		OwnerID:          owner,
		Title:            "Silk evening gown",
		PricePerDayCents: 2000,
		DepositCents:     5000,
		IsAvailable:      true,
		Status:           models.ItemStatusActive,
	}
	st.PutItem(item)

	router := gin.New()
	NewHandler(bookings, activity, tokens, checks).SetupRoutes(router)

	return &apiFixture{router: router, tokens: tokens, store: st, item: item, owner: owner, renter: uuid.New()}
}

func (f *apiFixture) do(t *testing.T, method, path string, user uuid.UUID, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		token, err := f.tokens.GenerateAccessToken(user, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) createBooking(t *testing.T, start, end string) models.Booking {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/bookings", f.renter, gin.H{
		"item_id":       f.item.ID,
		"start_date":    start,
		"end_date":      end,
		"pickup_method": "pickup",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var b models.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	return b
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthAndReadiness(t *testing.T) {
	f := newAPIFixture(t, map[string]Pinger{
		"database": pingFunc(func(context.Context) error { return nil }),
	})

	w := f.do(t, http.MethodGet, "/health", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/ready", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", decode(t, w)["status"])
}

func TestReadinessReportsFailedDependency(t *testing.T) {
	f := newAPIFixture(t, map[string]Pinger{
		"database": pingFunc(func(context.Context) error { return nil }),
		"redis":    pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})

	w := f.do(t, http.MethodGet, "/ready", uuid.Nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	failed, ok := decode(t, w)["failed"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, failed, "redis")
	assert.NotContains(t, failed, "database")
}

func TestRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t, nil)

	w := f.do(t, http.MethodGet, "/api/v1/bookings", uuid.Nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/bookings", uuid.Nil, nil, "Authorization", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := f.tokens.GenerateAccessToken(f.renter, -time.Minute)
	require.NoError(t, err)
	w = f.do(t, http.MethodGet, "/api/v1/bookings", uuid.Nil, nil, "Authorization", "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token has expired", decode(t, w)["error"])
}

func TestCreateBooking(t *testing.T) {
	f := newAPIFixture(t, nil)

	b := f.createBooking(t, "2024-01-01", "2024-01-03")
	assert.Equal(t, models.BookingStatusPending, b.Status)
	assert.Equal(t, f.renter, b.RenterID)
	assert.Equal(t, f.owner, b.OwnerID)
	assert.Equal(t, 3, b.TotalDays)
	assert.Equal(t, int64(6000), b.SubtotalCents)
	assert.Equal(t, int64(600), b.ServiceFeeCents)
	assert.Equal(t, int64(0), b.DeliveryFeeCents)
	assert.Equal(t, int64(11600), b.TotalCents)
}

func TestCreateBookingValidation(t *testing.T) {
	f := newAPIFixture(t, nil)

	tests := []struct {
		name string
		body gin.H
		want int
	}{
		{
			name: "missing item",
			body: gin.H{"start_date": "2024-01-01", "end_date": "2024-01-03", "pickup_method": "pickup"},
			want: http.StatusBadRequest,
		},
		{
			name: "malformed date",
			body: gin.H{"item_id": f.item.ID, "start_date": "01/01/2024", "end_date": "2024-01-03", "pickup_method": "pickup"},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown pickup method",
			body: gin.H{"item_id": f.item.ID, "start_date": "2024-01-01", "end_date": "2024-01-03", "pickup_method": "drone"},
			want: http.StatusBadRequest,
		},
		{
			name: "end equals start",
			body: gin.H{"item_id": f.item.ID, "start_date": "2024-01-01", "end_date": "2024-01-01", "pickup_method": "pickup"},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown item",
			body: gin.H{"item_id": uuid.New(), "start_date": "2024-01-01", "end_date": "2024-01-03", "pickup_method": "pickup"},
			want: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/v1/bookings", f.renter, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestCreateBookingErrorsMapToStatus(t *testing.T) {
	f := newAPIFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/v1/bookings", f.owner, gin.H{
		"item_id": f.item.ID, "start_date": "2024-01-01", "end_date": "2024-01-03", "pickup_method": "pickup",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(service.KindForbidden), decode(t, w)["code"])

	b := f.createBooking(t, "2024-01-01", "2024-01-03")
	w = f.do(t, http.MethodPatch, "/api/v1/bookings/"+b.ID.String()+"/status", f.owner, gin.H{"status": "confirmed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/v1/bookings", uuid.New(), gin.H{
		"item_id": f.item.ID, "start_date": "2024-01-03", "end_date": "2024-01-05", "pickup_method": "delivery",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(service.KindConflict), decode(t, w)["code"])
}

func TestCreateBookingIdempotencyKey(t *testing.T) {
	f := newAPIFixture(t, nil)
	body := gin.H{"item_id": f.item.ID, "start_date": "2024-03-01", "end_date": "2024-03-02", "pickup_method": "pickup"}

	first := f.do(t, http.MethodPost, "/api/v1/bookings", f.renter, body, "Idempotency-Key", "retry-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := f.do(t, http.MethodPost, "/api/v1/bookings", f.renter, body, "Idempotency-Key", "retry-1")
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())

	assert.Equal(t, decode(t, first)["id"], decode(t, second)["id"])

	w := f.do(t, http.MethodGet, "/api/v1/bookings", f.renter, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])
}

func TestUpdateBookingStatus(t *testing.T) {
	f := newAPIFixture(t, nil)
	b := f.createBooking(t, "2024-02-01", "2024-02-03")
	path := "/api/v1/bookings/" + b.ID.String() + "/status"

	w := f.do(t, http.MethodPatch, path, f.renter, gin.H{"status": "confirmed"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPatch, path, f.owner, gin.H{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPatch, path, f.owner, gin.H{"status": "confirmed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var confirmed models.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &confirmed))
	assert.Equal(t, models.BookingStatusConfirmed, confirmed.Status)
	assert.NotNil(t, confirmed.ConfirmedAt)

	w = f.do(t, http.MethodPatch, path, f.owner, gin.H{"status": "confirmed"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPatch, path, f.renter, gin.H{"status": "cancelled"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "cancelling needs a reason")

	w = f.do(t, http.MethodPatch, path, f.renter, gin.H{"status": "cancelled", "reason": "event was postponed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPatch, "/api/v1/bookings/"+uuid.New().String()+"/status", f.owner, gin.H{"status": "confirmed"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPatch, "/api/v1/bookings/not-a-uuid/status", f.owner, gin.H{"status": "confirmed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBookingVisibleToPartiesOnly(t *testing.T) {
	f := newAPIFixture(t, nil)
	b := f.createBooking(t, "2024-02-10", "2024-02-12")
	path := "/api/v1/bookings/" + b.ID.String()

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, f.renter, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, f.owner, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, path, uuid.New(), nil).Code)
}

func TestListBookingsByRole(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.createBooking(t, "2024-04-01", "2024-04-02")
	f.createBooking(t, "2024-04-05", "2024-04-06")

	w := f.do(t, http.MethodGet, "/api/v1/bookings?role=owner&page_size=1", f.owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 2, body["total"])
	assert.Len(t, body["bookings"], 1)

	w = f.do(t, http.MethodGet, "/api/v1/bookings?role=renter", f.owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["total"])

	w = f.do(t, http.MethodGet, "/api/v1/bookings?role=admin", f.owner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/bookings?status=lost", f.renter, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityAndQuote(t *testing.T) {
	f := newAPIFixture(t, nil)
	base := "/api/v1/items/" + f.item.ID.String()

	w := f.do(t, http.MethodGet, base+"/availability?start=2024-05-01&end=2024-05-03", f.renter, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["available"])

	w = f.do(t, http.MethodPut, base+"/availability", f.renter, gin.H{"dates": []string{"2024-05-02"}, "available": false})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPut, base+"/availability", f.owner, gin.H{
		"dates": []string{"2024-05-02"}, "available": false, "reason": "dry cleaning",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, base+"/availability?start=2024-05-01&end=2024-05-03", f.renter, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["available"])

	w = f.do(t, http.MethodGet, base+"/availability?start=2024-05-01", f.renter, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, base+"/availability?start=2024-05-01&end=2024-05-03&calendar=true", f.renter, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	dates, ok := decode(t, w)["dates"].([]interface{})
	require.True(t, ok)
	require.Len(t, dates, 1)
	blocked := dates[0].(map[string]interface{})
	assert.Equal(t, false, blocked["is_available"])
	assert.Equal(t, "dry cleaning", blocked["reason"])

	w = f.do(t, http.MethodGet, base+"/availability?start=2024-05-01&end=2024-05-03", f.renter, nil)
	assert.NotContains(t, decode(t, w), "dates")

	w = f.do(t, http.MethodGet, base+"/availability?start=2024-01-01&end=2024-12-31", f.renter, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, base+"/quote?start=2024-06-01&end=2024-06-01", f.renter, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, base+"/quote?start=2024-06-01&end=2024-06-03&pickup_method=delivery", f.renter, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	quote := decode(t, w)
	assert.Equal(t, true, quote["available"])
	assert.EqualValues(t, 3, quote["total_days"])
	assert.EqualValues(t, 1500, quote["delivery_fee_cents"])
	assert.EqualValues(t, 13100, quote["total_cents"])

	w = f.do(t, http.MethodGet, base+"/quote?start=2024-06-01&end=2024-06-03&pickup_method=drone", f.renter, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingActivity(t *testing.T) {
	f := newAPIFixture(t, nil)
	b := f.createBooking(t, "2024-08-01", "2024-08-02")

	w := f.do(t, http.MethodPatch, "/api/v1/bookings/"+b.ID.String()+"/status", f.owner, gin.H{"status": "confirmed"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/bookings/"+b.ID.String()+"/activity", f.renter, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["activity"], 2)

	w = f.do(t, http.MethodGet, "/api/v1/bookings/"+b.ID.String()+"/activity", uuid.New(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
