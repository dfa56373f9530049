package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Victor-Weng/sunset-spot/internal/apperr"
)

func fakeOpenWeather(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "secret", r.URL.Query().Get("appid"))
		time.Sleep(delay)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"main":{"temp":18.4,"humidity":61},"weather":[{"description":"clear sky","icon":"01d"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLookup(t *testing.T) {
	srv := fakeOpenWeather(t, 0)
	c := NewClient(srv.URL, "secret", time.Second)

	report, err := c.Lookup(context.Background(), 43.6, 1.44)
	require.NoError(t, err)
	assert.Equal(t, 18.4, report.Temperature)
	assert.Equal(t, "clear sky", report.Description)
	assert.Equal(t, "01d", report.Icon)
	require.NotNil(t, report.Humidity)
	assert.Equal(t, 61, *report.Humidity)
}

func TestLookupTimeout(t *testing.T) {
	srv := fakeOpenWeather(t, 200*time.Millisecond)
	c := NewClient(srv.URL, "secret", 20*time.Millisecond)

	_, err := c.Lookup(context.Background(), 0, 0)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestLookupDisabledWithoutKey(t *testing.T) {
	c := NewClient("http://unused.invalid", "", time.Second)

	_, err := c.Lookup(context.Background(), 0, 0)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestHandlerCurrent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := fakeOpenWeather(t, 0)

	tests := []struct {
		name         string
		client       *Client
		query        string
		expectedCode int
	}{
		{"ok", NewClient(srv.URL, "secret", time.Second), "?lat=43.6&lon=1.44", http.StatusOK},
		{"missing coordinates", NewClient(srv.URL, "secret", time.Second), "?lat=43.6", http.StatusBadRequest},
		{"NaN latitude", NewClient(srv.URL, "secret", time.Second), "?lat=NaN&lon=1.44", http.StatusBadRequest},
		{"infinite longitude", NewClient(srv.URL, "secret", time.Second), "?lat=43.6&lon=-Inf", http.StatusBadRequest},
		{"out of range", NewClient(srv.URL, "secret", time.Second), "?lat=123&lon=1.44", http.StatusBadRequest},
		{"not configured", NewClient(srv.URL, "", time.Second), "?lat=1&lon=2", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/api/weather", NewHandler(tt.client).Current)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/weather"+tt.query, nil))

			assert.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedCode == http.StatusOK {
				var body map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, 18.4, body["temp"])
				assert.Equal(t, "clear sky", body["description"])
				assert.Equal(t, "01d", body["icon"])
			}
		})
	}
}
