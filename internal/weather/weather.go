package weather

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Victor-Weng/sunset-spot/internal/apperr"
	"github.com/Victor-Weng/sunset-spot/internal/metrics"
)

var ErrDisabled = errors.New("weather lookup is not configured")

type Report struct {
	Temperature float64 `json:"temp"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Humidity    *int    `json:"humidity,omitempty"`
}

// owmResponse is the part of the OpenWeather current-weather payload we read.
type owmResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity *int    `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
}

// Client talks to the OpenWeather current-weather endpoint. One attempt per
// call, bounded by the client timeout.
type Client struct {
	http   *resty.Client
	apiKey string
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		http:   resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		apiKey: apiKey,
	}
}

func (c *Client) Enabled() bool { return c.apiKey != "" }

func (c *Client) Lookup(ctx context.Context, lat, lon float64) (*Report, error) {
	if !c.Enabled() {
		return nil, apperr.Upstream("weather", ErrDisabled)
	}

	var body owmResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":   strconv.FormatFloat(lat, 'f', -1, 64),
			"lon":   strconv.FormatFloat(lon, 'f', -1, 64),
			"units": "metric",
			"appid": c.apiKey,
		}).
		SetResult(&body).
		Get("/data/2.5/weather")
	if err == nil && resp.IsError() {
		err = fmt.Errorf("openweather status %d", resp.StatusCode())
	}
	if err == nil && len(body.Weather) == 0 {
		err = errors.New("openweather returned no conditions")
	}
	metrics.GatewayCalls.WithLabelValues("weather", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, apperr.Upstream("weather", err)
	}

	return &Report{
		Temperature: body.Main.Temp,
		Description: body.Weather[0].Description,
		Icon:        body.Weather[0].Icon,
		Humidity:    body.Main.Humidity,
	}, nil
}
