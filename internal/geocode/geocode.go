package geocode

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"

	"github.com/Victor-Weng/sunset-spot/internal/apperr"
	"github.com/Victor-Weng/sunset-spot/internal/metrics"
)

type Place struct {
	Name   string
	Region string
}

type nominatimResponse struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		Suburb  string `json:"suburb"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

// Client does reverse geocoding against a Nominatim compatible server.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("User-Agent", userAgent).
			SetHeader("Accept-Language", "en"),
	}
}

func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*Place, error) {
	var body nominatimResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"format": "jsonv2",
			"lat":    strconv.FormatFloat(lat, 'f', -1, 64),
			"lon":    strconv.FormatFloat(lon, 'f', -1, 64),
		}).
		SetResult(&body).
		Get("/reverse")
	if err == nil && resp.IsError() {
		err = fmt.Errorf("nominatim status %d", resp.StatusCode())
	}
	metrics.GatewayCalls.WithLabelValues("geocode", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, apperr.Upstream("geocode", err)
	}

	a := body.Address
	name, _ := lo.Coalesce(a.City, a.Town, a.Village, a.Suburb, body.Name, body.DisplayName)
	region, _ := lo.Coalesce(a.State, a.Country)
	return &Place{Name: name, Region: region}, nil
}
