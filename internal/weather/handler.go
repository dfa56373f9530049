package weather

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Victor-Weng/sunset-spot/internal/apperr"
	"github.com/Victor-Weng/sunset-spot/internal/httpx"
)

type Lookup interface {
	Lookup(ctx context.Context, lat, lon float64) (*Report, error)
}

type Handler struct {
	weather Lookup
}

func NewHandler(w Lookup) *Handler {
	return &Handler{weather: w}
}

// Current GET /api/weather?lat=..&lon=..
func (h *Handler) Current(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil || !validCoords(lat, lon) {
		httpx.WriteError(c, apperr.Validation("latitude and longitude are required"), "",
			fmt.Sprintf("lat=%q lon=%q", c.Query("lat"), c.Query("lon")))
		return
	}

	report, err := h.weather.Lookup(c.Request.Context(), lat, lon)
	if err != nil {
		httpx.WriteError(c, err, "", fmt.Sprintf("weather lookup %f,%f", lat, lon))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"temp":        report.Temperature,
		"description": report.Description,
		"icon":        report.Icon,
	})
}

func validCoords(lat, lon float64) bool {
	for _, v := range []float64{lat, lon} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
