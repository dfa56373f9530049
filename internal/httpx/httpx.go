package httpx

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Victor-Weng/sunset-spot/internal/apperr"
	"github.com/Victor-Weng/sunset-spot/internal/logs"
)

// WriteError answers with {"error","code"} and the status that matches the
// error kind. 5xx responses never carry the underlying cause.
func WriteError(c *gin.Context, err error, userID, extra string) {
	status := apperr.HTTPStatus(err)
	msg, code := apperr.Public(err)
	c.JSON(status, gin.H{"error": msg, "code": code})

	level := "WARN"
	if status >= 500 {
		level = "ERROR"
	}
	logs.LogJSON(level, msg, map[string]interface{}{
		"error":  err.Error(),
		"code":   code,
		"status": status,
		"route":  c.FullPath(),
		"userID": userID,
		"extra":  extra,
	})
}

// BadRequest is used when the request body cannot be bound.
func BadRequest(c *gin.Context, err error, userID string) {
	WriteError(c, apperr.Validation("invalid request: %v", err), userID, fmt.Sprintf("bind %s", c.FullPath()))
}

// BindOptionalJSON binds the JSON body when the request carries one. Chunked
// bodies have no declared length, so presence is decided by the body itself
// and an empty stream leaves obj untouched.
func BindOptionalJSON(c *gin.Context, obj interface{}) error {
	if body := c.Request.Body; body == nil || body == http.NoBody {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Page reads limit/offset query parameters. Missing values are zero and the
// callee applies its own defaults.
func Page(c *gin.Context) (limit, offset int, err error) {
	if limit, err = queryInt(c, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(c, "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation("%s must be a non-negative integer", key)
	}
	return n, nil
}

// Viewer is the user the response is personalised for (is_liked).
func Viewer(c *gin.Context) string {
	return c.Query("viewer")
}
