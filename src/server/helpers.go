package server

import (
	"net/http"
	"strconv"
	"strings"

	"market-pulse/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Response envelope
// -----------------------------------------------------------------------------

type apiResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// -----------------------------------------------------------------------------

func respondOK(c *gin.Context, data interface{}) {
	if data == nil {
		c.JSON(http.StatusOK, apiResponse{Code: 0, Message: "no content", Data: []interface{}{}})
		return
	}
	c.JSON(http.StatusOK, apiResponse{Code: http.StatusOK, Message: "success", Data: data})
}

// -----------------------------------------------------------------------------

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, apiResponse{Code: status, Message: err.Error(), Data: nil})
}

// -----------------------------------------------------------------------------
// Query helpers
// -----------------------------------------------------------------------------

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

// -----------------------------------------------------------------------------

// splitList parses "a,b, c" into its non-empty trimmed parts.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

func buildPagination(page, limit, total int) models.MPagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return models.MPagination{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}
