package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"freshchain-ledger-server/internal/api/middleware"
	"freshchain-ledger-server/internal/ledger"

	"github.com/gin-gonic/gin"
)

// statusOf maps a ledger or infrastructure error to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	body := gin.H{"error": err.Error()}
	if kind := ledger.KindOf(err); kind != "" {
		body["kind"] = kind
	}
	c.JSON(status, body)
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "VALIDATION"})
}

// batchIDParam reads the :id path parameter.
func batchIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch id must be a positive integer", "kind": "VALIDATION"})
		return 0, false
	}
	return id, true
}

// callerOf returns the authenticated caller or aborts with 401.
func callerOf(c *gin.Context) (ledger.Address, bool) {
	addr, ok := middleware.Caller(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	}
	return addr, ok
}
