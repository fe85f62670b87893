package obs

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandlers exposes endpoints for liveness and readiness checks.
type HealthHandlers struct {
	Ready func() error
}

func (h HealthHandlers) Livez(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h HealthHandlers) Readyz(c *gin.Context) {
	if h.Ready != nil {
		if err := h.Ready(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// AllReady runs every probe and joins their failures.
func AllReady(checks ...func() error) func() error {
	return func() error {
		var errs []error
		for _, check := range checks {
			if check == nil {
				continue
			}
			if err := check(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
