package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jroosing/nettest/internal/api/models"
	"github.com/jroosing/nettest/internal/config"
)

const secretKey = "api.api_key"

// GetConfig returns the effective configuration as key/value text.
func (h *Handler) GetConfig(c *gin.Context) {
	if h.cfg == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "config unavailable"})
		return
	}

	values := make(map[string]string)
	for _, key := range config.Keys() {
		v, err := h.cfg.Get(key)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
			return
		}
		values[key] = v
	}
	if values[secretKey] != "" {
		values[secretKey] = models.Redacted
	}
	c.JSON(http.StatusOK, models.ConfigResponse{Values: values})
}

// GetProfile returns the values stored in the profile database.
func (h *Handler) GetProfile(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "no profile database"})
		return
	}

	values, err := h.db.GetAllConfig()
	if err != nil {
		if h.logger != nil {
			h.logger.Error("profile read failed", "err", err)
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "profile unavailable"})
		return
	}
	version, err := h.db.GetVersion()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "profile unavailable"})
		return
	}
	if values[secretKey] != "" {
		values[secretKey] = models.Redacted
	}
	c.JSON(http.StatusOK, models.ProfileResponse{Version: version, Values: values})
}
