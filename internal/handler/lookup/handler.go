package lookup

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Renzios/sharerapy-harness/internal/handler"
	"github.com/Renzios/sharerapy-harness/internal/service/lookup"
	"github.com/Renzios/sharerapy-harness/pkg/errors"
)

type Handler struct {
	service lookup.LookupService
}

func NewHandler(service lookup.LookupService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	lookups := r.Group("/lookups")
	{
		lookups.GET("/countries", h.Countries)
		lookups.GET("/clinics", h.Clinics)
		lookups.GET("/languages", h.Languages)
		lookups.GET("/types", h.ReportTypes)
	}
}

func (h *Handler) Countries(c *gin.Context) {
	rows, err := h.service.Countries(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, rows)
}

// Clinics accepts an optional country_id.
func (h *Handler) Clinics(c *gin.Context) {
	var countryID int
	if raw := c.Query("country_id"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			handler.Fail(c, errors.Validation(map[string]string{"country_id": "int"}))
			return
		}
		countryID = n
	}

	rows, err := h.service.Clinics(c.Request.Context(), countryID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, rows)
}

func (h *Handler) Languages(c *gin.Context) {
	rows, err := h.service.Languages(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, rows)
}

func (h *Handler) ReportTypes(c *gin.Context) {
	rows, err := h.service.ReportTypes(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, rows)
}
