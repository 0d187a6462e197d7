package report

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Renzios/sharerapy-harness/internal/handler"
	"github.com/Renzios/sharerapy-harness/internal/model"
	"github.com/Renzios/sharerapy-harness/internal/service/report"
)

type Handler struct {
	service report.ReportService
}

func NewHandler(service report.ReportService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	reports := r.Group("/reports")
	{
		reports.GET("", h.ListReports)
		reports.POST("", h.CreateReport)
		reports.GET("/:id", h.GetReport)
		reports.PATCH("/:id", h.UpdateReport)
		reports.DELETE("/:id", h.DeleteReport)
	}
}

func (h *Handler) ListReports(c *gin.Context) {
	res, err := h.service.ListReports(c.Request.Context(), handler.Params(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, res)
}

func (h *Handler) GetReport(c *gin.Context) {
	r, err := h.service.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Found(c, r)
}

func (h *Handler) CreateReport(c *gin.Context) {
	var req model.Report
	if !handler.BindJSON(c, &req) {
		return
	}

	r, err := h.service.CreateReport(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusCreated, r)
}

func (h *Handler) UpdateReport(c *gin.Context) {
	var patch model.JSONMap
	if !handler.BindJSON(c, &patch) {
		return
	}

	r, err := h.service.UpdateReport(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Found(c, r)
}

func (h *Handler) DeleteReport(c *gin.Context) {
	ok, err := h.service.DeleteReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Deleted(c, ok)
}
