package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Renzios/sharerapy-harness/internal/handler"
	"github.com/Renzios/sharerapy-harness/internal/model"
	"github.com/Renzios/sharerapy-harness/internal/service/patient"
)

type Handler struct {
	service patient.PatientService
}

func NewHandler(service patient.PatientService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.GET("", h.ListPatients)
		patients.POST("", h.CreatePatient)
		patients.GET("/:id", h.GetPatient)
		patients.PATCH("/:id", h.UpdatePatient)
		patients.DELETE("/:id", h.DeletePatient)
	}
}

func (h *Handler) ListPatients(c *gin.Context) {
	res, err := h.service.ListPatients(c.Request.Context(), handler.Params(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, res)
}

func (h *Handler) GetPatient(c *gin.Context) {
	p, err := h.service.GetPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Found(c, p)
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.Patient
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.service.CreatePatient(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusCreated, p)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	var patch model.JSONMap
	if !handler.BindJSON(c, &patch) {
		return
	}

	p, err := h.service.UpdatePatient(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Found(c, p)
}

func (h *Handler) DeletePatient(c *gin.Context) {
	ok, err := h.service.DeletePatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Deleted(c, ok)
}
