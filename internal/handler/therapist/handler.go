package therapist

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Renzios/sharerapy-harness/internal/handler"
	"github.com/Renzios/sharerapy-harness/internal/model"
	"github.com/Renzios/sharerapy-harness/internal/service/therapist"
)

type Handler struct {
	service therapist.TherapistService
}

func NewHandler(service therapist.TherapistService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	therapists := r.Group("/therapists")
	{
		therapists.GET("", h.ListTherapists)
		therapists.POST("", h.CreateTherapist)
		therapists.GET("/:id", h.GetTherapist)
		therapists.PATCH("/:id", h.UpdateTherapist)
		therapists.DELETE("/:id", h.DeleteTherapist)
	}
}

func (h *Handler) ListTherapists(c *gin.Context) {
	res, err := h.service.ListTherapists(c.Request.Context(), handler.Params(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusOK, res)
}

func (h *Handler) GetTherapist(c *gin.Context) {
	t, err := h.service.GetTherapist(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Found(c, t)
}

func (h *Handler) CreateTherapist(c *gin.Context) {
	var req model.Therapist
	if !handler.BindJSON(c, &req) {
		return
	}

	t, err := h.service.CreateTherapist(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusCreated, t)
}

func (h *Handler) UpdateTherapist(c *gin.Context) {
	var patch model.JSONMap
	if !handler.BindJSON(c, &patch) {
		return
	}

	t, err := h.service.UpdateTherapist(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Found(c, t)
}

func (h *Handler) DeleteTherapist(c *gin.Context) {
	ok, err := h.service.DeleteTherapist(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Deleted(c, ok)
}
