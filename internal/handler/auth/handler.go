package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Renzios/sharerapy-harness/internal/handler"
	"github.com/Renzios/sharerapy-harness/internal/model"
	"github.com/Renzios/sharerapy-harness/internal/service/auth"
)

type Handler struct {
	svc auth.AuthService
}

func NewHandler(svc auth.AuthService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
		auth.POST("/signout", h.SignOut)
		auth.GET("/session", h.Session)
	}
}

// Signup answers 201 with the user, 409 when the e-mail is taken and 400
// when e-mail or password is missing.
func (h *Handler) Signup(c *gin.Context) {
	var req model.SignupRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	user, err := h.svc.Signup(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Respond(c, http.StatusCreated, user)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	res, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	if res == nil {
		c.JSON(http.StatusUnauthorized, nil)
		return
	}
	handler.Respond(c, http.StatusOK, res)
}

// SignOut takes the token from the Authorization header or a {"token": ...}
// body and answers whether a session was removed.
func (h *Handler) SignOut(c *gin.Context) {
	token := handler.BearerToken(c)
	if token == "" && c.Request.ContentLength != 0 {
		var body struct {
			Token string `json:"token"`
		}
		if !handler.BindJSON(c, &body) {
			return
		}
		token = body.Token
	}

	handler.Respond(c, http.StatusOK, h.svc.SignOut(c.Request.Context(), token))
}

func (h *Handler) Session(c *gin.Context) {
	email, ok := h.svc.Resolve(handler.BearerToken(c))
	if !ok {
		c.JSON(http.StatusUnauthorized, nil)
		return
	}
	handler.Respond(c, http.StatusOK, gin.H{"email": email})
}
