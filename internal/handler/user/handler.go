package user

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hms/internal/handler"
	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/service/user"
	"github.com/jwalitptl/hms/pkg/httputil"
)

type Handler struct {
	svc user.UserServicer
}

func NewHandler(svc user.UserServicer) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the admin routes on admin and patient lookup on lookup.
func (h *Handler) RegisterRoutes(admin, lookup gin.IRoutes) {
	lookup.GET("/patient/:uniqueId", h.FindPatient)

	admin.GET("/all", h.ListUsers)
	admin.GET("/:id", h.GetUser)
	admin.PUT("/:id", h.UpdateUser)
	admin.DELETE("/:id", h.DeleteUser)
}

func (h *Handler) ListUsers(c *gin.Context) {
	var q model.ListQuery
	if !handler.BindQuery(c, &q) {
		return
	}

	page, err := h.svc.ListUsers(c.Request.Context(), q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Users fetched", page)
}

func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.svc.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "User fetched", gin.H{"user": u})
}

func (h *Handler) UpdateUser(c *gin.Context) {
	var req model.UpdateUserRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	u, err := h.svc.UpdateUser(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "User updated", gin.H{"user": u})
}

func (h *Handler) DeleteUser(c *gin.Context) {
	if err := h.svc.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "User deleted", nil)
}

func (h *Handler) FindPatient(c *gin.Context) {
	p, err := h.svc.FindPatient(c.Request.Context(), c.Param("uniqueId"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Patient found", gin.H{"user": p})
}
