package lab

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hms/internal/handler"
	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/service/lab"
	"github.com/jwalitptl/hms/pkg/httputil"
)

type Handler struct {
	svc *lab.Service
}

func NewHandler(svc *lab.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(read, write gin.IRoutes) {
	read.GET("", h.List)
	read.GET("/:id", h.Get)

	write.POST("", h.Create)
	write.PUT("/:id", h.Update)
	write.DELETE("/:id", h.Delete)
}

func (h *Handler) List(c *gin.Context) {
	var q model.ListQuery
	if !handler.BindQuery(c, &q) {
		return
	}

	page, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Lab records fetched", page)
}

func (h *Handler) Get(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Lab record fetched", rec)
}

func (h *Handler) Create(c *gin.Context) {
	var draft model.LabDraft
	if !handler.BindJSON(c, &draft) {
		return
	}

	rec, err := h.svc.Create(c.Request.Context(), &draft)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, "Lab record created", rec)
}

func (h *Handler) Update(c *gin.Context) {
	var upd model.LabUpdate
	if !handler.BindJSON(c, &upd) {
		return
	}

	rec, err := h.svc.Update(c.Request.Context(), c.Param("id"), &upd)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Lab record updated", rec)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Lab record deleted", nil)
}
