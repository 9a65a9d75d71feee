package xray

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hms/internal/handler"
	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/service/xray"
	"github.com/jwalitptl/hms/internal/upload"
	"github.com/jwalitptl/hms/pkg/errors"
	"github.com/jwalitptl/hms/pkg/httputil"
)

const maxImages = 20

type Handler struct {
	svc *xray.Service
}

func NewHandler(svc *xray.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes groups the x-ray route sets by who may reach them.
type Routes struct {
	Read   gin.IRoutes
	Write  gin.IRoutes
	WalkIn gin.IRoutes
	Images gin.IRoutes
}

func (h *Handler) RegisterRoutes(r Routes) {
	r.Read.GET("", h.List)
	r.Read.GET("/:id", h.Get)

	r.Write.POST("", h.Create)
	r.Write.PUT("/:id", h.Update)
	r.Write.DELETE("/:id", h.Delete)

	r.WalkIn.POST("/walkin", h.CreateWalkIn)
	r.WalkIn.GET("/walkin/all", h.ListWalkIns)
	r.WalkIn.GET("/walkin/search", h.ListWalkIns)
	r.WalkIn.GET("/walkin/statistics", h.Statistics)
	r.WalkIn.GET("/walkin/:id", h.GetWalkIn)
	r.WalkIn.PUT("/walkin/:id", h.UpdateWalkIn)
	r.WalkIn.DELETE("/walkin/:id", h.DeleteWalkIn)

	r.Images.GET("/images/*key", h.Image)
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
	httputil.RespondWithSuccess(c, "X-ray records fetched", page)
}

func (h *Handler) ListWalkIns(c *gin.Context) {
	var q model.ListQuery
	if !handler.BindQuery(c, &q) {
		return
	}

	page, err := h.svc.ListWalkIns(c.Request.Context(), q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Walk-in records fetched", page)
}

func (h *Handler) Get(c *gin.Context) {
	h.respondRecord(c, "X-ray record fetched")(h.svc.Get(c.Request.Context(), c.Param("id")))
}

func (h *Handler) GetWalkIn(c *gin.Context) {
	h.respondRecord(c, "Walk-in record fetched")(h.svc.GetWalkIn(c.Request.Context(), c.Param("id")))
}

func (h *Handler) respondRecord(c *gin.Context, message string) func(*model.XrayRecord, error) {
	return func(rec *model.XrayRecord, err error) {
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		httputil.RespondWithSuccess(c, message, rec)
	}
}

func (h *Handler) Create(c *gin.Context) {
	h.create(c, false)
}

func (h *Handler) CreateWalkIn(c *gin.Context) {
	h.create(c, true)
}

func (h *Handler) create(c *gin.Context, walkIn bool) {
	draft, err := readDraft(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	draft.WalkIn = walkIn

	rec, err := h.svc.Create(c.Request.Context(), draft)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, "X-ray record created", rec)
}

// readDraft decodes the multipart create form. notes is a JSON array
// aligned with the images[] parts.
func readDraft(c *gin.Context) (*model.XrayDraft, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, errors.BadRequest("Invalid multipart form", err)
	}

	value := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	draft := &model.XrayDraft{
		PatientID:       value("patientId"),
		PatientName:     value("patientName"),
		PatientUniqueID: value("patientUniqueId"),
		Gender:          value("gender"),
		DoctorID:        value("doctorId"),
		DoctorName:      value("doctorName"),
		TestName:        value("testName"),
		Category:        value("category"),
		Diagnosis:       value("diagnosis"),
		OverallNotes:    value("overallNotes"),
		Instructions:    value("instructions"),
		PerformedBy:     value("performedBy"),
		PerformedDate:   value("performedDate"),
		Priority:        model.Priority(value("priority")),
	}
	if age := value("age"); age != "" {
		if draft.Age, err = strconv.Atoi(age); err != nil {
			return nil, errors.BadRequest("age must be a number", err)
		}
	}

	var notes []string
	if raw := value("notes"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &notes); err != nil {
			return nil, errors.BadRequest("notes must be a JSON array of strings", err)
		}
	}

	files := form.File["images[]"]
	if len(files) == 0 {
		files = form.File["images"]
	}
	if len(files) > maxImages {
		return nil, errors.BadRequest("Too many images", nil)
	}

	for i, fh := range files {
		img, err := readImage(fh)
		if err != nil {
			return nil, err
		}
		if i < len(notes) {
			img.Note = notes[i]
		}
		draft.Images = append(draft.Images, img)
	}
	return draft, nil
}

func readImage(fh *multipart.FileHeader) (model.ImageFile, error) {
	f, err := fh.Open()
	if err != nil {
		return model.ImageFile{}, errors.BadRequest("Could not read "+fh.Filename, err)
	}
	defer f.Close()

	data, _, err := upload.Read(fh.Filename, f)
	if err != nil {
		return model.ImageFile{}, errors.BadRequest(err.Error(), err)
	}
	return model.ImageFile{Filename: fh.Filename, Data: data}, nil
}

func (h *Handler) Update(c *gin.Context) {
	h.update(c, false)
}

func (h *Handler) UpdateWalkIn(c *gin.Context) {
	h.update(c, true)
}

func (h *Handler) update(c *gin.Context, walkIn bool) {
	var upd model.XrayUpdate
	if !handler.BindJSON(c, &upd) {
		return
	}

	var (
		rec *model.XrayRecord
		err error
	)
	if walkIn {
		rec, err = h.svc.UpdateWalkIn(c.Request.Context(), c.Param("id"), &upd)
	} else {
		rec, err = h.svc.Update(c.Request.Context(), c.Param("id"), &upd)
	}
	h.respondRecord(c, "X-ray record updated")(rec, err)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "X-ray record deleted", nil)
}

func (h *Handler) DeleteWalkIn(c *gin.Context) {
	if err := h.svc.DeleteWalkIn(c.Request.Context(), c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Walk-in record deleted", nil)
}

func (h *Handler) Statistics(c *gin.Context) {
	stats, err := h.svc.Statistics(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Walk-in statistics", stats)
}

// Image streams a stored image.
func (h *Handler) Image(c *gin.Context) {
	info, rc, err := h.svc.Image(c.Request.Context(), c.Param("key"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Cache-Control", "private, max-age=3600")
	c.DataFromReader(http.StatusOK, info.Size, info.ContentType, rc, nil)
}
