package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/upload"
)

// Labs is the lab record resource.
type Labs struct {
	c *Client
}

func (c *Client) Labs() Labs {
	return Labs{c: c}
}

func (l Labs) List(ctx context.Context, q model.ListQuery) (model.Page[model.LabRecord], error) {
	return fetchPage[model.LabRecord](ctx, l.c, "/lab", q)
}

// Search is List with q.Search matched server-side.
func (l Labs) Search(ctx context.Context, q model.ListQuery) (model.Page[model.LabRecord], error) {
	return l.List(ctx, q)
}

func (l Labs) Get(ctx context.Context, id string) (*model.LabRecord, error) {
	var rec model.LabRecord
	if _, err := l.c.get(ctx, "/lab/"+url.PathEscape(id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (l Labs) Create(ctx context.Context, draft model.LabDraft) (*model.LabRecord, error) {
	var rec model.LabRecord
	if _, err := l.c.send(ctx, http.MethodPost, "/lab", draft, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (l Labs) Update(ctx context.Context, id string, upd model.LabUpdate) (*model.LabRecord, error) {
	var rec model.LabRecord
	if _, err := l.c.send(ctx, http.MethodPut, "/lab/"+url.PathEscape(id), upd, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (l Labs) Delete(ctx context.Context, id string) error {
	_, err := l.c.send(ctx, http.MethodDelete, "/lab/"+url.PathEscape(id), nil, nil)
	return err
}

// Xrays is the x-ray record resource. The walk-in variant talks to the
// /xray/walkin routes.
type Xrays struct {
	c      *Client
	walkIn bool
}

func (c *Client) Xrays() Xrays {
	return Xrays{c: c}
}

func (c *Client) WalkIns() Xrays {
	return Xrays{c: c, walkIn: true}
}

func (x Xrays) itemPath(id string) string {
	if x.walkIn {
		return "/xray/walkin/" + url.PathEscape(id)
	}
	return "/xray/" + url.PathEscape(id)
}

func (x Xrays) List(ctx context.Context, q model.ListQuery) (model.Page[model.XrayRecord], error) {
	if x.walkIn {
		return fetchPage[model.XrayRecord](ctx, x.c, "/xray/walkin/all", q)
	}
	return fetchPage[model.XrayRecord](ctx, x.c, "/xray", q)
}

func (x Xrays) Search(ctx context.Context, q model.ListQuery) (model.Page[model.XrayRecord], error) {
	if x.walkIn {
		return fetchPage[model.XrayRecord](ctx, x.c, "/xray/walkin/search", q)
	}
	return x.List(ctx, q)
}

func (x Xrays) Get(ctx context.Context, id string) (*model.XrayRecord, error) {
	var rec model.XrayRecord
	if _, err := x.c.get(ctx, x.itemPath(id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create uploads the draft as a multipart form. Every image is checked
// before anything is sent.
func (x Xrays) Create(ctx context.Context, draft model.XrayDraft) (*model.XrayRecord, error) {
	contentTypes := make([]string, len(draft.Images))
	for i, img := range draft.Images {
		contentType, err := upload.Check(img.Filename, img.Data)
		if err != nil {
			return nil, &APIError{Message: err.Error(), Err: err}
		}
		contentTypes[i] = contentType
	}

	notes, err := json.Marshal(draft.Notes())
	if err != nil {
		return nil, fmt.Errorf("failed to encode image notes: %w", err)
	}

	form := map[string]string{
		"patientId":       draft.PatientID,
		"patientName":     draft.PatientName,
		"patientUniqueId": draft.PatientUniqueID,
		"age":             strconv.Itoa(draft.Age),
		"gender":          draft.Gender,
		"doctorId":        draft.DoctorID,
		"doctorName":      draft.DoctorName,
		"testName":        draft.TestName,
		"category":        draft.Category,
		"diagnosis":       draft.Diagnosis,
		"overallNotes":    draft.OverallNotes,
		"instructions":    draft.Instructions,
		"performedBy":     draft.PerformedBy,
		"performedDate":   draft.PerformedDate,
		"priority":        string(draft.Priority),
		"notes":           string(notes),
	}
	path := "/xray"
	if x.walkIn {
		form["walkIn"] = "true"
		path = "/xray/walkin"
	}

	req := x.c.request(ctx).SetFormData(form)
	for i, img := range draft.Images {
		req.SetMultipartField("images[]", img.Filename, contentTypes[i], bytes.NewReader(img.Data))
	}

	env, err := x.c.call(req, http.MethodPost, path)
	if err != nil {
		return nil, err
	}
	var rec model.XrayRecord
	if err := decodeData(env, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (x Xrays) Update(ctx context.Context, id string, upd model.XrayUpdate) (*model.XrayRecord, error) {
	var rec model.XrayRecord
	if _, err := x.c.send(ctx, http.MethodPut, x.itemPath(id), upd, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (x Xrays) Delete(ctx context.Context, id string) error {
	_, err := x.c.send(ctx, http.MethodDelete, x.itemPath(id), nil, nil)
	return err
}

// Statistics returns the dataset-wide walk-in counters.
func (x Xrays) Statistics(ctx context.Context) (*model.WalkInStatistics, error) {
	var stats model.WalkInStatistics
	if _, err := x.c.get(ctx, "/xray/walkin/statistics", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// DownloadImage copies the image at an Image.URL into w.
func (c *Client) DownloadImage(ctx context.Context, imageURL string, w io.Writer) (int64, error) {
	resp, err := c.request(ctx).SetDoNotParseResponse(true).Get(imageURL)
	if err != nil {
		return 0, &APIError{Message: err.Error(), Err: err}
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		raw, _ := io.ReadAll(io.LimitReader(body, 4096))
		env := decodeEnvelope(raw)
		msg := env.Message
		if msg == "" {
			msg = resp.Status()
		}
		return 0, &APIError{Status: resp.StatusCode(), Message: msg}
	}

	n, err := io.Copy(w, body)
	if err != nil {
		return n, fmt.Errorf("failed to download image: %w", err)
	}
	return n, nil
}
