// Package client talks to the hospital REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/pkg/validator"
)

// APIError is returned for every failed call, transport failures included
// (Status is zero for those).
type APIError struct {
	Status  int
	Message string
	Fields  []string
	Err     error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether the server answered 404.
func (e *APIError) IsNotFound() bool {
	return e.Status == http.StatusNotFound
}

// envelope is the API's {status, message, data} wrapper
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client is a session-holding API client. The cookie jar carries the
// login cookie across calls.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// New returns a client for the API at baseURL.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	jar, _ := cookiejar.New(nil)

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetCookieJar(jar).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   httpClient,
		logger: logger,
	}
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

// call executes req and unwraps the response envelope. Non-2xx answers
// become *APIError carrying the body's message.
func (c *Client) call(req *resty.Request, method, path string) (*envelope, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Warn("API request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, &APIError{Message: err.Error(), Err: err}
	}

	env := decodeEnvelope(resp.Body())
	if resp.IsError() {
		apiErr := &APIError{
			Status:  resp.StatusCode(),
			Message: env.Message,
			Fields:  decodeFields(env.Data),
		}
		if apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("%s %s: %s", method, path, resp.Status())
		}
		c.logger.Debug("API returned error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("message", apiErr.Message),
		)
		return nil, apiErr
	}

	c.logger.Debug("API request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("duration", resp.Time()),
	)
	return env, nil
}

// get is call for a JSON GET decoding data into out.
func (c *Client) get(ctx context.Context, path string, params map[string]string, out interface{}) (string, error) {
	env, err := c.call(c.request(ctx).SetQueryParams(params), http.MethodGet, path)
	if err != nil {
		return "", err
	}
	return env.Message, decodeData(env, out)
}

// send is call for a JSON body decoding data into out. out may be nil.
func (c *Client) send(ctx context.Context, method, path string, body, out interface{}) (string, error) {
	req := c.request(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	env, err := c.call(req, method, path)
	if err != nil {
		return "", err
	}
	return env.Message, decodeData(env, out)
}

func decodeData(env *envelope, out interface{}) error {
	if out == nil || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &APIError{Message: "Unexpected response from server", Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// decodeEnvelope accepts the wrapped form and any bare JSON body, which
// is then treated as data.
func decodeEnvelope(body []byte) *envelope {
	body = bytes.TrimSpace(body)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return &envelope{Data: body}
	}

	var env envelope
	if status, ok := fields["status"]; ok && json.Unmarshal(status, &env.Status) == nil {
		_ = json.Unmarshal(fields["message"], &env.Message)
		env.Data = fields["data"]
		return &env
	}

	_ = json.Unmarshal(fields["message"], &env.Message)
	env.Data = body
	return &env
}

// decodeFields reads the field complaints of a 400 answer.
func decodeFields(data json.RawMessage) []string {
	if len(data) == 0 {
		return nil
	}

	var detailed validator.Errors
	if err := json.Unmarshal(data, &detailed); err == nil && len(detailed) > 0 && detailed[0].Message != "" {
		return detailed.Messages()
	}

	var plain []string
	if err := json.Unmarshal(data, &plain); err == nil {
		return plain
	}
	return nil
}

// decodePage normalises the list shapes the API may send (a bare array,
// {records, pagination} or either wrapped in data) into a Page. Pagination
// sent by the server is kept; it is synthesised only when absent.
func decodePage[T any](raw json.RawMessage) (model.Page[T], error) {
	records, pagination, err := decodeRecords[T](raw)
	if err != nil {
		return model.Page[T]{}, err
	}
	if records == nil {
		records = []T{}
	}

	page := model.Page[T]{Records: records}
	if pagination == nil {
		page.Pagination = model.NewPagination(1, len(records), len(records))
		return page, nil
	}

	page.Pagination = *pagination
	if page.Pagination.Limit <= 0 {
		page.Pagination.Limit = inferLimit(page.Pagination, len(records))
	}
	return page, nil
}

func decodeRecords[T any](raw json.RawMessage) ([]T, *model.Pagination, error) {
	var records []T
	raw = bytes.TrimSpace(raw)

	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return nil, nil, nil
	case raw[0] == '[':
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, nil, fmt.Errorf("failed to decode records: %w", err)
		}
		return records, nil, nil
	case raw[0] != '{':
		return nil, nil, fmt.Errorf("failed to decode page: unexpected body")
	}

	var obj struct {
		Records    json.RawMessage   `json:"records"`
		Data       json.RawMessage   `json:"data"`
		Pagination *model.Pagination `json:"pagination"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, nil, fmt.Errorf("failed to decode page: %w", err)
	}
	if obj.Records == nil && obj.Data != nil {
		inner, pagination, err := decodeRecords[T](obj.Data)
		if obj.Pagination != nil {
			pagination = obj.Pagination
		}
		return inner, pagination, err
	}
	if obj.Records == nil {
		return nil, nil, fmt.Errorf("failed to decode page: no records field")
	}
	if err := json.Unmarshal(obj.Records, &records); err != nil {
		return nil, nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return records, obj.Pagination, nil
}

// inferLimit recovers the page size of a pagination block sent without one.
func inferLimit(p model.Pagination, shown int) int {
	switch {
	case p.TotalPages > 0 && p.TotalRecords > 0:
		return (p.TotalRecords + p.TotalPages - 1) / p.TotalPages
	case shown > 0:
		return shown
	default:
		return model.DefaultPageSize
	}
}

func fetchPage[T any](ctx context.Context, c *Client, path string, q model.ListQuery) (model.Page[T], error) {
	env, err := c.call(c.request(ctx).SetQueryParams(queryParams(q)), http.MethodGet, path)
	if err != nil {
		return model.Page[T]{}, err
	}
	page, err := decodePage[T](env.Data)
	if err != nil {
		return page, &APIError{Message: "Unexpected response from server", Err: err}
	}
	return page, nil
}

func queryParams(q model.ListQuery) map[string]string {
	q = q.Normalize()
	params := map[string]string{
		"page":  strconv.Itoa(q.Page),
		"limit": strconv.Itoa(q.Limit),
	}
	set := func(key, value string) {
		if value != "" {
			params[key] = value
		}
	}
	set("search", q.Search)
	set("status", q.Status)
	set("priority", q.Priority)
	set("category", q.Category)
	set("date", q.Date)
	set("role", q.Role)
	if q.WalkIn != nil {
		params["walkIn"] = strconv.FormatBool(*q.WalkIn)
	}
	return params
}
