package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/hms/internal/blob"
	"github.com/jwalitptl/hms/internal/email"
	authhandler "github.com/jwalitptl/hms/internal/handler/auth"
	"github.com/jwalitptl/hms/internal/handler/health"
	labhandler "github.com/jwalitptl/hms/internal/handler/lab"
	prometheushandler "github.com/jwalitptl/hms/internal/handler/prometheus"
	userhandler "github.com/jwalitptl/hms/internal/handler/user"
	xrayhandler "github.com/jwalitptl/hms/internal/handler/xray"
	"github.com/jwalitptl/hms/internal/middleware"
	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/repository/memory"
	redisrepo "github.com/jwalitptl/hms/internal/repository/redis"
	authService "github.com/jwalitptl/hms/internal/service/auth"
	labService "github.com/jwalitptl/hms/internal/service/lab"
	userService "github.com/jwalitptl/hms/internal/service/user"
	xrayService "github.com/jwalitptl/hms/internal/service/xray"
	"github.com/jwalitptl/hms/pkg/auth"
	"github.com/jwalitptl/hms/pkg/metrics"
	"github.com/jwalitptl/hms/pkg/security"
)

const adminEmail = "admin@hms.test"

var pngData = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testEnv struct {
	srv   *httptest.Server
	mail  *email.Recorder
	blobs *blob.Memory
	admin *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)
	users := memory.NewUserRepository()
	mail := email.NewRecorder()
	blobs := blob.NewMemory()

	authSvc := authService.NewService(users, redisrepo.NewTokenRepository(rdb, m),
		security.NewBcryptHasher(bcrypt.MinCost), auth.NewJWTService("secret", "hms-test", time.Hour),
		mail, m, zerolog.Nop(), authService.Config{AdminEmails: []string{adminEmail}})
	xraySvc := xrayService.NewService(memory.NewXrayRepository(), users, blobs, m, zerolog.Nop())

	r := NewRouter(
		middleware.NewAuthMiddleware(authSvc, "token"),
		Handlers{
			Auth:    authhandler.NewHandler(authSvc, authhandler.CookieConfig{Name: "token"}),
			User:    userhandler.NewHandler(userService.NewService(users, authSvc)),
			Lab:     labhandler.NewHandler(labService.NewService(memory.NewLabRepository(), users, m, zerolog.Nop())),
			Xray:    xrayhandler.NewHandler(xraySvc),
			Health:  health.NewHandler(map[string]health.Checker{"redis": health.CheckerFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })}),
			Metrics: prometheushandler.New(reg),
		},
		m,
		RouterConfig{
			CORSConfig: middleware.DefaultCORSConfig([]string{"http://localhost:5173"}),
			Security:   middleware.DefaultSecurityConfig(false),
			SizeLimit:  middleware.DefaultSizeLimitConfig(),
		},
	)

	env := &testEnv{srv: httptest.NewServer(r.Engine()), mail: mail, blobs: blobs}
	t.Cleanup(env.srv.Close)
	env.admin = env.login(t, adminEmail, "")
	return env
}

func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func (e *testEnv) do(t *testing.T, c *http.Client, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(t, c, req)
}

func (e *testEnv) send(t *testing.T, c *http.Client, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type userData struct {
	User model.User `json:"user"`
}

// login registers and verifies addr, gives it role, and returns a client
// holding its session cookie.
func (e *testEnv) login(t *testing.T, addr string, role model.Role) *http.Client {
	t.Helper()
	c := e.client(t)

	status, env := e.do(t, c, http.MethodPost, "/user/register", map[string]interface{}{
		"name": "User " + addr, "email": addr, "password": "password123",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	u := decode[userData](t, env.Data).User

	msg, ok := e.mail.Last(addr)
	require.True(t, ok)
	status, env = e.do(t, c, http.MethodPost, "/user/verifyEmail", map[string]string{"email": addr, "code": msg.Code})
	require.Equal(t, http.StatusOK, status, env.Message)

	if role != "" && role != u.Role {
		status, env = e.do(t, e.admin, http.MethodPut, "/user/"+u.ID, map[string]string{"role": string(role)})
		require.Equal(t, http.StatusOK, status, env.Message)
	}

	status, env = e.do(t, c, http.MethodPost, "/user/login", map[string]string{"email": addr, "password": "password123"})
	require.Equal(t, http.StatusOK, status, env.Message)
	return c
}

func (e *testEnv) me(t *testing.T, c *http.Client) model.User {
	t.Helper()
	status, env := e.do(t, c, http.MethodGet, "/user/me", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	return decode[userData](t, env.Data).User
}

func TestAuthLifecycle(t *testing.T) {
	e := newTestEnv(t)
	c := e.client(t)

	status, env := e.do(t, c, http.MethodPost, "/user/register", map[string]string{
		"name": "Asha", "email": "asha@hms.test", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, model.RolePatient, decode[userData](t, env.Data).User.Role)

	status, env = e.do(t, c, http.MethodPost, "/user/login", map[string]string{"email": "asha@hms.test", "password": "password123"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, authService.MsgNotVerified, env.Message)

	status, env = e.do(t, c, http.MethodPost, "/user/verifyEmail", map[string]string{"email": "asha@hms.test", "code": "12345"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "code must be 6 characters long", env.Message)

	msg, _ := e.mail.Last("asha@hms.test")
	status, _ = e.do(t, c, http.MethodPost, "/user/verifyEmail", map[string]string{"email": "asha@hms.test", "code": msg.Code})
	require.Equal(t, http.StatusOK, status)

	status, _ = e.do(t, c, http.MethodPost, "/user/login", map[string]string{"email": "asha@hms.test", "password": "password123"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "asha@hms.test", e.me(t, c).Email)

	status, _ = e.do(t, c, http.MethodGet, "/user/logout", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = e.do(t, c, http.MethodGet, "/user/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPasswordReset(t *testing.T) {
	e := newTestEnv(t)
	e.login(t, "ravi@hms.test", "")
	c := e.client(t)

	status, _ := e.do(t, c, http.MethodPost, "/user/forgot", map[string]string{"email": "ravi@hms.test"})
	require.Equal(t, http.StatusOK, status)
	msg, _ := e.mail.Last("ravi@hms.test")

	status, env := e.do(t, c, http.MethodPost, "/user/verifyForgot", map[string]string{"email": "ravi@hms.test", "code": msg.Code})
	require.Equal(t, http.StatusOK, status)
	ticket := decode[model.ResetTicket](t, env.Data)

	status, _ = e.do(t, c, http.MethodPost, "/user/newPassword", map[string]string{
		"email": "ravi@hms.test", "token": ticket.Token, "password": "brand-new-pass",
	})
	require.Equal(t, http.StatusOK, status)

	status, _ = e.do(t, c, http.MethodPost, "/user/login", map[string]string{"email": "ravi@hms.test", "password": "brand-new-pass"})
	assert.Equal(t, http.StatusOK, status)
}

func TestRoleEnforcement(t *testing.T) {
	e := newTestEnv(t)
	patient := e.login(t, "patient@hms.test", "")
	doctor := e.login(t, "doctor@hms.test", model.RoleDoctor)
	labTech := e.login(t, "lab@hms.test", model.RoleLab)
	reception := e.login(t, "reception@hms.test", model.RoleReception)

	cases := []struct {
		name   string
		client *http.Client
		method string
		path   string
		want   int
	}{
		{"anonymous lab list", e.client(t), http.MethodGet, "/lab", http.StatusUnauthorized},
		{"patient lab list", patient, http.MethodGet, "/lab", http.StatusForbidden},
		{"doctor lab list", doctor, http.MethodGet, "/lab", http.StatusOK},
		{"lab lab list", labTech, http.MethodGet, "/lab", http.StatusOK},
		{"doctor lab create", doctor, http.MethodPost, "/lab", http.StatusForbidden},
		{"lab xray list", labTech, http.MethodGet, "/xray", http.StatusForbidden},
		{"reception walk-ins", reception, http.MethodGet, "/xray/walkin/all", http.StatusOK},
		{"doctor walk-ins", doctor, http.MethodGet, "/xray/walkin/all", http.StatusForbidden},
		{"doctor user admin", doctor, http.MethodGet, "/user/all", http.StatusForbidden},
		{"admin user admin", e.admin, http.MethodGet, "/user/all", http.StatusOK},
		{"patient lookup by patient", patient, http.MethodGet, "/user/patient/PAT-AAAAAA", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := e.do(t, tc.client, tc.method, tc.path, nil)
			assert.Equal(t, tc.want, status)
		})
	}
}

func TestLabRecords(t *testing.T) {
	e := newTestEnv(t)
	patientUser := e.me(t, e.login(t, "patient@hms.test", ""))
	labTech := e.login(t, "lab@hms.test", model.RoleLab)

	status, env := e.do(t, labTech, http.MethodGet, "/user/patient/"+strings.ToLower(patientUser.UniqueID), nil)
	require.Equal(t, http.StatusOK, status, env.Message)

	draft := model.LabDraft{
		PatientID: patientUser.ID, PatientName: patientUser.Name, PatientUniqueID: patientUser.UniqueID,
		DoctorName: "Dr Mehta", TestName: "CBC", Category: "Hematology",
		Parameters: model.Parameters{{Name: "Hemoglobin", Value: "13.1", Unit: "g/dL"}},
	}
	status, env = e.do(t, labTech, http.MethodPost, "/lab", draft)
	require.Equal(t, http.StatusCreated, status, env.Message)
	rec := decode[model.LabRecord](t, env.Data)
	assert.Equal(t, model.StatusPending, rec.Status)

	draft.TestName = ""
	status, env = e.do(t, labTech, http.MethodPost, "/lab", draft)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "testName is required", env.Message)

	status, env = e.do(t, labTech, http.MethodGet, "/lab?page=1&limit=5&search=cbc", nil)
	require.Equal(t, http.StatusOK, status)
	page := decode[model.Page[model.LabRecord]](t, env.Data)
	require.Len(t, page.Records, 1)
	assert.Equal(t, model.Pagination{CurrentPage: 1, TotalPages: 1, TotalRecords: 1, Limit: 5}, page.Pagination)

	status, env = e.do(t, labTech, http.MethodPut, "/lab/"+rec.ID, map[string]string{"status": "Completed"})
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.Equal(t, model.StatusCompleted, decode[model.LabRecord](t, env.Data).Status)

	status, _ = e.do(t, labTech, http.MethodDelete, "/lab/"+rec.ID, nil)
	require.Equal(t, http.StatusOK, status)
	status, env = e.do(t, labTech, http.MethodGet, "/lab/"+rec.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "lab record not found", env.Message)
}

func xrayForm(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, data := range files {
		part, err := w.CreateFormFile("images[]", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func (e *testEnv) postForm(t *testing.T, c *http.Client, path string, fields map[string]string, files map[string][]byte) (int, envelope) {
	t.Helper()
	body, contentType := xrayForm(t, fields, files)
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	return e.send(t, c, req)
}

func TestXrayUploadAndWalkIns(t *testing.T) {
	e := newTestEnv(t)
	patientUser := e.me(t, e.login(t, "patient@hms.test", ""))
	radiology := e.login(t, "xray@hms.test", model.RoleXray)
	reception := e.login(t, "reception@hms.test", model.RoleReception)

	fields := map[string]string{
		"patientId": patientUser.ID, "patientName": patientUser.Name, "patientUniqueId": patientUser.UniqueID,
		"testName": "Chest PA", "category": "Chest", "priority": "Urgent", "notes": `["frontal"]`,
	}
	status, env := e.postForm(t, radiology, "/xray", fields, map[string][]byte{"chest.png": pngData})
	require.Equal(t, http.StatusCreated, status, env.Message)
	rec := decode[model.XrayRecord](t, env.Data)
	require.Len(t, rec.Images, 1)
	assert.Equal(t, "frontal", rec.Images[0].Note)
	assert.Equal(t, model.PriorityUrgent, rec.Priority)

	resp, err := radiology.Get(e.srv.URL + rec.Images[0].URL)
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, pngData, data)

	status, env = e.postForm(t, radiology, "/xray", fields, map[string][]byte{"scan.gif": []byte("GIF89a......")})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Message, "Only JPEG, PNG and BMP")

	status, env = e.postForm(t, reception, "/xray/walkin", map[string]string{
		"patientName": "Walk In", "testName": "Knee AP", "category": "Extremity",
	}, map[string][]byte{"knee.png": pngData})
	require.Equal(t, http.StatusCreated, status, env.Message)
	walkIn := decode[model.XrayRecord](t, env.Data)
	assert.True(t, walkIn.WalkIn)
	assert.True(t, strings.HasPrefix(walkIn.PatientUniqueID, "WALKIN-"))

	status, env = e.do(t, reception, http.MethodGet, "/xray/walkin/statistics", nil)
	require.Equal(t, http.StatusOK, status)
	stats := decode[model.WalkInStatistics](t, env.Data)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Pending)

	status, env = e.do(t, reception, http.MethodGet, "/xray/walkin/search?search=knee", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[model.Page[model.XrayRecord]](t, env.Data).Records, 1)

	// registered-patient records are not reachable through walk-in routes
	status, _ = e.do(t, reception, http.MethodGet, "/xray/walkin/"+rec.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = e.do(t, radiology, http.MethodDelete, "/xray/"+rec.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, e.blobs.Len())
}

func TestHealthAndMetrics(t *testing.T) {
	e := newTestEnv(t)

	resp, err := http.Get(e.srv.URL + "/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(e.srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "test_requests_total")
	assert.Contains(t, string(body), `path="/user/login"`)
}

func TestUnknownRoute(t *testing.T) {
	e := newTestEnv(t)
	status, env := e.do(t, e.client(t), http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "error", env.Status)
}
