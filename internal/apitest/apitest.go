// Package apitest runs the full API in-process over memory repositories
// so client-side packages can be tested against the real routes.
package apitest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
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
	"github.com/jwalitptl/hms/internal/repository"
	"github.com/jwalitptl/hms/internal/repository/memory"
	redisrepo "github.com/jwalitptl/hms/internal/repository/redis"
	"github.com/jwalitptl/hms/internal/router"
	authService "github.com/jwalitptl/hms/internal/service/auth"
	labService "github.com/jwalitptl/hms/internal/service/lab"
	userService "github.com/jwalitptl/hms/internal/service/user"
	xrayService "github.com/jwalitptl/hms/internal/service/xray"
	"github.com/jwalitptl/hms/pkg/auth"
	"github.com/jwalitptl/hms/pkg/metrics"
	"github.com/jwalitptl/hms/pkg/security"
)

const (
	AdminEmail = "admin@hms.test"
	Password   = "password123"
)

// PNG is the smallest body the upload check accepts as a PNG image.
var PNG = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

// GIF is a GIF header, which the upload check rejects.
var GIF = append([]byte("GIF89a\x01\x00\x01\x00\x80\x00\x00"), make([]byte, 32)...)

// Server is a running API.
type Server struct {
	URL   string
	Mail  *email.Recorder
	Blobs *blob.Memory
	Users repository.UserRepository

	hasher   security.PasswordHasher
	requests atomic.Int64
}

// Start runs the API until the test ends.
func Start(t testing.TB) *Server {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("apitest", reg)
	s := &Server{
		Mail:   email.NewRecorder(),
		Blobs:  blob.NewMemory(),
		Users:  memory.NewUserRepository(),
		hasher: security.NewBcryptHasher(bcrypt.MinCost),
	}

	authSvc := authService.NewService(s.Users, redisrepo.NewTokenRepository(rdb, m), s.hasher,
		auth.NewJWTService("apitest-secret", "hms-apitest", time.Hour),
		s.Mail, m, zerolog.Nop(), authService.Config{AdminEmails: []string{AdminEmail}})

	r := router.NewRouter(
		middleware.NewAuthMiddleware(authSvc, "token"),
		router.Handlers{
			Auth:    authhandler.NewHandler(authSvc, authhandler.CookieConfig{Name: "token"}),
			User:    userhandler.NewHandler(userService.NewService(s.Users, authSvc)),
			Lab:     labhandler.NewHandler(labService.NewService(memory.NewLabRepository(), s.Users, m, zerolog.Nop())),
			Xray:    xrayhandler.NewHandler(xrayService.NewService(memory.NewXrayRepository(), s.Users, s.Blobs, m, zerolog.Nop())),
			Health:  health.NewHandler(map[string]health.Checker{}),
			Metrics: prometheushandler.New(reg),
		},
		m,
		router.RouterConfig{
			CORSConfig: middleware.DefaultCORSConfig(nil),
			Security:   middleware.DefaultSecurityConfig(false),
			SizeLimit:  middleware.DefaultSizeLimitConfig(),
		},
	)

	engine := r.Engine()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.requests.Add(1)
		engine.ServeHTTP(w, req)
	}))
	t.Cleanup(srv.Close)
	s.URL = srv.URL
	return s
}

// Requests is the number of requests served so far.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Seed stores a verified account with role and password Password.
// Patients get a unique ID.
func (s *Server) Seed(t testing.TB, addr string, role model.Role) *model.User {
	t.Helper()

	hash, err := s.hasher.Hash(Password)
	require.NoError(t, err)

	u := &model.User{
		Name:         "User " + addr,
		Email:        addr,
		PasswordHash: hash,
		Role:         role,
		IsVerified:   true,
		Age:          40,
		Gender:       "female",
	}
	if role == model.RolePatient {
		u.UniqueID, err = security.ReadableID("PAT-", 6)
		require.NoError(t, err)
	}
	require.NoError(t, s.Users.Create(context.Background(), u))
	return u
}

// Code returns the last emailed code sent to addr.
func (s *Server) Code(t testing.TB, addr string) string {
	t.Helper()
	msg, ok := s.Mail.Last(addr)
	require.True(t, ok, "no mail sent to %s", addr)
	return msg.Code
}
