package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	authhandler "github.com/jwalitptl/hms/internal/handler/auth"
	"github.com/jwalitptl/hms/internal/handler/health"
	labhandler "github.com/jwalitptl/hms/internal/handler/lab"
	"github.com/jwalitptl/hms/internal/handler/prometheus"
	userhandler "github.com/jwalitptl/hms/internal/handler/user"
	xrayhandler "github.com/jwalitptl/hms/internal/handler/xray"
	"github.com/jwalitptl/hms/internal/middleware"
	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/pkg/httputil"
	"github.com/jwalitptl/hms/pkg/metrics"
)

// Who may reach each area.
var (
	LabReaders    = []model.Role{model.RoleAdmin, model.RoleDoctor, model.RoleLab}
	LabWriters    = []model.Role{model.RoleAdmin, model.RoleLab}
	XrayReaders   = []model.Role{model.RoleAdmin, model.RoleDoctor, model.RoleXray}
	XrayWriters   = []model.Role{model.RoleAdmin, model.RoleXray}
	WalkInStaff   = []model.Role{model.RoleAdmin, model.RoleReception, model.RoleXray}
	ImageViewers  = []model.Role{model.RoleAdmin, model.RoleDoctor, model.RoleReception, model.RoleXray}
	UserAdmins    = []model.Role{model.RoleAdmin}
	PatientLookup = []model.Role{model.RoleAdmin, model.RoleReception, model.RoleDoctor, model.RoleLab, model.RoleXray}
)

type RouterConfig struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
	Security   middleware.SecurityConfig
	SizeLimit  middleware.SizeLimitConfig
	Debug      bool
}

// Handlers are the route sets served by the API.
type Handlers struct {
	Auth    *authhandler.Handler
	User    *userhandler.Handler
	Lab     *labhandler.Handler
	Xray    *xrayhandler.Handler
	Health  *health.Handler
	Metrics *prometheus.Handler
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	limiter  *middleware.RateLimiter
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, m *metrics.Metrics, config RouterConfig) *Router {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.UseJSONFieldNames()

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.Metrics(m),
		middleware.CORS(config.CORSConfig),
		middleware.SecurityHeaders(config.Security),
		middleware.SizeLimit(config.SizeLimit),
	)
	engine.NoRoute(func(c *gin.Context) {
		httputil.AbortWithMessage(c, http.StatusNotFound, "Route not found")
	})

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
	}
	if config.RateLimit > 0 {
		r.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
	}
	r.setup()
	return r
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setup() {
	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(r.engine)
	}
	if r.handlers.Metrics != nil {
		r.engine.GET("/metrics", r.handlers.Metrics.Handler())
	}

	authn := r.auth.Authenticate()
	guard := func(g *gin.RouterGroup, roles []model.Role) *gin.RouterGroup {
		return g.Group("", authn, middleware.RequireRoles(roles...))
	}

	user := r.engine.Group("/user")
	public := user.Group("")
	if r.limiter != nil {
		public.Use(r.limiter.RateLimit())
	}
	r.handlers.Auth.RegisterRoutes(public, user.Group("", authn))
	r.handlers.User.RegisterRoutes(guard(user, UserAdmins), guard(user, PatientLookup))

	lab := r.engine.Group("/lab")
	r.handlers.Lab.RegisterRoutes(guard(lab, LabReaders), guard(lab, LabWriters))

	xray := r.engine.Group("/xray")
	r.handlers.Xray.RegisterRoutes(xrayhandler.Routes{
		Read:   guard(xray, XrayReaders),
		Write:  guard(xray, XrayWriters),
		WalkIn: guard(xray, WalkInStaff),
		Images: guard(xray, ImageViewers),
	})
}
