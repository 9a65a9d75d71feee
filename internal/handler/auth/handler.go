package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hms/internal/handler"
	"github.com/jwalitptl/hms/internal/middleware"
	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/service/auth"
	"github.com/jwalitptl/hms/pkg/httputil"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

type Handler struct {
	svc    *auth.Service
	cookie CookieConfig
}

func NewHandler(svc *auth.Service, cookie CookieConfig) *Handler {
	return &Handler{svc: svc, cookie: cookie}
}

// RegisterRoutes mounts the public account routes on public and the
// session routes on private.
func (h *Handler) RegisterRoutes(public, private gin.IRoutes) {
	public.POST("/register", h.Register)
	public.POST("/login", h.Login)
	public.POST("/verifyEmail", h.VerifyEmail)
	public.POST("/resendVerification", h.ResendVerification)
	public.POST("/forgot", h.Forgot)
	public.POST("/verifyForgot", h.VerifyForgot)
	public.POST("/newPassword", h.NewPassword)

	private.GET("/me", h.Me)
	private.PUT("/update-profile", h.UpdateProfile)
	private.GET("/logout", h.Logout)
}

func userData(u *model.User) gin.H {
	return gin.H{"user": u}
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	user, err := h.svc.Register(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, "Registration successful. Please check your email for the verification code", userData(user))
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	user, token, claims, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	maxAge := int(time.Until(claims.ExpiresAt.Time).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, token, maxAge, "/", "", h.cookie.Secure, true)
	httputil.RespondWithSuccess(c, "Login successful", userData(user))
}

func (h *Handler) VerifyEmail(c *gin.Context) {
	var req model.VerifyEmailRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	user, err := h.svc.VerifyEmail(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Email verified successfully", userData(user))
}

func (h *Handler) ResendVerification(c *gin.Context) {
	var req model.ForgotRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if err := h.svc.ResendVerification(c.Request.Context(), req.Email); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "If the account exists, a new code has been sent", nil)
}

func (h *Handler) Forgot(c *gin.Context) {
	var req model.ForgotRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if err := h.svc.Forgot(c.Request.Context(), &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "If the account exists, a reset code has been sent", nil)
}

func (h *Handler) VerifyForgot(c *gin.Context) {
	var req model.VerifyForgotRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	ticket, err := h.svc.VerifyForgot(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Code verified", ticket)
}

func (h *Handler) NewPassword(c *gin.Context) {
	var req model.NewPasswordRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if err := h.svc.NewPassword(c.Request.Context(), &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Password updated successfully", nil)
}

func (h *Handler) Me(c *gin.Context) {
	httputil.RespondWithSuccess(c, "Authenticated", userData(middleware.CurrentUser(c)))
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req model.UpdateProfileRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	user, err := h.svc.UpdateProfile(c.Request.Context(), middleware.CurrentUser(c).ID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Profile updated successfully", userData(user))
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), middleware.CurrentClaims(c)); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	httputil.RespondWithSuccess(c, "Logged out successfully", nil)
}
