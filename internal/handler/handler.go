// Package handler exposes the portal over JSON. Each mutating endpoint calls
// one domain operation and dispatches the matching store action only when
// that operation succeeded.
package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/pkg/errors"

	"schoolportal/internal/auth"
	"schoolportal/internal/model"
	"schoolportal/internal/portal"
	"schoolportal/internal/remote"
	"schoolportal/internal/state"
)

// Tokens configures the bearer tokens handed out at login.
type Tokens struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Handler struct {
	svc    *portal.Service
	store  *state.Store
	tokens Tokens
}

func New(svc *portal.Service, store *state.Store, tokens Tokens) *Handler {
	return &Handler{svc: svc, store: store, tokens: tokens}
}

// Register mounts every route under /v1. loginLimit guards the login
// endpoint and may be nil.
func (h *Handler) Register(r gin.IRouter, loginLimit gin.HandlerFunc) {
	v1 := r.Group("/v1")
	login := []gin.HandlerFunc{h.Login}
	if loginLimit != nil {
		login = append([]gin.HandlerFunc{loginLimit}, login...)
	}
	v1.POST("/login", login...)
	v1.POST("/refresh", h.Refresh)

	authed := v1.Group("", auth.Bearer(h.tokens.SigningKey, h.tokens.Issuer))
	authed.POST("/logout", h.Logout)
	authed.GET("/me", h.Me)
	authed.GET("/state", h.State)
	authed.POST("/reload", auth.RequireRole(string(model.RoleAdmin)), h.Reload)

	students := authed.Group("/students", auth.Require(auth.CapStudents))
	students.POST("", h.CreateStudent)
	students.PUT("/:id", h.UpdateStudent)
	students.DELETE("/:id", h.DeleteStudent)

	teachers := authed.Group("/teachers", auth.Require(auth.CapTeachers))
	teachers.POST("", h.CreateTeacher)
	teachers.PUT("/:id", h.UpdateTeacher)
	teachers.DELETE("/:id", h.DeleteTeacher)

	announcements := authed.Group("/announcements", auth.Require(auth.CapAnnouncements))
	announcements.POST("", h.CreateAnnouncement)
	announcements.PATCH("/:id", h.UpdateAnnouncement)
	announcements.DELETE("/:id", h.DeleteAnnouncement)

	events := authed.Group("/events", auth.Require(auth.CapEvents))
	events.POST("", h.CreateEvent)
	events.PATCH("/:id", h.UpdateEvent)
	events.DELETE("/:id", h.DeleteEvent)

	routes := authed.Group("/routes", auth.Require(auth.CapTransport))
	routes.POST("", h.CreateRoute)
	routes.PATCH("/:id", h.UpdateRoute)
	routes.DELETE("/:id", h.DeleteRoute)

	exams := authed.Group("/exams", auth.Require(auth.CapExams))
	exams.POST("", h.CreateExam)
	exams.PATCH("/:id", h.UpdateExam)
	exams.DELETE("/:id", h.DeleteExam)
	exams.PUT("/results", h.SaveResults)

	authed.GET("/results", auth.Require(auth.CapResults), h.ListResults)

	attendance := authed.Group("/attendance/:date", auth.Require(auth.CapAttendance))
	attendance.GET("", h.GetAttendance)
	attendance.PUT("", h.SaveAttendance)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	user, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.Login{User: user})
	h.issue(c, user)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
		return
	}
	claims, err := auth.Parse(req.RefreshToken, h.tokens.SigningKey, h.tokens.Issuer)
	if err != nil || !claims.Refresh {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	// Role and permissions come from the current profile, not the old token.
	user, err := h.svc.GetProfile(c.Request.Context(), claims.Subject)
	if remote.IsNotFound(err) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.issue(c, user)
}

func (h *Handler) issue(c *gin.Context, user model.User) {
	tokens, err := auth.Issue(auth.Identity{
		Subject:     user.ID,
		Role:        string(user.Role),
		Username:    user.Username,
		Permissions: user.Permissions,
	}, h.tokens.Issuer, h.tokens.SigningKey, h.tokens.AccessTTL, h.tokens.RefreshTTL)
	if err != nil {
		log.Printf("issue token for %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":          user,
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	h.store.Dispatch(c.Request.Context(), state.Logout{})
	c.Status(http.StatusNoContent)
}

func (h *Handler) Me(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	user, err := h.svc.GetProfile(c.Request.Context(), claims.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.State())
}

// Reload lists every collection again and replaces the store contents.
func (h *Handler) Reload(c *gin.Context) {
	if err := h.store.Init(c.Request.Context(), h.svc); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.store.State())
}

// fail converts err into the single user-visible error response.
func (h *Handler) fail(c *gin.Context, err error) {
	var (
		verr *portal.ValidationError
		serr *portal.SagaError
		terr *remote.TransportError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.FieldMap()})
	case errors.Is(err, portal.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case remote.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &serr):
		log.Printf("%v", serr)
		c.JSON(http.StatusBadGateway, gin.H{"error": serr.Error(), "steps": serr.Report})
	case errors.As(err, &terr):
		log.Printf("%v", terr)
		c.JSON(http.StatusBadGateway, gin.H{"error": terr.Error()})
	default:
		log.Printf("unexpected error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
