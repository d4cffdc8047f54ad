package sessions

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/callroom/broker/internal/middleware"
	"github.com/callroom/broker/internal/models"
	"github.com/callroom/broker/pkg/response"
)

// CreateRequest is the body for POST /api/sessions/create. user_id, user_name and
// session_name are accepted as aliases, and every field also in camelCase.
type CreateRequest struct {
	HostID           UserID `json:"host_id"`
	HostIDCamel      UserID `json:"hostId"`
	UserID           UserID `json:"user_id"`
	UserIDCamel      UserID `json:"userId"`
	HostName         string `json:"host_name"`
	HostNameCamel    string `json:"hostName"`
	UserName         string `json:"user_name"`
	UserNameCamel    string `json:"userName"`
	Title            string `json:"title"`
	SessionName      string `json:"session_name"`
	SessionNameCamel string `json:"sessionName"`
	Provider         string `json:"provider"`
}

func (r CreateRequest) input() CreateInput {
	host := r.HostID.or(r.HostIDCamel).or(r.UserID).or(r.UserIDCamel)
	return CreateInput{
		HostID:      host.Value,
		HostNumeric: host.Numeric,
		HostName:    firstNonEmpty(r.HostName, r.HostNameCamel, r.UserName, r.UserNameCamel),
		Title:       firstNonEmpty(r.Title, r.SessionName, r.SessionNameCamel),
		Provider:    r.Provider,
	}
}

// JoinRequest is the body for POST /api/sessions/:id/join.
type JoinRequest struct {
	UserID        UserID      `json:"user_id"`
	UserIDCamel   UserID      `json:"userId"`
	UserName      string      `json:"user_name"`
	UserNameCamel string      `json:"userName"`
	Role          models.Role `json:"role"`
}

func (r JoinRequest) input() JoinInput {
	user := r.UserID.or(r.UserIDCamel)
	return JoinInput{
		UserID:   user.Value,
		Numeric:  user.Numeric,
		UserName: firstNonEmpty(r.UserName, r.UserNameCamel),
		Role:     r.Role,
	}
}

// UserRequest is the body for POST /api/sessions/:id/end and /leave.
type UserRequest struct {
	UserID      UserID `json:"user_id"`
	UserIDCamel UserID `json:"userId"`
}

func (r UserRequest) user() string {
	return r.UserID.or(r.UserIDCamel).Value
}

// Handler serves the session HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a session handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the session routes on rg, normally /api/sessions.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/create", h.Create)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/join", h.Join)
	rg.POST("/:id/leave", h.Leave)
	rg.POST("/:id/end", h.End)
}

// Create handles POST /api/sessions/create.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	in := req.input()
	if in.HostID != "" && !middleware.ActsAs(c, in.HostID) {
		response.Fail(c, http.StatusForbidden, "host id does not match the authenticated user")
		return
	}
	view, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, view)
}

// Get handles GET /api/sessions/:id.
func (h *Handler) Get(c *gin.Context) {
	detail, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, detail)
}

// Join handles POST /api/sessions/:id/join.
func (h *Handler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	in := req.input()
	if in.UserID != "" && !middleware.ActsAs(c, in.UserID) {
		response.Fail(c, http.StatusForbidden, "user id does not match the authenticated user")
		return
	}
	view, err := h.svc.Join(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, view)
}

// Leave handles POST /api/sessions/:id/leave.
func (h *Handler) Leave(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	userID := req.user()
	if userID != "" && !middleware.ActsAs(c, userID) {
		response.Fail(c, http.StatusForbidden, "user id does not match the authenticated user")
		return
	}
	if err := h.svc.Leave(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"session_id": c.Param("id"), "user_id": userID, "status": models.ParticipantLeft})
}

// End handles POST /api/sessions/:id/end (host only).
func (h *Handler) End(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	userID := req.user()
	if userID != "" && !middleware.ActsAs(c, userID) {
		response.Fail(c, http.StatusForbidden, "user id does not match the authenticated user")
		return
	}
	res, err := h.svc.End(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, res)
}

// ListProviders handles GET /api/providers.
func (h *Handler) ListProviders(c *gin.Context) {
	response.OK(c, h.svc.Providers())
}

func (h *Handler) writeError(c *gin.Context, err error) {
	response.Error(c, StatusFor(err), err)
}

// StatusFor maps an error of the session taxonomy onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrProvider):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
