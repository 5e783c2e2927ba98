package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"account-service/internal/domain"
	"account-service/internal/service"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users   service.UserService
	tokens  service.TokenService
	fields  service.FieldService
	avatars service.AvatarService
	logger  *logrus.Logger
}

func NewHandler(users service.UserService, tokens service.TokenService, fields service.FieldService, avatars service.AvatarService, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	useJSONFieldNames()
	return &Handler{
		users:   users,
		tokens:  tokens,
		fields:  fields,
		avatars: avatars,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.HandleMethodNotAllowed = true
	router.NoMethod(h.methodNotAllowed)
	router.Use(requestLogger(h.logger), corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})

	users := router.Group("/users")
	{
		users.GET("", h.listUsers)
		users.POST("/create", h.createUser)
		users.POST("/create-anonymous", h.createAnonymous)
		users.POST("/token", h.obtainToken)
		users.POST("/token-anonymous", h.obtainAnonymousToken)

		me := users.Group("/me", h.requireAuth())
		me.GET("", h.getMe)
		me.PATCH("", h.updateMe)
		// resolved after authentication so unauthenticated callers see 401 first
		me.POST("", h.methodNotAllowed)
		me.PUT("", h.methodNotAllowed)
		me.DELETE("", h.methodNotAllowed)
		me.PUT("/avatar", h.uploadAvatar)
	}

	fields := router.Group("/fields")
	{
		fields.GET("", h.listFields)
		fields.POST("", h.requireAuth(), h.createField)
	}
}

func (h *Handler) methodNotAllowed(c *gin.Context) {
	h.respondError(c, service.ErrPermission)
}

type createUserRequest struct {
	Email          string `json:"email" binding:"required"`
	Password       string `json:"password" binding:"required"`
	Name           string `json:"name"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	EducationLevel string `json:"education_level"`
	FieldOfStudy   *int64 `json:"field_of_study"`
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type anonymousTokenRequest struct {
	AnonymousID string `json:"anonymous_id"`
}

type updateMeRequest struct {
	Name           *string         `json:"name"`
	Password       *string         `json:"password"`
	FirstName      *string         `json:"first_name"`
	LastName       *string         `json:"last_name"`
	EducationLevel *string         `json:"education_level"`
	FieldOfStudy   json.RawMessage `json:"field_of_study"`
	Email          *string         `json:"email"`
	IsAnonymous    *bool           `json:"is_anonymous"`
	IsStaff        *bool           `json:"is_staff"`
	IsAuthor       *bool           `json:"is_author"`
	AnonymousID    *string         `json:"anonymous_id"`
}

type createFieldRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	principal, err := h.users.CreateIdentified(c.Request.Context(), service.RegisterInput{
		Email:          req.Email,
		Password:       req.Password,
		Name:           req.Name,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		EducationLevel: domain.EducationLevel(req.EducationLevel),
		FieldOfStudyID: req.FieldOfStudy,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.principalToResponse(c, principal))
}

// createAnonymous ignores the request body: nothing a client sends can shape
// an anonymous identity.
func (h *Handler) createAnonymous(c *gin.Context) {
	principal, err := h.users.CreateAnonymous(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.principalToResponse(c, principal))
}

func (h *Handler) obtainToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	principal, err := h.users.VerifyIdentified(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.issueToken(c, principal)
}

func (h *Handler) obtainAnonymousToken(c *gin.Context) {
	var req anonymousTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	principal, err := h.users.VerifyAnonymous(c.Request.Context(), req.AnonymousID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.issueToken(c, principal)
}

func (h *Handler) issueToken(c *gin.Context, principal *domain.Principal) {
	token, err := h.tokens.Issue(c.Request.Context(), principal)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (h *Handler) getMe(c *gin.Context) {
	principal := principalFrom(c)
	c.JSON(http.StatusOK, h.principalToResponse(c, principal))
}

func (h *Handler) updateMe(c *gin.Context) {
	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondBindError(c, err)
		return
	}

	patch, err := req.toPatch()
	if err != nil {
		h.respondError(c, err)
		return
	}

	principal, err := h.users.Update(c.Request.Context(), principalFrom(c).ID, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.principalToResponse(c, principal))
}

func (h *Handler) uploadAvatar(c *gin.Context) {
	header, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field avatar is required"})
		return
	}
	file, err := header.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer file.Close()

	principal, err := h.avatars.Upload(c.Request.Context(), principalFrom(c).ID, service.AvatarUpload{
		Body:        file,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.principalToResponse(c, principal))
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.ListIdentified(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]any, len(users))
	for i := range users {
		resp[i] = h.principalToResponse(c, &users[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listFields(c *gin.Context) {
	fields, err := h.fields.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]FieldResponse, len(fields))
	for i := range fields {
		resp[i] = fieldToResponse(fields[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) createField(c *gin.Context) {
	var req createFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	field, err := h.fields.Create(c.Request.Context(), principalFrom(c), req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fieldToResponse(*field))
}

func (r updateMeRequest) toPatch() (service.ProfilePatch, error) {
	patch := service.ProfilePatch{
		Name:        r.Name,
		Password:    r.Password,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		IsAnonymous: r.IsAnonymous,
		IsStaff:     r.IsStaff,
		IsAuthor:    r.IsAuthor,
		AnonymousID: r.AnonymousID,
	}
	if r.EducationLevel != nil {
		level := domain.EducationLevel(*r.EducationLevel)
		patch.EducationLevel = &level
	}

	// absent leaves the reference alone, null clears it
	switch raw := bytes.TrimSpace(r.FieldOfStudy); {
	case len(raw) == 0:
	case bytes.Equal(raw, []byte("null")):
		patch.ClearFieldOfStudy = true
	default:
		var id int64
		if err := json.Unmarshal(raw, &id); err != nil {
			return service.ProfilePatch{}, &service.ValidationError{
				Fields: map[string]string{"field_of_study": "incorrect type, expected pk value"},
			}
		}
		patch.FieldOfStudyID = &id
	}
	return patch, nil
}
