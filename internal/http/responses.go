package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"account-service/internal/domain"
)

// UserResponse is the representation of an identified user. It never
// carries the password hash.
type UserResponse struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	EducationLevel string `json:"education_level"`
	FieldOfStudy   *int64 `json:"field_of_study"`
	IsStaff        bool   `json:"is_staff"`
	IsAuthor       bool   `json:"is_author"`
	AvatarURL      string `json:"avatar_url,omitempty"`
}

// AnonymousUserResponse is the representation of an anonymous user.
type AnonymousUserResponse struct {
	IsAnonymous bool   `json:"is_anonymous"`
	AnonymousID string `json:"anonymous_id"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type FieldResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func (h *Handler) principalToResponse(c *gin.Context, p *domain.Principal) any {
	if p.Anonymous != nil {
		return AnonymousUserResponse{
			IsAnonymous: true,
			AnonymousID: p.Anonymous.AnonymousID.String(),
		}
	}

	ident := p.Identified
	resp := UserResponse{
		Email:          ident.Email,
		Name:           p.Name,
		FirstName:      ident.FirstName,
		LastName:       ident.LastName,
		EducationLevel: string(ident.EducationLevel),
		FieldOfStudy:   ident.FieldOfStudyID,
		IsStaff:        ident.IsStaff,
		IsAuthor:       ident.IsAuthor,
	}
	if h.avatars != nil {
		url, err := h.avatars.URL(c.Request.Context(), p)
		if err != nil {
			h.logger.WithField("user_id", p.ID).Warnf("avatar url: %v", err)
		}
		resp.AvatarURL = url
	}
	return resp
}

func fieldToResponse(field domain.FieldOfStudy) FieldResponse {
	return FieldResponse{
		ID:        field.ID,
		Name:      field.Name,
		CreatedAt: field.CreatedAt.Format(time.RFC3339),
	}
}
