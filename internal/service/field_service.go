package service

import (
	"context"
	"errors"
	"strings"

	"account-service/internal/domain"
	"account-service/internal/repository"
)

// FieldService manages the field of study reference list.
type FieldService interface {
	Create(ctx context.Context, actor *domain.Principal, name string) (*domain.FieldOfStudy, error)
	List(ctx context.Context) ([]domain.FieldOfStudy, error)
}

type fieldService struct {
	fields repository.FieldRepository
}

func NewFieldService(fields repository.FieldRepository) FieldService {
	return &fieldService{fields: fields}
}

// Create adds a field of study. A nil actor is the trusted admin CLI.
func (s *fieldService) Create(ctx context.Context, actor *domain.Principal, name string) (*domain.FieldOfStudy, error) {
	if actor != nil && !actor.IsStaff() {
		return nil, ErrForbidden
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newValidationError("name", "this field is required")
	}

	field := &domain.FieldOfStudy{Name: name}
	if _, err := s.fields.Create(ctx, field); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newValidationError("name", "field of study with this name already exists")
		}
		return nil, err
	}
	return field, nil
}

func (s *fieldService) List(ctx context.Context) ([]domain.FieldOfStudy, error) {
	return s.fields.List(ctx)
}
