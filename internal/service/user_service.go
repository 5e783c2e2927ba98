package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"account-service/internal/auth"
	"account-service/internal/domain"
	"account-service/internal/repository"
)

const (
	defaultMinPasswordLength = 8
	maxUpdateAttempts        = 5
)

// RegisterInput describes a new identified user.
type RegisterInput struct {
	Email          string
	Password       string
	Name           string
	FirstName      string
	LastName       string
	EducationLevel domain.EducationLevel
	FieldOfStudyID *int64
}

// ProfilePatch is a partial update; nil fields are left untouched.
// Email, IsAnonymous, IsStaff, IsAuthor and AnonymousID are identity-defining
// and may only repeat the stored value.
type ProfilePatch struct {
	Name              *string
	Password          *string
	FirstName         *string
	LastName          *string
	EducationLevel    *domain.EducationLevel
	FieldOfStudyID    *int64
	ClearFieldOfStudy bool

	Email       *string
	IsAnonymous *bool
	IsStaff     *bool
	IsAuthor    *bool
	AnonymousID *string
}

// UserService describes the credential store: principal lifecycle and verification.
type UserService interface {
	CreateIdentified(ctx context.Context, in RegisterInput) (*domain.Principal, error)
	CreateAnonymous(ctx context.Context) (*domain.Principal, error)
	VerifyIdentified(ctx context.Context, email, password string) (*domain.Principal, error)
	VerifyAnonymous(ctx context.Context, anonymousID string) (*domain.Principal, error)
	Update(ctx context.Context, principalID int64, patch ProfilePatch) (*domain.Principal, error)
	Get(ctx context.Context, id int64) (*domain.Principal, error)
	ListIdentified(ctx context.Context) ([]domain.Principal, error)
	SetRoles(ctx context.Context, email string, isStaff, isAuthor *bool) (*domain.Principal, error)
}

type UserConfig struct {
	MinPasswordLength int
	Hasher            auth.Hasher
	Logger            *logrus.Logger
}

type userService struct {
	cfg      UserConfig
	users    repository.UserRepository
	fields   repository.FieldRepository
	validate *validator.Validate

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(users repository.UserRepository, fields repository.FieldRepository, cfg UserConfig) UserService {
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = defaultMinPasswordLength
	}
	if cfg.Hasher == nil {
		cfg.Hasher = auth.BcryptHasher{Cost: 10}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &userService{
		cfg:      cfg,
		users:    users,
		fields:   fields,
		validate: validator.New(),
	}
}

func (s *userService) CreateIdentified(ctx context.Context, in RegisterInput) (*domain.Principal, error) {
	email := normalizeEmail(in.Email)

	verr := &ValidationError{}
	if email == "" {
		verr.add("email", "this field is required")
	} else if err := s.validate.Var(email, "email"); err != nil {
		verr.add("email", "enter a valid email address")
	}
	if msg := s.checkPassword(in.Password); msg != "" {
		verr.add("password", msg)
	}
	if !in.EducationLevel.Valid() {
		verr.add("education_level", fmt.Sprintf("%q is not a valid choice", in.EducationLevel))
	}
	if in.FieldOfStudyID != nil {
		if msg, err := s.checkField(ctx, *in.FieldOfStudyID); err != nil {
			return nil, err
		} else if msg != "" {
			verr.add("field_of_study", msg)
		}
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	principal := domain.NewIdentified(strings.TrimSpace(in.Name), domain.IdentifiedProfile{
		Email:          email,
		PasswordHash:   hash,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		EducationLevel: in.EducationLevel,
		FieldOfStudyID: in.FieldOfStudyID,
	})

	if _, err := s.users.Create(ctx, principal); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newValidationError("email", "user with this email already exists")
		}
		return nil, err
	}

	s.cfg.Logger.WithField("user_id", principal.ID).Info("identified user registered")
	return principal.Sanitized(), nil
}

func (s *userService) CreateAnonymous(ctx context.Context) (*domain.Principal, error) {
	principal := domain.NewAnonymous(uuid.New())
	if _, err := s.users.Create(ctx, principal); err != nil {
		return nil, err
	}

	s.cfg.Logger.WithField("user_id", principal.ID).Info("anonymous user registered")
	return principal.Sanitized(), nil
}

func (s *userService) VerifyIdentified(ctx context.Context, email, password string) (*domain.Principal, error) {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, ErrAuth
	}

	principal, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// keep the unknown-email path as slow as a real check
			_ = auth.VerifyPassword(s.dummy(), password)
			return nil, ErrAuth
		}
		return nil, err
	}

	if err := auth.VerifyPassword(principal.Identified.PasswordHash, password); err != nil {
		logger := s.cfg.Logger.WithField("user_id", principal.ID)
		if errors.Is(err, auth.ErrPasswordMismatch) {
			logger.Debug("password mismatch")
		} else {
			logger.Warnf("verify password: %v", err)
		}
		return nil, ErrAuth
	}
	return principal.Sanitized(), nil
}

func (s *userService) VerifyAnonymous(ctx context.Context, anonymousID string) (*domain.Principal, error) {
	anonymousID = strings.TrimSpace(anonymousID)
	if anonymousID == "" {
		return nil, ErrAuth
	}
	id, err := uuid.Parse(anonymousID)
	if err != nil {
		return nil, ErrAuth
	}

	principal, err := s.users.GetByAnonymousID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAuth
		}
		return nil, err
	}
	return principal.Sanitized(), nil
}

func (s *userService) Update(ctx context.Context, principalID int64, patch ProfilePatch) (*domain.Principal, error) {
	verr := &ValidationError{}
	if patch.Password != nil {
		if msg := s.checkPassword(*patch.Password); msg != "" {
			verr.add("password", msg)
		}
	}
	if patch.EducationLevel != nil && !patch.EducationLevel.Valid() {
		verr.add("education_level", fmt.Sprintf("%q is not a valid choice", *patch.EducationLevel))
	}
	if patch.FieldOfStudyID != nil {
		if msg, err := s.checkField(ctx, *patch.FieldOfStudyID); err != nil {
			return nil, err
		} else if msg != "" {
			verr.add("field_of_study", msg)
		}
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	var hash string
	if patch.Password != nil {
		var err error
		if hash, err = s.hashPassword(*patch.Password); err != nil {
			return nil, err
		}
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		principal, err := s.users.GetByID(ctx, principalID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}

		if err := applyPatch(principal, patch, hash); err != nil {
			return nil, err
		}

		err = s.users.Update(ctx, principal)
		if errors.Is(err, repository.ErrStale) {
			s.cfg.Logger.WithField("user_id", principalID).Debugf("profile update raced, retry %d", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		return principal.Sanitized(), nil
	}
	return nil, ErrConflict
}

func (s *userService) Get(ctx context.Context, id int64) (*domain.Principal, error) {
	principal, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return principal.Sanitized(), nil
}

func (s *userService) ListIdentified(ctx context.Context) ([]domain.Principal, error) {
	users, err := s.users.ListIdentified(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i] = *users[i].Sanitized()
	}
	return users, nil
}

func (s *userService) SetRoles(ctx context.Context, email string, isStaff, isAuthor *bool) (*domain.Principal, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		principal, err := s.users.GetByEmail(ctx, normalizeEmail(email))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if isStaff != nil {
			principal.Identified.IsStaff = *isStaff
		}
		if isAuthor != nil {
			principal.Identified.IsAuthor = *isAuthor
		}

		err = s.users.Update(ctx, principal)
		if errors.Is(err, repository.ErrStale) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.cfg.Logger.WithFields(logrus.Fields{
			"user_id":   principal.ID,
			"is_staff":  principal.Identified.IsStaff,
			"is_author": principal.Identified.IsAuthor,
		}).Info("user roles changed")
		return principal.Sanitized(), nil
	}
	return nil, ErrConflict
}

func applyPatch(p *domain.Principal, patch ProfilePatch, passwordHash string) error {
	verr := &ValidationError{}

	// identity-defining fields may be echoed back but never changed
	if patch.IsAnonymous != nil && *patch.IsAnonymous != p.IsAnonymous() {
		verr.add("is_anonymous", "this field cannot be changed")
	}
	if patch.AnonymousID != nil {
		if p.Anonymous == nil || !strings.EqualFold(strings.TrimSpace(*patch.AnonymousID), p.Anonymous.AnonymousID.String()) {
			verr.add("anonymous_id", "this field cannot be changed")
		}
	}
	if patch.Email != nil {
		if p.Identified == nil || !strings.EqualFold(normalizeEmail(*patch.Email), p.Identified.Email) {
			verr.add("email", "this field cannot be changed")
		}
	}
	if patch.IsStaff != nil && *patch.IsStaff != p.IsStaff() {
		verr.add("is_staff", "this field cannot be changed")
	}
	if patch.IsAuthor != nil && *patch.IsAuthor != (p.Identified != nil && p.Identified.IsAuthor) {
		verr.add("is_author", "this field cannot be changed")
	}

	if p.Anonymous != nil {
		for field, set := range map[string]bool{
			"name":            patch.Name != nil,
			"password":        patch.Password != nil,
			"first_name":      patch.FirstName != nil,
			"last_name":       patch.LastName != nil,
			"education_level": patch.EducationLevel != nil,
			"field_of_study":  patch.FieldOfStudyID != nil || patch.ClearFieldOfStudy,
		} {
			if set {
				verr.add(field, "anonymous users cannot set this field")
			}
		}
		return verr.orNil()
	}
	if err := verr.orNil(); err != nil {
		return err
	}

	ident := p.Identified
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Password != nil {
		ident.PasswordHash = passwordHash
	}
	if patch.FirstName != nil {
		ident.FirstName = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		ident.LastName = strings.TrimSpace(*patch.LastName)
	}
	if patch.EducationLevel != nil {
		ident.EducationLevel = *patch.EducationLevel
	}
	switch {
	case patch.ClearFieldOfStudy:
		ident.FieldOfStudyID = nil
	case patch.FieldOfStudyID != nil:
		id := *patch.FieldOfStudyID
		ident.FieldOfStudyID = &id
	}
	return nil
}

func (s *userService) checkPassword(password string) string {
	if strings.TrimSpace(password) == "" {
		return "this field is required"
	}
	if len([]rune(password)) < s.cfg.MinPasswordLength {
		return fmt.Sprintf("password must be at least %d characters", s.cfg.MinPasswordLength)
	}
	if limiter, ok := s.cfg.Hasher.(auth.LengthLimiter); ok && len(password) > limiter.MaxPasswordBytes() {
		return fmt.Sprintf("password must be at most %d bytes", limiter.MaxPasswordBytes())
	}
	return ""
}

func (s *userService) hashPassword(password string) (string, error) {
	hash, err := s.cfg.Hasher.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", newValidationError("password", "password is too long")
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (s *userService) checkField(ctx context.Context, id int64) (string, error) {
	if _, err := s.fields.Get(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Sprintf("invalid pk %d - object does not exist", id), nil
		}
		return "", err
	}
	return "", nil
}

func (s *userService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.cfg.Hasher.Hash(uuid.NewString())
		if err != nil {
			s.cfg.Logger.Warnf("build dummy password hash: %v", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// normalizeEmail trims the address and lowercases its domain part.
func normalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}
