package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"account-service/internal/domain"
	"account-service/internal/repository"
	"account-service/internal/storage"
)

var avatarExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AvatarUpload is a profile picture about to be stored.
type AvatarUpload struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

// AvatarService stores profile pictures of identified users in object storage.
type AvatarService interface {
	Upload(ctx context.Context, principalID int64, upload AvatarUpload) (*domain.Principal, error)
	URL(ctx context.Context, principal *domain.Principal) (string, error)
}

type AvatarConfig struct {
	Bucket    string
	KeyPrefix string
	MaxBytes  int64
	URLTTL    time.Duration
	Logger    *logrus.Logger
}

type avatarService struct {
	cfg   AvatarConfig
	users repository.UserRepository
	store storage.Service
}

// NewAvatarService returns a service that reports ErrStorageDisabled when store is nil.
func NewAvatarService(users repository.UserRepository, store storage.Service, cfg AvatarConfig) AvatarService {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 2 << 20
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = 15 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &avatarService{cfg: cfg, users: users, store: store}
}

func (s *avatarService) Upload(ctx context.Context, principalID int64, upload AvatarUpload) (*domain.Principal, error) {
	if s.store == nil || s.cfg.Bucket == "" {
		return nil, ErrStorageDisabled
	}

	contentType := strings.ToLower(strings.TrimSpace(strings.Split(upload.ContentType, ";")[0]))
	ext, ok := avatarExtensions[contentType]
	if !ok {
		return nil, newValidationError("avatar", fmt.Sprintf("unsupported content type %q", upload.ContentType))
	}
	if upload.Size <= 0 {
		return nil, newValidationError("avatar", "file is empty")
	}
	if upload.Size > s.cfg.MaxBytes {
		return nil, newValidationError("avatar", fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxBytes))
	}

	principal, err := s.users.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if principal.Identified == nil {
		return nil, newValidationError("avatar", "anonymous users cannot upload an avatar")
	}

	key := path.Join(strings.Trim(s.cfg.KeyPrefix, "/"), "avatars", strconv.FormatInt(principalID, 10), uuid.NewString()+ext)
	logger := s.cfg.Logger.WithField("user_id", principalID)

	if _, err := s.store.PutObject(ctx, io.LimitReader(upload.Body, s.cfg.MaxBytes), storage.PutOptions{
		Bucket:      s.cfg.Bucket,
		Key:         key,
		ContentType: contentType,
		Size:        upload.Size,
	}); err != nil {
		return nil, err
	}

	principal, previous, err := s.attach(ctx, principal, key)
	if err != nil {
		// the object is unreferenced once the profile write fails
		if derr := s.store.DeletePrefix(context.WithoutCancel(ctx), s.cfg.Bucket, key); derr != nil {
			logger.Warnf("delete orphaned avatar %s: %v", key, derr)
		}
		return nil, err
	}

	if previous != "" && previous != key {
		if err := s.store.DeletePrefix(ctx, s.cfg.Bucket, previous); err != nil {
			logger.Warnf("delete previous avatar %s: %v", previous, err)
		}
	}

	logger.Infof("avatar stored at %s", key)
	return principal.Sanitized(), nil
}

// attach points the profile at key, re-reading it when a concurrent write wins.
// It returns the stored principal and the key it replaced.
func (s *avatarService) attach(ctx context.Context, principal *domain.Principal, key string) (*domain.Principal, string, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		previous := principal.Identified.AvatarKey
		principal.Identified.AvatarKey = key

		err := s.users.Update(ctx, principal)
		if err == nil {
			return principal, previous, nil
		}
		if !errors.Is(err, repository.ErrStale) {
			return nil, "", err
		}
		if principal, err = s.users.GetByID(ctx, principal.ID); err != nil {
			return nil, "", err
		}
	}
	return nil, "", ErrConflict
}

func (s *avatarService) URL(ctx context.Context, principal *domain.Principal) (string, error) {
	if s.store == nil || principal == nil || principal.Identified == nil || principal.Identified.AvatarKey == "" {
		return "", nil
	}
	return s.store.GetObjectURL(ctx, s.cfg.Bucket, principal.Identified.AvatarKey, s.cfg.URLTTL)
}
