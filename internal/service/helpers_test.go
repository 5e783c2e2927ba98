package service

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"account-service/internal/auth"
	"account-service/internal/repository"
	"account-service/internal/repository/sqlite"
	"account-service/internal/storage"
)

func setupTestRepos(t *testing.T) *sqlite.Repositories {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	repos, err := sqlite.NewRepositories(context.Background(), db)
	require.NoError(t, err)
	return repos
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestUserService(repos *sqlite.Repositories, users repository.UserRepository) UserService {
	if users == nil {
		users = repos.Users
	}
	return NewUserService(users, repos.Fields, UserConfig{
		MinPasswordLength: 8,
		Hasher:            auth.BcryptHasher{Cost: bcrypt.MinCost},
		Logger:            quietLogger(),
	})
}

// fakeStorage keeps uploaded objects in memory.
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) PutObject(_ context.Context, body io.Reader, opts storage.PutOptions) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[opts.Key] = data
	return "s3://" + opts.Bucket + "/" + opts.Key, nil
}

func (f *fakeStorage) DeletePrefix(_ context.Context, _ string, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			delete(f.objects, key)
		}
	}
	f.deleted = append(f.deleted, prefix)
	return nil
}

func (f *fakeStorage) GetObjectURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://" + bucket + ".example.test/" + key + "?signed", nil
}

func (f *fakeStorage) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	return keys
}

// fakeCache is an in-memory TokenCache recording evictions.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]int64
	evicted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]int64)}
}

func (c *fakeCache) Get(_ context.Context, token string) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.entries[token]
	return id, ok, nil
}

func (c *fakeCache) Set(_ context.Context, token string, principalID int64, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[token] = principalID
	return nil
}

func (c *fakeCache) Delete(_ context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, token)
	c.evicted = append(c.evicted, token)
	return nil
}

func pngUpload(size int) AvatarUpload {
	return AvatarUpload{
		Body:        bytes.NewReader(bytes.Repeat([]byte{0x89}, size)),
		Size:        int64(size),
		ContentType: "image/png",
	}
}
