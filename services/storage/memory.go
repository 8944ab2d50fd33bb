package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	internalerrors "github.com/customeros/bccstack/internal/errors"
)

// MemoryStorageService keeps objects in a map. It serves local runs and tests;
// FailUploads makes every upload fail.
type MemoryStorageService struct {
	mu         sync.Mutex
	bucketName string
	objects    map[string][]byte

	FailUploads bool
}

func NewMemoryStorageService(bucketName string) *MemoryStorageService {
	return &MemoryStorageService{bucketName: bucketName, objects: make(map[string][]byte)}
}

func (s *MemoryStorageService) Upload(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUploads {
		return errors.Wrap(internalerrors.ErrStorageUploadFailed, "memory storage configured to fail")
	}
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStorageService) Download(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStorageService) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryStorageService) GetPublicURL(string) string {
	return ""
}

func (s *MemoryStorageService) Pointer(key string) string {
	return fmt.Sprintf("%s://%s/%s", ProviderMemory, s.bucketName, key)
}

func (s *MemoryStorageService) ServiceName() string {
	return ProviderMemory
}

func (s *MemoryStorageService) BucketName() string {
	return s.bucketName
}

func (s *MemoryStorageService) ObjectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *MemoryStorageService) SetFailUploads(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailUploads = fail
}
