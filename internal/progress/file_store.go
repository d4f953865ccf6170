package progress

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"questflow/internal/models"
	"questflow/internal/util"
)

// FileStore keeps the document as a JSON file that is replaced atomically on
// every update.
type FileStore struct {
	path  string
	now   func() time.Time
	write func(path string, v any) error
	mu    sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now, write: util.WriteJSONAtomic}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Initialize(_ context.Context, p InitParams) (*models.ProgressDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := NewDocument(p, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.write(s.path, doc); err != nil {
		return nil, fmt.Errorf("%w: %w", util.ErrStoreInit, err)
	}
	return doc, nil
}

func (s *FileStore) Apply(_ context.Context, r models.WindowResult) (*models.ProgressDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", util.ErrPersistence, err)
	}
	if err := Merge(doc, r, s.now()); err != nil {
		return nil, err
	}
	if err := s.write(s.path, doc); err != nil {
		return nil, fmt.Errorf("%w: %w", util.ErrPersistence, err)
	}
	return doc, nil
}

func (s *FileStore) Read(_ context.Context) (*models.ProgressDocument, error) {
	return s.read()
}

func (s *FileStore) read() (*models.ProgressDocument, error) {
	var doc models.ProgressDocument
	if err := util.ReadJSON(s.path, &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", s.path, ErrNotFound)
		}
		return nil, err
	}
	return &doc, nil
}

// ReadFile loads a progress document written by a FileStore.
func ReadFile(path string) (*models.ProgressDocument, error) {
	return NewFileStore(path).read()
}
