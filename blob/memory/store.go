// Package memory implements blob.Store in process memory.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/poiesic/finwhiz/blob"
)

// Store is a map-backed blob.Store. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
	opens   map[string]int
}

func New() *Store {
	return &Store{
		objects: make(map[string][]byte),
		opens:   make(map[string]int),
	}
}

func (s *Store) List(ctx context.Context, prefix string) ([]blob.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]blob.ObjectInfo, 0, len(s.objects))
	for name, data := range s.objects {
		if strings.HasPrefix(name, prefix) {
			infos = append(infos, blob.ObjectInfo{Name: name, Size: int64(len(data))})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, name)
	}
	s.opens[name]++
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	if name == "" {
		return blob.ErrInvalidName
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("short write for %s: expected %d bytes, read %d", name, size, len(data))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = data
	return nil
}

func (s *Store) Close() error {
	return nil
}

// PutBytes stores data under name.
func (s *Store) PutBytes(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = append([]byte(nil), data...)
}

// Bytes returns a copy of the object stored under name.
func (s *Store) Bytes(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Opens reports how many times name was opened.
func (s *Store) Opens(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opens[name]
}

// TotalOpens reports how many objects were opened in total.
func (s *Store) TotalOpens() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, n := range s.opens {
		total += n
	}
	return total
}

var _ blob.Store = (*Store)(nil)
