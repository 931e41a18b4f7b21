package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store. Contents are lost on restart.
type MemStore struct {
	mu        sync.Mutex
	histories map[key]*record
}

type key struct {
	confUID    string
	historyUID string
}

type record struct {
	createdAt time.Time
	messages  []Message
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{histories: make(map[key]*record)}
}

// NewHistory implements Store.
func (s *MemStore) NewHistory(_ context.Context, confUID string) (string, error) {
	uid := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[key{confUID, uid}] = &record{createdAt: time.Now()}
	return uid, nil
}

// Append implements Store.
func (s *MemStore) Append(_ context.Context, confUID, historyUID string, msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.histories[key{confUID, historyUID}]
	if !ok {
		return ErrNotFound
	}
	rec.messages = append(rec.messages, msg)
	return nil
}

// Messages implements Store.
func (s *MemStore) Messages(_ context.Context, confUID, historyUID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.histories[key{confUID, historyUID}]
	if !ok {
		return nil, ErrNotFound
	}
	return append(rec.messages[:0:0], rec.messages...), nil
}

// List implements Store.
func (s *MemStore) List(_ context.Context, confUID string) ([]Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]Info, 0)
	for k, rec := range s.histories {
		if k.confUID != confUID {
			continue
		}
		info := Info{HistoryUID: k.historyUID, CreatedAt: rec.createdAt}
		if n := len(rec.messages); n > 0 {
			latest := rec.messages[n-1]
			info.Latest = &latest
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos, nil
}

// Delete implements Store.
func (s *MemStore) Delete(_ context.Context, confUID, historyUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, key{confUID, historyUID})
	return nil
}

var _ Store = (*MemStore)(nil)
