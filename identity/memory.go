package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and single-node development.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[string]User
	byUsername map[string]string
	claims     map[string][]Claim
	logins     map[Login]string
	now        func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]User),
		byUsername: make(map[string]string),
		claims:     make(map[string][]Claim),
		logins:     make(map[Login]string),
		now:        time.Now,
	}
}

// NormalizeUsername folds a username for uniqueness checks.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (s *MemoryStore) FindByUsername(ctx context.Context, username string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[NormalizeUsername(username)]
	if !ok {
		return User{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryStore) FindByLogin(ctx context.Context, login Login) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.logins[login]
	if !ok {
		return User{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryStore) Create(ctx context.Context, username string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	key := NormalizeUsername(username)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUsername[key]; ok {
		return User{}, ErrAlreadyExists
	}
	u := User{
		ID:        uuid.NewString(),
		Username:  strings.TrimSpace(username),
		CreatedAt: s.now().UTC(),
	}
	s.byID[u.ID] = u
	s.byUsername[key] = u.ID
	return u, nil
}

func (s *MemoryStore) Claims(ctx context.Context, userID string) ([]Claim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.byID[userID]; !ok {
		return nil, ErrNotFound
	}
	return append([]Claim(nil), s.claims[userID]...), nil
}

func (s *MemoryStore) ReplaceClaims(ctx context.Context, userID string, claims []Claim) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[userID]; !ok {
		return ErrNotFound
	}
	s.claims[userID] = MergeClaims(s.claims[userID], claims)
	return nil
}

func (s *MemoryStore) AddLogin(ctx context.Context, userID string, login Login) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[userID]; !ok {
		return ErrNotFound
	}
	if owner, ok := s.logins[login]; ok {
		if owner == userID {
			return nil
		}
		return ErrLoginTaken
	}
	s.logins[login] = userID
	return nil
}

// MergeClaims returns existing with every claim in updates applied: a claim
// replaces the existing claim of the same type or is appended.
func MergeClaims(existing, updates []Claim) []Claim {
	out := append([]Claim(nil), existing...)
	for _, u := range updates {
		replaced := false
		for i := range out {
			if out[i].Type == u.Type {
				out[i].Value = u.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, u)
		}
	}
	return out
}
