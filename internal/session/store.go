package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"opscore/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// Store persists session records across process restarts within the same
// client session boundary.
type Store interface {
	Load(ctx context.Context, id string) (*models.SessionRecord, error)
	Save(ctx context.Context, rec *models.SessionRecord) error
	Delete(ctx context.Context, id string) error
}

// GormStore keeps session records in the database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Load(ctx context.Context, id string) (*models.SessionRecord, error) {
	var rec models.SessionRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *GormStore) Save(ctx context.Context, rec *models.SessionRecord) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(rec).Error
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.SessionRecord{}, "id = ?", id).Error
}

// Live reports whether an authenticated, unexpired session is backing the
// token id. Satisfies auth.SessionChecker.
func (s *GormStore) Live(ctx context.Context, jti string) bool {
	if jti == "" {
		return false
	}
	var rec models.SessionRecord
	err := s.db.WithContext(ctx).First(&rec, "token_jti = ?", jti).Error
	if err != nil {
		return false
	}
	if !rec.Authenticated || rec.TokenExpiry == nil {
		return false
	}
	return time.Now().UTC().Before(*rec.TokenExpiry)
}

// MemoryStore holds session records in process memory. Used by tests and
// single-node setups without a session table.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string]models.SessionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]models.SessionRecord)}
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) Save(ctx context.Context, rec *models.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.ID] = *rec
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, id)
	return nil
}

func (s *MemoryStore) Live(ctx context.Context, jti string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.recs {
		if rec.TokenJTI != nil && *rec.TokenJTI == jti && rec.Authenticated &&
			rec.TokenExpiry != nil && time.Now().UTC().Before(*rec.TokenExpiry) {
			return true
		}
	}
	return false
}

func encodeRoles(roles []string) models.JSONB {
	if len(roles) == 0 {
		return models.JSONB("[]")
	}
	b, err := json.Marshal(roles)
	if err != nil {
		return models.JSONB("[]")
	}
	return models.JSONB(b)
}

func decodeRoles(raw models.JSONB) []string {
	if len(raw) == 0 {
		return nil
	}
	var roles []string
	if err := json.Unmarshal(raw, &roles); err != nil {
		return nil
	}
	return roles
}
