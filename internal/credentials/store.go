package credentials

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
)

// Store is a read-only view of the key-value site configuration.
type Store interface {
	Values(ctx context.Context, prefix string) (map[string]string, error)
}

// Querier is the subset of pgxpool.Pool used by PGStore.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGStore reads the site_config table.
type PGStore struct {
	DB Querier
}

const selectByPrefix = `SELECT key, value FROM site_config WHERE key LIKE $1 ESCAPE '\'`

// Values returns every key starting with prefix.
func (s PGStore) Values(ctx context.Context, prefix string) (map[string]string, error) {
	if s.DB == nil {
		return nil, fmt.Errorf("credentials: store not configured")
	}
	rows, err := s.DB.Query(ctx, selectByPrefix, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("credentials: query site_config: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("credentials: scan site_config: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("credentials: read site_config: %w", err)
	}
	return out, nil
}

func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

// MemoryStore is a map-backed Store used for environment fallbacks and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore copies values into a new store.
func NewMemoryStore(values map[string]string) *MemoryStore {
	s := &MemoryStore{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Set stores a value, replacing any previous one.
func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
}

// Values returns a copy of every key starting with prefix.
func (s *MemoryStore) Values(_ context.Context, prefix string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string)
	for k, v := range s.values {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}
