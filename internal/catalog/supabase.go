package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"github.com/toneill57/innpilot-sub001/pkg/logger"
)

const collectionsTable = "knowledge_collections"

// SupabaseConfig holds Supabase connection configuration.
type SupabaseConfig struct {
	URL      string
	APIKey   string
	CacheTTL time.Duration // Default: 5 minutes
}

type collectionRow struct {
	TenantID    string   `json:"tenant_id"`
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Priority    int      `json:"priority"`
	Keywords    []string `json:"keywords"`
	Enabled     bool     `json:"enabled"`
}

type cacheEntry struct {
	value     []Collection
	expiresAt time.Time
}

// Supabase reads per-tenant catalogs from the knowledge_collections table.
// Tenants without rows, and lookups that fail, get the fallback catalog.
type Supabase struct {
	client   *supabase.Client
	fallback Catalog
	cacheTTL time.Duration
	log      *logger.Logger
	now      func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewSupabase creates a Supabase-backed catalog.
func NewSupabase(cfg SupabaseConfig, fallback Catalog, log *logger.Logger) (*Supabase, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if fallback == nil {
		fallback = Default()
	}
	if log == nil {
		log = logger.NewNop()
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Supabase{
		client:   client,
		fallback: fallback,
		cacheTTL: cfg.CacheTTL,
		log:      log.Named("catalog"),
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
	}, nil
}

// Collections implements Catalog.
func (s *Supabase) Collections(ctx context.Context, tenantID string) ([]Collection, error) {
	if cached, ok := s.cached(tenantID, false); ok {
		return cached, nil
	}

	var rows []collectionRow
	_, err := s.client.From(collectionsTable).
		Select("*", "", false).
		Eq("tenant_id", tenantID).
		ExecuteTo(&rows)
	if err != nil {
		s.log.Warn("catalog lookup failed", logger.Tenant(tenantID), zap.Error(err))
		if stale, ok := s.cached(tenantID, true); ok {
			return stale, nil
		}
		return s.fallback.Collections(ctx, tenantID)
	}

	cols := make([]Collection, 0, len(rows))
	for _, r := range rows {
		if !r.Enabled || r.Name == "" {
			continue
		}
		display := r.DisplayName
		if display == "" {
			display = r.Name
		}
		cols = append(cols, Collection{
			Name:        r.Name,
			DisplayName: display,
			Priority:    r.Priority,
			Keywords:    r.Keywords,
		})
	}
	if len(cols) == 0 {
		fb, err := s.fallback.Collections(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		cols = fb
	}
	sortByPriority(cols)

	s.mu.Lock()
	s.cache[tenantID] = cacheEntry{value: cols, expiresAt: s.now().Add(s.cacheTTL)}
	s.mu.Unlock()

	return append([]Collection(nil), cols...), nil
}

// cached returns the cached catalog for tenantID. Expired entries are only
// returned when allowStale is set.
func (s *Supabase) cached(tenantID string, allowStale bool) ([]Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.cache[tenantID]
	if !ok || (!allowStale && !s.now().Before(e.expiresAt)) {
		return nil, false
	}
	return append([]Collection(nil), e.value...), true
}

var _ Catalog = (*Supabase)(nil)
