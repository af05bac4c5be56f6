package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/user/carewatch/internal/adapter/metrics"
)

// ErrTenantNotFound indicates no configuration row exists for the org.
var ErrTenantNotFound = errors.New("tenant config not found")

type tenantEntry struct {
	signingSecret string
	botToken      string
	oncallChannel string
	expiresAt     time.Time
}

// TenantConfigRepository implements the domain.TenantConfigRepository
// interface using PostgreSQL as the source of truth and an in-memory,
// time-based cache. Tenant credentials sit on the hot path of every inbound
// event, so they are cached aggressively.
type TenantConfigRepository struct {
	db       *sql.DB
	logger   *slog.Logger
	cache    map[string]tenantEntry
	mu       sync.RWMutex
	cacheTTL time.Duration
	metrics  *metrics.IntakeMetrics
}

// NewTenantConfigRepository creates a new instance of the PostgreSQL tenant
// config repository.
func NewTenantConfigRepository(db *sql.DB, logger *slog.Logger, cacheTTL time.Duration, m *metrics.IntakeMetrics) *TenantConfigRepository {
	return &TenantConfigRepository{
		db:       db,
		logger:   logger,
		cache:    make(map[string]tenantEntry),
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

func (r *TenantConfigRepository) SigningSecret(ctx context.Context, orgID string) (string, error) {
	entry, err := r.load(ctx, orgID)
	if err != nil {
		return "", err
	}
	return entry.signingSecret, nil
}

func (r *TenantConfigRepository) BotToken(ctx context.Context, orgID string) (string, error) {
	entry, err := r.load(ctx, orgID)
	if err != nil {
		return "", err
	}
	return entry.botToken, nil
}

func (r *TenantConfigRepository) OncallChannel(ctx context.Context, orgID string) (string, error) {
	entry, err := r.load(ctx, orgID)
	if err != nil {
		return "", err
	}
	return entry.oncallChannel, nil
}

// load fetches the org's configuration, preferring a fresh cache entry and
// falling back to the database.
func (r *TenantConfigRepository) load(ctx context.Context, orgID string) (tenantEntry, error) {
	// 1. Check cache with a read lock
	r.mu.RLock()
	entry, found := r.cache[orgID]
	r.mu.RUnlock()

	if found && time.Now().Before(entry.expiresAt) {
		if r.metrics != nil {
			r.metrics.ConfigCacheHits.Inc()
		}
		return entry, nil
	}

	if r.metrics != nil {
		r.metrics.ConfigCacheMisses.Inc()
	}

	// 2. Cache miss or expired, query DB and update cache with a write lock
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check in case another goroutine populated it while waiting for the lock
	entry, found = r.cache[orgID]
	if found && time.Now().Before(entry.expiresAt) {
		return entry, nil
	}

	query := `SELECT signing_secret, bot_token, oncall_channel FROM tenant_configs WHERE org_id = $1`
	err := r.db.QueryRowContext(ctx, query, orgID).Scan(&entry.signingSecret, &entry.botToken, &entry.oncallChannel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tenantEntry{}, ErrTenantNotFound
		}
		r.logger.Error("failed to load tenant config from database", "org_id", orgID, "error", err)
		// Don't cache errors, let the next request retry from the DB
		return tenantEntry{}, err
	}

	entry.expiresAt = time.Now().Add(r.cacheTTL)
	r.cache[orgID] = entry
	return entry, nil
}
