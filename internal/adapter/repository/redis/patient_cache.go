package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/carewatch/internal/domain"
)

const channelKeyPrefix = "patient:channel:"

// CachedPatientRepository decorates a domain.PatientRepository with a Redis
// cache for channel lookups. GetByChannel sits on the hot path of every
// inbound event; everything else passes straight through. Cache failures are
// logged and degrade to the underlying repository.
type CachedPatientRepository struct {
	inner  domain.PatientRepository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedPatientRepository wraps inner with a Redis channel lookup cache.
func NewCachedPatientRepository(inner domain.PatientRepository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedPatientRepository {
	return &CachedPatientRepository{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "patient_cache"),
	}
}

func (r *CachedPatientRepository) GetByChannel(ctx context.Context, channelID string) (*domain.Patient, error) {
	key := channelKeyPrefix + channelID

	cached, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		var p domain.Patient
		if err := json.Unmarshal(cached, &p); err == nil {
			return &p, nil
		}
		// A corrupt entry falls through to the source of truth.
		r.logger.Warn("discarding corrupt cache entry", "key", key)
	} else if !errors.Is(err, redis.Nil) {
		r.logger.Warn("cache read failed", "key", key, "error", err)
	}

	patient, err := r.inner.GetByChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(patient); err == nil {
		if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
			r.logger.Warn("cache write failed", "key", key, "error", err)
		}
	}
	return patient, nil
}

func (r *CachedPatientRepository) GetByID(ctx context.Context, id string) (*domain.Patient, error) {
	return r.inner.GetByID(ctx, id)
}

func (r *CachedPatientRepository) ListActive(ctx context.Context, orgID string) ([]domain.Patient, error) {
	return r.inner.ListActive(ctx, orgID)
}

// UpdateRiskLevel writes through to the source of truth and invalidates the
// channel entry so the next lookup sees the new level.
func (r *CachedPatientRepository) UpdateRiskLevel(ctx context.Context, patientID string, level domain.RiskLevel, source domain.RiskSource, reason string, updatedAt time.Time) error {
	if err := r.inner.UpdateRiskLevel(ctx, patientID, level, source, reason, updatedAt); err != nil {
		return err
	}

	patient, err := r.inner.GetByID(ctx, patientID)
	if err != nil {
		return nil
	}
	if err := r.client.Del(ctx, channelKeyPrefix+patient.ChannelID).Err(); err != nil {
		r.logger.Warn("cache invalidation failed", "channel", patient.ChannelID, "error", err)
	}
	return nil
}
