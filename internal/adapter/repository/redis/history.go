package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/vblaha/saldo/internal/anomaly"
)

// HistoryStore implements anomaly.HistoryStore on Redis. Observations live in
// one sorted set per counterparty, scored by observation time, so the recency
// window is a plain range query. Old observations are trimmed on write.
type HistoryStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

// NewHistoryStore creates a new HistoryStore. Retention bounds how long
// observations stay queryable; it must be at least the widest check window.
func NewHistoryStore(client *redis.Client, retention time.Duration) *HistoryStore {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}

	return &HistoryStore{
		client:    client,
		prefix:    "anomaly:",
		retention: retention,
	}
}

type observationRecord struct {
	CounterpartyID string          `json:"counterparty_id"`
	Amount         decimal.Decimal `json:"amount"`
	IBAN           string          `json:"iban,omitempty"`
	At             time.Time       `json:"at"`
}

// Recent returns observations for a counterparty at or after since.
func (s *HistoryStore) Recent(ctx context.Context, counterpartyID string, since time.Time) ([]anomaly.Observation, error) {
	members, err := s.client.ZRangeByScore(ctx, s.obsKey(counterpartyID), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	observations := make([]anomaly.Observation, 0, len(members))
	for _, member := range members {
		var rec observationRecord
		if err := json.Unmarshal([]byte(member), &rec); err != nil {
			return nil, err
		}
		observations = append(observations, anomaly.Observation{
			CounterpartyID: rec.CounterpartyID,
			Amount:         rec.Amount,
			IBAN:           rec.IBAN,
			At:             rec.At,
		})
	}

	return observations, nil
}

// LastIBAN returns the counterparty's last recorded bank account, or "" when
// the counterparty has never been seen.
func (s *HistoryStore) LastIBAN(ctx context.Context, counterpartyID string) (string, error) {
	iban, err := s.client.Get(ctx, s.ibanKey(counterpartyID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	return iban, nil
}

// Record appends an observation, trims everything older than the retention
// window and updates the last known bank account.
func (s *HistoryStore) Record(ctx context.Context, obs anomaly.Observation) error {
	payload, err := json.Marshal(observationRecord{
		CounterpartyID: obs.CounterpartyID,
		Amount:         obs.Amount,
		IBAN:           obs.IBAN,
		At:             obs.At,
	})
	if err != nil {
		return err
	}

	key := s.obsKey(obs.CounterpartyID)
	cutoff := obs.At.Add(-s.retention).UnixMilli()

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(obs.At.UnixMilli()),
		Member: string(payload),
	})
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.Expire(ctx, key, s.retention)
	if obs.IBAN != "" {
		pipe.Set(ctx, s.ibanKey(obs.CounterpartyID), obs.IBAN, 0)
	}

	_, err = pipe.Exec(ctx)
	return err
}

func (s *HistoryStore) obsKey(counterpartyID string) string {
	return s.prefix + "obs:" + counterpartyID
}

func (s *HistoryStore) ibanKey(counterpartyID string) string {
	return s.prefix + "iban:" + counterpartyID
}
