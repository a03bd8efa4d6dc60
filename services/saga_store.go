package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"eventgo-saga/internal/status"
	"eventgo-saga/models"
)

const (
	bookingSagaKey  = "saga:booking:%d"
	transferSagaKey = "saga:transfer:%s"

	// transferPendingKey indexes transfer sagas awaiting their payment
	// phase, scored by creation time, so stuck transfers can be released.
	transferPendingKey = "saga:transfer:pending"

	// reconcileScheduleKey holds reconciliation jobs scored by due time.
	reconcileScheduleKey = "reconcile:scheduled"
)

// ReconcileJob is one scheduled reconciliation of a booking's ticket set.
type ReconcileJob struct {
	ReservationID int64   `json:"reservation_id"`
	TicketIDs     []int64 `json:"ticket_ids"`
}

// SagaRepository is the persistence contract the orchestrators depend on.
// SagaStore is its redis implementation.
type SagaRepository interface {
	SaveBookingSaga(ctx context.Context, saga *models.BookingSaga) error
	GetBookingSaga(ctx context.Context, reservationID int64) (*models.BookingSaga, error)
	SaveTransferSaga(ctx context.Context, saga *models.TransferSaga) error
	GetTransferSaga(ctx context.Context, transferID string) (*models.TransferSaga, error)
	ExpiredPendingTransfers(ctx context.Context, now time.Time, ttl time.Duration) ([]string, error)
	ScheduleReconciliation(ctx context.Context, job ReconcileJob, due time.Time) error
	ClaimDueReconciliations(ctx context.Context, now time.Time) ([]ReconcileJob, error)
	PendingReconciliations(ctx context.Context) (int64, error)
}

var _ SagaRepository = (*SagaStore)(nil)

// SagaStore persists saga instances keyed by their correlation id and the
// durable reconciliation schedule. Everything lives in redis so that sagas
// survive a process restart between the initiating request and the webhook.
type SagaStore struct {
	Redis *redis.Client
}

func NewSagaStore(redisClient *redis.Client) *SagaStore {
	return &SagaStore{Redis: redisClient}
}

func (s *SagaStore) SaveBookingSaga(ctx context.Context, saga *models.BookingSaga) error {
	data, err := json.Marshal(saga)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(bookingSagaKey, saga.ReservationID)
	if err := s.Redis.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("save booking saga %d: %w", saga.ReservationID, err)
	}
	return nil
}

func (s *SagaStore) GetBookingSaga(ctx context.Context, reservationID int64) (*models.BookingSaga, error) {
	key := fmt.Sprintf(bookingSagaKey, reservationID)
	data, err := s.Redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, status.ErrSagaNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get booking saga %d: %w", reservationID, err)
	}

	var saga models.BookingSaga
	if err := json.Unmarshal([]byte(data), &saga); err != nil {
		return nil, fmt.Errorf("decode booking saga %d: %w", reservationID, err)
	}
	return &saga, nil
}

func (s *SagaStore) SaveTransferSaga(ctx context.Context, saga *models.TransferSaga) error {
	data, err := json.Marshal(saga)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(transferSagaKey, saga.TransferID)
	if err := s.Redis.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("save transfer saga %s: %w", saga.TransferID, err)
	}

	switch saga.State {
	case models.SagaAwaitingPayment:
		err = s.Redis.ZAdd(ctx, transferPendingKey, redis.Z{
			Score:  float64(saga.CreatedAt.Unix()),
			Member: saga.TransferID,
		}).Err()
	default:
		err = s.Redis.ZRem(ctx, transferPendingKey, saga.TransferID).Err()
	}
	if err != nil {
		return fmt.Errorf("index transfer saga %s: %w", saga.TransferID, err)
	}
	return nil
}

func (s *SagaStore) GetTransferSaga(ctx context.Context, transferID string) (*models.TransferSaga, error) {
	key := fmt.Sprintf(transferSagaKey, transferID)
	data, err := s.Redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, status.ErrSagaNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get transfer saga %s: %w", transferID, err)
	}

	var saga models.TransferSaga
	if err := json.Unmarshal([]byte(data), &saga); err != nil {
		return nil, fmt.Errorf("decode transfer saga %s: %w", transferID, err)
	}
	return &saga, nil
}

// ExpiredPendingTransfers returns ids of transfer sagas that have waited for
// their payment phase longer than ttl.
func (s *SagaStore) ExpiredPendingTransfers(ctx context.Context, now time.Time, ttl time.Duration) ([]string, error) {
	cutoff := now.Add(-ttl).Unix()
	ids, err := s.Redis.ZRangeByScore(ctx, transferPendingKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", cutoff),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list expired transfers: %w", err)
	}
	return ids, nil
}

// ScheduleReconciliation adds a job to the durable schedule. The schedule is
// a sorted set scored by due time so jobs survive restarts, unlike an
// in-process sleep-then-run goroutine.
func (s *SagaStore) ScheduleReconciliation(ctx context.Context, job ReconcileJob, due time.Time) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	err = s.Redis.ZAdd(ctx, reconcileScheduleKey, redis.Z{
		Score:  float64(due.Unix()),
		Member: string(data),
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule reconciliation %d: %w", job.ReservationID, err)
	}
	return nil
}

// ClaimDueReconciliations pops jobs whose due time has passed. A job is only
// returned to the caller that wins its ZRem, so concurrent pollers never run
// the same job twice.
func (s *SagaStore) ClaimDueReconciliations(ctx context.Context, now time.Time) ([]ReconcileJob, error) {
	members, err := s.Redis.ZRangeByScore(ctx, reconcileScheduleKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list due reconciliations: %w", err)
	}

	var jobs []ReconcileJob
	for _, member := range members {
		removed, err := s.Redis.ZRem(ctx, reconcileScheduleKey, member).Result()
		if err != nil || removed == 0 {
			continue
		}
		var job ReconcileJob
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// PendingReconciliations reports the schedule size for the metrics gauge.
func (s *SagaStore) PendingReconciliations(ctx context.Context) (int64, error) {
	return s.Redis.ZCard(ctx, reconcileScheduleKey).Result()
}
