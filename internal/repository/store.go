package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/langchou/fleethealth/internal/store"
)

// Store PostgreSQL 持久层聚合实现
// q 在事务外指向连接池，事务内指向 pgx.Tx
type Store struct {
	q    Querier
	pool *pgxpool.Pool
}

// NewStore 创建持久层入口
func NewStore(db *DB) *Store {
	return &Store{q: db.Pool, pool: db.Pool}
}

func (s *Store) Customers() store.CustomerStore {
	return &CustomerRepository{q: s.q}
}

func (s *Store) Vehicles() store.VehicleStore {
	return &VehicleRepository{q: s.q}
}

func (s *Store) Trips() store.TripStore {
	return &TripRepository{q: s.q}
}

func (s *Store) Events() store.DeviceEventStore {
	return &DeviceEventRepository{q: s.q}
}

func (s *Store) FaultCodes() store.FaultCodeStore {
	return &FaultCodeRepository{q: s.q}
}

func (s *Store) NotificationLogs() store.NotificationLogStore {
	return &NotificationLogRepository{q: s.q}
}

func (s *Store) Appointments() store.AppointmentStore {
	return &AppointmentRepository{q: s.q}
}

// InTx 在事务内执行 fn
// 已处于事务中时直接复用当前事务
func (s *Store) InTx(ctx context.Context, fn func(store.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Store{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
