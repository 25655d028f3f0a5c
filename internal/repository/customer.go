package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/fleethealth/internal/models"
)

// CustomerRepository 客户数据仓库
type CustomerRepository struct {
	q Querier
}

// Find 查找客户，不存在时返回 (nil, nil)
func (r *CustomerRepository) Find(ctx context.Context, id string) (*models.Customer, error) {
	query := `
		SELECT id, name, admin_email, admin_phone, created_at
		FROM customers WHERE id = $1
	`
	customer := &models.Customer{}
	err := r.q.QueryRow(ctx, query, id).Scan(
		&customer.ID,
		&customer.Name,
		&customer.AdminEmail,
		&customer.AdminPhone,
		&customer.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	return customer, nil
}

// Create 创建客户
func (r *CustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	query := `
		INSERT INTO customers (id, name, admin_email, admin_phone, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	customer.CreatedAt = time.Now()
	_, err := r.q.Exec(ctx, query,
		customer.ID,
		customer.Name,
		customer.AdminEmail,
		customer.AdminPhone,
		customer.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

// Ensure 确保客户存在，已存在时保持原记录不变
func (r *CustomerRepository) Ensure(ctx context.Context, customer *models.Customer) error {
	query := `
		INSERT INTO customers (id, name, admin_email, admin_phone, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.q.Exec(ctx, query,
		customer.ID,
		customer.Name,
		customer.AdminEmail,
		customer.AdminPhone,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("ensure customer: %w", err)
	}
	return nil
}
