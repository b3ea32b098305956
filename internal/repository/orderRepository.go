package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RaikyD/merch-pickup-service/internal/domain"
	"github.com/RaikyD/merch-pickup-service/internal/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const pgUniqueViolation = "23505"

var _ OrderRepo = (*OrderRepository)(nil)

// OrderRepository is the PostgreSQL order store.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(p *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: p}
}

func (p *OrderRepository) AddOrder(ctx context.Context, o *domain.Order) error {
	o.Normalize()
	if err := o.Validate(); err != nil {
		return err
	}
	if o.OrderID == uuid.Nil {
		o.OrderID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO merch.orders
			(id, order_code, owner_identity_code, owner_name, department, status,
			 total, remaining_balance, pickup_date, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6,
			 $7::numeric, $8::numeric, $9, $10)
	`,
		o.OrderID,
		o.OrderCode,
		o.OwnerIdentityCode,
		o.OwnerName,
		o.Department,
		string(o.Status),
		o.Total.String(),
		o.RemainingBalance.String(),
		o.PickupDate,
		o.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrOrderAlreadyExists
		}
		logger.Warn("insert order failed", "code", o.OrderCode, "err", err)
		return err
	}

	if len(o.Items) > 0 {
		batch := &pgx.Batch{}
		for i, it := range o.Items {
			batch.Queue(`
				INSERT INTO merch.order_items
					(order_id, position, name, quantity, unit_price, size, color)
				VALUES
					($1, $2, $3, $4, $5::numeric, $6, $7)
			`,
				o.OrderID,
				i,
				it.Name,
				it.Quantity,
				it.UnitPrice.String(),
				it.Size,
				it.Color,
			)
		}
		br := tx.SendBatch(ctx, batch)
		if err = br.Close(); err != nil {
			return fmt.Errorf("insert items: %w", err)
		}
	}

	return tx.Commit(ctx)
}

const orderColumns = `id, order_code, owner_identity_code, owner_name, department, status,
	total::text, remaining_balance::text, pickup_date, created_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                domain.Order
		status           string
		total, remaining string
	)
	err := row.Scan(
		&o.OrderID,
		&o.OrderCode,
		&o.OwnerIdentityCode,
		&o.OwnerName,
		&o.Department,
		&status,
		&total,
		&remaining,
		&o.PickupDate,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if o.RemainingBalance, err = decimal.NewFromString(remaining); err != nil {
		return nil, fmt.Errorf("parse remaining_balance: %w", err)
	}
	return &o, nil
}

func (p *OrderRepository) GetOrderByCode(ctx context.Context, code string) (*domain.Order, error) {
	o, err := scanOrder(p.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM merch.orders WHERE order_code = $1`,
		domain.NormalizeCode(code),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := p.loadItems(ctx, []*domain.Order{o})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.OrderID]
	return o, nil
}

func (p *OrderRepository) ListOrders(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.OwnerIdentityCode != "" {
		args = append(args, domain.NormalizeCode(f.OwnerIdentityCode))
		where = append(where, fmt.Sprintf("owner_identity_code = $%d", len(args)))
	}
	if f.Department != "" {
		args = append(args, f.Department)
		where = append(where, fmt.Sprintf("department = $%d", len(args)))
	}

	q := `SELECT ` + orderColumns + ` FROM merch.orders`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, order_code`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := p.loadItems(ctx, list)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(list))
	for _, o := range list {
		o.Items = items[o.OrderID]
		out = append(out, *o)
	}
	return out, nil
}

func (p *OrderRepository) loadItems(ctx context.Context, orders []*domain.Order) (map[uuid.UUID][]domain.Item, error) {
	res := make(map[uuid.UUID][]domain.Item, len(orders))
	if len(orders) == 0 {
		return res, nil
	}
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.OrderID.String())
	}

	rows, err := p.pool.Query(ctx, `
		SELECT order_id, name, quantity, unit_price::text, size, color
		FROM merch.order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    uuid.UUID
			it    domain.Item
			price string
		)
		if err := rows.Scan(&id, &it.Name, &it.Quantity, &price, &it.Size, &it.Color); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse unit_price: %w", err)
		}
		res[id] = append(res[id], it)
	}
	return res, rows.Err()
}

func (p *OrderRepository) MarkReleased(ctx context.Context, code string, releasedAt time.Time) (domain.ReleaseRecord, error) {
	code = domain.NormalizeCode(code)

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.ReleaseRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		id     uuid.UUID
		status string
	)
	err = tx.QueryRow(ctx,
		`SELECT id, status FROM merch.orders WHERE order_code = $1 FOR UPDATE`, code,
	).Scan(&id, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ReleaseRecord{}, ErrOrderNotFound
	}
	if err != nil {
		return domain.ReleaseRecord{}, err
	}
	if domain.OrderStatus(status) != domain.StatusReadyForPickup {
		return domain.ReleaseRecord{}, ErrOrderNotReady
	}

	if _, err = tx.Exec(ctx,
		`UPDATE merch.orders SET status = $2, pickup_date = $3 WHERE id = $1`,
		id, string(domain.StatusCompleted), releasedAt,
	); err != nil {
		return domain.ReleaseRecord{}, err
	}
	if _, err = tx.Exec(ctx,
		`INSERT INTO merch.release_log (order_id, order_code, released_at) VALUES ($1, $2, $3)`,
		id, code, releasedAt,
	); err != nil {
		return domain.ReleaseRecord{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		logger.Warn("release commit failed", "code", code, "err", err)
		return domain.ReleaseRecord{}, err
	}
	return domain.ReleaseRecord{OrderID: id, OrderCode: code, ReleasedAt: releasedAt}, nil
}

func (p *OrderRepository) ListReleases(ctx context.Context, limit int) ([]domain.ReleaseRecord, error) {
	q := `SELECT order_id, order_code, released_at FROM merch.release_log ORDER BY released_at DESC, id DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReleaseRecord
	for rows.Next() {
		var r domain.ReleaseRecord
		if err := rows.Scan(&r.OrderID, &r.OrderCode, &r.ReleasedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
