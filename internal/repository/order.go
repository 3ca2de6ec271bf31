package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sanisidro/sanisidro-api/internal/domain/order"
)

const orderColumns = `id, invoice_number, customer_name, customer_email, customer_phone,
	payment_method, subtotal, discount, promo_code, total, status, details, created_at, updated_at`

const (
	createOrderSQL = `INSERT INTO orders (id, invoice_number, customer_name, customer_email, customer_phone,
		payment_method, subtotal, discount, promo_code, total, status, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderForUpdateSQL = getOrderByIDSQL + ` FOR UPDATE`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 RETURNING updated_at`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
	qb   sq.StatementBuilderType
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{
		pool: pool,
		qb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Create persists a new order and fills its timestamps.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := conn(ctx, r.pool).QueryRow(ctx, createOrderSQL,
		o.ID, o.InvoiceNumber, o.Customer.Name, o.Customer.Email, o.Customer.Phone,
		o.PaymentMethod, o.Subtotal, o.Discount, nullString(o.PromoCode), o.Total,
		string(o.Status), o.Details,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrap(order.ErrDuplicateInvoice, o.InvoiceNumber)
		}
		return errors.Wrapf(err, "insert order %q", o.ID)
	}
	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

// GetForUpdate reads the order with a row lock held until the surrounding
// transaction ends.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderForUpdateSQL, id)
}

func (r *OrderRepository) getOne(ctx context.Context, query, id string) (*order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return &o, nil
}

// UpdateStatus sets the order status and returns the new modification time.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) (time.Time, error) {
	var updatedAt time.Time
	err := conn(ctx, r.pool).QueryRow(ctx, updateOrderStatusSQL, id, string(status)).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, order.ErrNotFound
		}
		return time.Time{}, errors.Wrapf(err, "update order %q", id)
	}
	return updatedAt, nil
}

// List returns orders newest first. A non-empty Email matches
// case-insensitively and takes precedence over Status.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	query, args, err := r.listQuery(f).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build list query")
	}

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "scan orders")
	}
	return orders, nil
}

func (r *OrderRepository) listQuery(f order.Filter) sq.SelectBuilder {
	q := r.qb.Select(orderColumns).
		From("orders").
		OrderBy("created_at DESC", "id DESC")
	switch {
	case f.Email != "":
		q = q.Where(sq.Expr("LOWER(customer_email) = LOWER(?)", f.Email))
	case f.Status != "":
		q = q.Where(sq.Eq{"status": f.Status.StoredNames()})
	}
	return q
}

// Delete removes an order.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete order %q", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		promoCode *string
		status    string
	)
	err := row.Scan(
		&o.ID, &o.InvoiceNumber, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.PaymentMethod, &o.Subtotal, &o.Discount, &promoCode, &o.Total, &status, &o.Details,
		&o.CreatedAt, &o.UpdatedAt,
	)
	o.PromoCode = deref(promoCode)
	o.Status = storedStatus(status)
	return o, err
}

// storedStatus maps a stored status, including the Spanish names older rows
// carry, to its canonical form. Unrecognized values are kept as is.
func storedStatus(s string) order.Status {
	st, err := order.ParseStatus(s)
	if err != nil {
		return order.Status(s)
	}
	return st
}
