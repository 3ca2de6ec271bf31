package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sanisidro/sanisidro-api/internal/domain/promotion"
)

const promotionColumns = `id, code, title, description, image, kind, discount_type, value,
	applicable_products, min_amount, min_quantity, start_date, end_date, active, created_at, updated_at`

const (
	createPromotionSQL = `INSERT INTO promotions (id, code, title, description, image, kind, discount_type,
		value, applicable_products, min_amount, min_quantity, start_date, end_date, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`

	upsertPromotionSQL = `INSERT INTO promotions (id, code, title, description, image, kind, discount_type,
		value, applicable_products, min_amount, min_quantity, start_date, end_date, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (code) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			image = EXCLUDED.image,
			kind = EXCLUDED.kind,
			discount_type = EXCLUDED.discount_type,
			value = EXCLUDED.value,
			applicable_products = EXCLUDED.applicable_products,
			min_amount = EXCLUDED.min_amount,
			min_quantity = EXCLUDED.min_quantity,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			active = EXCLUDED.active,
			updated_at = now()
		RETURNING id, created_at, updated_at`

	updatePromotionSQL = `UPDATE promotions SET code = $2, title = $3, description = $4, image = $5,
		kind = $6, discount_type = $7, value = $8, applicable_products = $9, min_amount = $10,
		min_quantity = $11, start_date = $12, end_date = $13, active = $14, updated_at = now()
		WHERE id = $1 RETURNING updated_at`

	deletePromotionSQL = `DELETE FROM promotions WHERE id = $1`

	getPromotionByIDSQL = `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1`

	getPromotionByCodeSQL = `SELECT ` + promotionColumns + ` FROM promotions WHERE UPPER(code) = UPPER($1)`
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
	qb   sq.StatementBuilderType
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{
		pool: pool,
		qb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func promotionArgs(p *promotion.Promotion) []any {
	products := p.ApplicableProducts
	if products == nil {
		products = []string{}
	}
	return []any{
		p.ID, p.Code, p.Title, p.Description, p.Image, string(p.Kind), string(p.DiscountType),
		p.Value, products, p.MinAmount, p.MinQuantity, p.StartDate, p.EndDate, p.Active,
	}
}

// Create inserts a promotion. A taken code yields promotion.ErrDuplicateCode.
func (r *PromotionRepository) Create(ctx context.Context, p *promotion.Promotion) error {
	err := conn(ctx, r.pool).QueryRow(ctx, createPromotionSQL, promotionArgs(p)...).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrap(promotion.ErrDuplicateCode, p.Code)
		}
		return errors.Wrapf(err, "insert promotion %q", p.Code)
	}
	return nil
}

// Upsert inserts p or replaces the promotion that has the same code, keeping
// the existing id.
func (r *PromotionRepository) Upsert(ctx context.Context, p *promotion.Promotion) error {
	err := conn(ctx, r.pool).QueryRow(ctx, upsertPromotionSQL, promotionArgs(p)...).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "upsert promotion %q", p.Code)
	}
	return nil
}

// Update overwrites the promotion identified by p.ID.
func (r *PromotionRepository) Update(ctx context.Context, p *promotion.Promotion) error {
	err := conn(ctx, r.pool).QueryRow(ctx, updatePromotionSQL, promotionArgs(p)...).Scan(&p.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return promotion.ErrNotFound
		case isUniqueViolation(err):
			return errors.Wrap(promotion.ErrDuplicateCode, p.Code)
		}
		return errors.Wrapf(err, "update promotion %q", p.ID)
	}
	return nil
}

// Delete removes a promotion.
func (r *PromotionRepository) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, deletePromotionSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete promotion %q", id)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

// GetByID returns a promotion by its identifier.
func (r *PromotionRepository) GetByID(ctx context.Context, id string) (*promotion.Promotion, error) {
	return r.getOne(ctx, getPromotionByIDSQL, id)
}

// FindByCode looks up a promotion by code, case-insensitively, whether or
// not it is active.
func (r *PromotionRepository) FindByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	return r.getOne(ctx, getPromotionByCodeSQL, code)
}

func (r *PromotionRepository) getOne(ctx context.Context, query, key string) (*promotion.Promotion, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, key)
	if err != nil {
		return nil, errors.Wrapf(err, "get promotion %q", key)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get promotion %q", key)
	}
	return &p, nil
}

// List returns promotions ordered by code.
func (r *PromotionRepository) List(ctx context.Context, f promotion.Filter) ([]promotion.Promotion, error) {
	q := r.qb.Select(promotionColumns).From("promotions").OrderBy("code")
	if f.ActiveOnly {
		q = q.Where(sq.Eq{"active": true})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build list query")
	}

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list promotions")
	}
	promos, err := pgx.CollectRows(rows, scanPromotion)
	if err != nil {
		return nil, errors.Wrap(err, "scan promotions")
	}
	return promos, nil
}

func scanPromotion(row pgx.CollectableRow) (promotion.Promotion, error) {
	var (
		p            promotion.Promotion
		kind         string
		discountType string
		minQuantity  int32
	)
	err := row.Scan(
		&p.ID, &p.Code, &p.Title, &p.Description, &p.Image, &kind, &discountType, &p.Value,
		&p.ApplicableProducts, &p.MinAmount, &minQuantity, &p.StartDate, &p.EndDate, &p.Active,
		&p.CreatedAt, &p.UpdatedAt,
	)
	p.Kind = promotion.Kind(kind)
	p.DiscountType = promotion.DiscountType(discountType)
	p.MinQuantity = int(minQuantity)
	return p, err
}
