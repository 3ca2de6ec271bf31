package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanisidro/sanisidro-api/internal/domain/cart"
)

// --- Mock implementations ---

type mockRepo struct {
	byID      map[string]*Promotion
	createErr error
	finds     int
	deleted   []string
}

func newMockRepo(promos ...*Promotion) *mockRepo {
	m := &mockRepo{byID: make(map[string]*Promotion)}
	for _, p := range promos {
		m.byID[p.ID] = p
	}
	return m
}

func (m *mockRepo) Create(_ context.Context, p *Promotion) error {
	if m.createErr != nil {
		return m.createErr
	}
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *mockRepo) Update(_ context.Context, p *Promotion) error {
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *mockRepo) Upsert(ctx context.Context, p *Promotion) error {
	return m.Update(ctx, p)
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	delete(m.byID, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Promotion, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) FindByCode(_ context.Context, code string) (*Promotion, error) {
	m.finds++
	for _, p := range m.byID {
		if p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) List(_ context.Context, f Filter) ([]Promotion, error) {
	var out []Promotion
	for _, p := range m.byID {
		if f.ActiveOnly && !p.Active {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// --- Helpers ---

func storedPromo() *Promotion {
	return &Promotion{
		ID:           "p-1",
		Code:         "PROMO10",
		Kind:         KindGeneral,
		DiscountType: DiscountPercentage,
		Value:        decimal.NewFromInt(10),
		MinAmount:    decimal.NewFromInt(50),
		Active:       true,
	}
}

// --- Tests ---

func TestService_Create(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil, nil)

	p := &Promotion{Code: " verano ", Value: decimal.NewFromInt(15), Active: true}
	require.NoError(t, svc.Create(context.Background(), p))

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "VERANO", p.Code)
	assert.Equal(t, KindGeneral, p.Kind)
	assert.Contains(t, repo.byID, p.ID)
}

func TestService_Create_Invalid(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil, nil)

	err := svc.Create(context.Background(), &Promotion{Code: "BAD", Value: decimal.NewFromInt(-5)})
	require.ErrorIs(t, err, ErrInvalidPromotion)
	assert.Empty(t, repo.byID)
}

func TestService_Create_RepoError(t *testing.T) {
	repo := newMockRepo()
	repo.createErr = ErrDuplicateCode
	svc := NewService(repo, nil, nil)

	err := svc.Create(context.Background(), &Promotion{Code: "DUP", Value: decimal.NewFromInt(5)})
	require.ErrorIs(t, err, ErrDuplicateCode)
	assert.Contains(t, err.Error(), "create promotion")
}

func TestService_Update(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := storedPromo()
	existing.CreatedAt = created
	repo := newMockRepo(existing)
	svc := NewService(repo, nil, nil)

	upd := &Promotion{Code: "promo20", Value: decimal.NewFromInt(20), Active: true}
	require.NoError(t, svc.Update(context.Background(), "p-1", upd))

	got := repo.byID["p-1"]
	assert.Equal(t, "PROMO20", got.Code)
	assert.Equal(t, created, got.CreatedAt)
	assert.True(t, decimal.NewFromInt(20).Equal(got.Value))
}

func TestService_Update_NotFound(t *testing.T) {
	svc := NewService(newMockRepo(), nil, nil)

	err := svc.Update(context.Background(), "missing", &Promotion{Code: "X"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_Delete(t *testing.T) {
	repo := newMockRepo(storedPromo())
	svc := NewService(repo, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "p-1"))
	assert.Equal(t, []string{"p-1"}, repo.deleted)

	require.ErrorIs(t, svc.Delete(context.Background(), "p-1"), ErrNotFound)
}

func TestService_GetByCode_CaseInsensitive(t *testing.T) {
	svc := NewService(newMockRepo(storedPromo()), nil, nil)

	p, err := svc.GetByCode(context.Background(), " promo10")
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ID)
}

func TestService_Check(t *testing.T) {
	svc := NewService(newMockRepo(storedPromo()), nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }

	items := []cart.Item{{Name: "Ceviche", Quantity: 4, Price: decimal.NewFromInt(25)}}

	p, res, err := svc.Check(context.Background(), "promo10", items)
	require.NoError(t, err)
	assert.Equal(t, "PROMO10", p.Code)
	assert.True(t, res.Applicable)
	assert.True(t, decimal.NewFromInt(10).Equal(res.Discount))

	_, res, err = svc.Check(context.Background(), "PROMO10", items[:0])
	require.ErrorIs(t, err, cart.ErrInvalidCart)
	assert.False(t, res.Applicable)

	_, _, err = svc.Check(context.Background(), "NOPE", items)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_WritesInvalidateCache(t *testing.T) {
	repo := newMockRepo(storedPromo())
	finder := NewCachedFinder(repo, 10, time.Hour)
	svc := NewService(repo, finder, nil)
	ctx := context.Background()

	_, err := svc.GetByCode(ctx, "PROMO10")
	require.NoError(t, err)
	_, err = svc.GetByCode(ctx, "PROMO10")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.finds, "second lookup should be served from cache")

	require.NoError(t, svc.Update(ctx, "p-1", &Promotion{
		Code:  "PROMO10",
		Value: decimal.NewFromInt(30),
	}))

	p, err := svc.GetByCode(ctx, "PROMO10")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.finds)
	assert.True(t, decimal.NewFromInt(30).Equal(p.Value))
	assert.False(t, p.Active)
}

func TestCachedFinder_DoesNotCacheMisses(t *testing.T) {
	repo := newMockRepo()
	finder := NewCachedFinder(repo, 10, time.Hour)
	ctx := context.Background()

	_, err := finder.FindByCode(ctx, "NEW")
	require.ErrorIs(t, err, ErrNotFound)

	repo.byID["n"] = &Promotion{ID: "n", Code: "NEW"}
	p, err := finder.FindByCode(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "n", p.ID)
	assert.Equal(t, 2, repo.finds)
}

func TestCachedFinder_ReturnsCopies(t *testing.T) {
	repo := newMockRepo(storedPromo())
	finder := NewCachedFinder(repo, 10, time.Hour)
	ctx := context.Background()

	first, err := finder.FindByCode(ctx, "PROMO10")
	require.NoError(t, err)
	first.Title = "mutated"

	second, err := finder.FindByCode(ctx, "PROMO10")
	require.NoError(t, err)
	assert.Empty(t, second.Title)
}

func TestCachedFinder_PropagatesErrors(t *testing.T) {
	boom := errors.New("connection refused")
	finder := NewCachedFinder(finderFunc(func(context.Context, string) (*Promotion, error) {
		return nil, boom
	}), 10, time.Hour)

	_, err := finder.FindByCode(context.Background(), "X")
	require.ErrorIs(t, err, boom)
}

type finderFunc func(ctx context.Context, code string) (*Promotion, error)

func (f finderFunc) FindByCode(ctx context.Context, code string) (*Promotion, error) {
	return f(ctx, code)
}

func TestService_Upsert(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil, nil)

	p := &Promotion{Code: "bienvenida5", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5), Active: true}
	require.NoError(t, svc.Upsert(context.Background(), p))

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "BIENVENIDA5", p.Code)
	require.Contains(t, repo.byID, p.ID)
	assert.Equal(t, DiscountFixed, repo.byID[p.ID].DiscountType)

	bad := &Promotion{Code: "X", Value: decimal.NewFromInt(150)}
	err := svc.Upsert(context.Background(), bad)
	require.ErrorIs(t, err, ErrInvalidPromotion)
	assert.Empty(t, bad.ID)
}
