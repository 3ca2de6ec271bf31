package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/sanisidro/sanisidro-api/internal/domain/cart"
)

// invalidator is implemented by finders that cache lookups.
type invalidator interface {
	Invalidate(code string)
}

// Service manages promotion definitions and checks codes against carts.
type Service struct {
	repo   Repository
	finder Finder
	loc    *time.Location
	now    func() time.Time
}

// NewService creates a Service. Code lookups go through finder, which may
// be a CachedFinder over repo. Evaluation days are taken in loc.
func NewService(repo Repository, finder Finder, loc *time.Location) *Service {
	if finder == nil {
		finder = repo
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:   repo,
		finder: finder,
		loc:    loc,
		now:    time.Now,
	}
}

// Create validates and stores a new promotion, assigning its ID.
func (s *Service) Create(ctx context.Context, p *Promotion) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}
	p.ID = uuid.New().String()
	if err := s.repo.Create(ctx, p); err != nil {
		return errors.Wrap(err, "create promotion")
	}
	s.invalidate(p.Code)
	return nil
}

// Update replaces the definition of the promotion with the given id.
func (s *Service) Update(ctx context.Context, id string, p *Promotion) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}
	p.ID = current.ID
	p.CreatedAt = current.CreatedAt
	if err := s.repo.Update(ctx, p); err != nil {
		return errors.Wrapf(err, "update promotion %s", id)
	}
	s.invalidate(current.Code)
	s.invalidate(p.Code)
	return nil
}

// Upsert stores p under its code, replacing any promotion with the same code.
// It backs bulk loading, where codes are the natural key.
func (s *Service) Upsert(ctx context.Context, p *Promotion) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if err := s.repo.Upsert(ctx, p); err != nil {
		return errors.Wrap(err, "upsert promotion")
	}
	s.invalidate(p.Code)
	return nil
}

// Delete removes a promotion. Orders keep their copy of the code.
func (s *Service) Delete(ctx context.Context, id string) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrapf(err, "delete promotion %s", id)
	}
	s.invalidate(current.Code)
	return nil
}

// Get returns the promotion with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Promotion, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByCode returns the promotion with the given code, in any letter case.
func (s *Service) GetByCode(ctx context.Context, code string) (*Promotion, error) {
	return s.finder.FindByCode(ctx, NormalizeCode(code))
}

// List returns promotions matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Promotion, error) {
	return s.repo.List(ctx, f)
}

// Check evaluates the promotion behind code against items as of today.
// It does not record anything.
func (s *Service) Check(ctx context.Context, code string, items []cart.Item) (*Promotion, Result, error) {
	if err := cart.Validate(items); err != nil {
		return nil, Result{}, err
	}
	p, err := s.finder.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, Result{}, err
	}
	return p, Evaluate(p, Summarize(items), s.now().In(s.loc)), nil
}

func (s *Service) invalidate(code string) {
	if inv, ok := s.finder.(invalidator); ok {
		inv.Invalidate(code)
	}
}
