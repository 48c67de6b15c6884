package reaction

import (
	"context"
	"fmt"
	"log"

	"github.com/example/trade-compliance/internal/domain/snapshot"
	lru "github.com/hashicorp/golang-lru/v2"
)

// EntityRef identifies a dependent entity discovered through an explicit
// relationship (e.g. an Order referencing a changed Product).
type EntityRef struct {
	Type string
	ID   string
}

func (r EntityRef) Key() string {
	return snapshot.EntityKey(r.Type, r.ID)
}

// DependentFinder pages through the entities that depend on a changed one.
// Offset-based so tens of thousands of dependents never load wholesale.
type DependentFinder interface {
	FindDependents(ctx context.Context, entityType, entityID string, offset, limit int) ([]EntityRef, error)
}

// Revalidator re-runs validation for one dependent entity. External
// collaborator; typically captures a rule snapshot and re-triggers the
// orchestrator for the dependent.
type Revalidator interface {
	Revalidate(ctx context.Context, ref EntityRef) error
}

const defaultCascadePageSize = 500

// CascadeValidation re-validates every entity depending on the one that
// changed. Dependents are fetched page by page; a per-instance LRU of
// (dependent, new version) pairs suppresses duplicate revalidation when the
// same pointer pair is redelivered. The cache is scoped to the reaction
// instance, never process-wide.
type CascadeValidation struct {
	finder      DependentFinder
	revalidator Revalidator
	accept      Predicate
	pageSize    int
	seen        *lru.Cache[string, string] // dependent key -> new pointer version handled
}

func NewCascadeValidation(finder DependentFinder, revalidator Revalidator) (*CascadeValidation, error) {
	seen, err := lru.New[string, string](4096)
	if err != nil {
		return nil, err
	}
	return &CascadeValidation{
		finder:      finder,
		revalidator: revalidator,
		accept:      ForTypes(snapshot.TypeProduct, snapshot.TypeEntry),
		pageSize:    defaultCascadePageSize,
		seen:        seen,
	}, nil
}

func (c *CascadeValidation) Name() string {
	return "cascade-validation"
}

func (c *CascadeValidation) Accept(snap snapshot.Snapshot) bool {
	return c.accept(snap)
}

func (c *CascadeValidation) Compare(ctx context.Context, inv snapshot.Invocation) error {
	total := 0
	for offset := 0; ; offset += c.pageSize {
		page, err := c.finder.FindDependents(ctx, inv.EntityType, inv.EntityID, offset, c.pageSize)
		if err != nil {
			return fmt.Errorf("failed to page dependents of %s at offset %d: %w", inv.EntityKey(), offset, err)
		}
		if len(page) == 0 {
			break
		}

		for _, ref := range page {
			if v, ok := c.seen.Get(ref.Key()); ok && v == inv.New.Version {
				continue
			}
			if err := c.revalidator.Revalidate(ctx, ref); err != nil {
				// One dependent failing must not stop the sweep.
				log.Printf("[Cascade] Failed to revalidate %s (dependent of %s): %v", ref.Key(), inv.EntityKey(), err)
				continue
			}
			c.seen.Add(ref.Key(), inv.New.Version)
			total++
		}

		if len(page) < c.pageSize {
			break
		}
	}

	if total > 0 {
		log.Printf("[Cascade] Revalidated %d dependents of %s", total, inv.EntityKey())
	}
	return nil
}
