package alias

import (
	"context"

	"argus/internal/entity"
	"argus/internal/errs"
	"argus/internal/model"
)

// TestResult is the structured answer to the alias-admin "test" operation:
// how a candidate pair would be judged both without and with the database's
// approved-alias table consulted.
type TestResult struct {
	InMemory     bool
	DB           bool
	NormalizedA  string
	NormalizedB  string
}

// Test reports how nameA/nameB of type typ would resolve: InMemory is
// matcher's full Match decision (exact form, negative matches, approved
// aliases and the type-specific rules, through the checkers matcher was
// built with); DB is true when this Repository's AreEquivalent finds an
// approved alias or InMemory is true.
func (r *Repository) Test(ctx context.Context, matcher *entity.Matcher, nameA, nameB string, typ model.EntityType) (TestResult, error) {
	na := entity.NormalizeWithVariants(nameA)
	nb := entity.NormalizeWithVariants(nameB)

	inMemory, err := matcher.Match(ctx, nameA, na, nameB, nb, typ)
	if err != nil {
		return TestResult{}, err
	}

	dbEquiv, err := r.AreEquivalent(ctx, nameA, nameB, typ)
	if err != nil {
		return TestResult{}, err
	}

	return TestResult{
		InMemory:    inMemory.Match,
		DB:          dbEquiv || inMemory.Match,
		NormalizedA: na,
		NormalizedB: nb,
	}, nil
}

// CreateReviewBatch is an alias for PendingBatch under the CLI's naming.
func (r *Repository) CreateReviewBatch(ctx context.Context, size int) ([]*model.Alias, error) {
	return r.PendingBatch(ctx, size)
}

// ReviewBatch fetches one PENDING alias by id, for an operator to inspect
// before calling Approve or Reject.
func (r *Repository) ReviewBatch(ctx context.Context, id int64) (*model.Alias, error) {
	batch, err := r.PendingBatch(ctx, 1000)
	if err != nil {
		return nil, err
	}
	for _, a := range batch {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

// Stats summarizes the Alias Repository's current review queue as alias
// counts by status.
type Stats struct {
	Pending  int
	Approved int
	Rejected int
}

// Stats reports counts by status across entity_aliases.
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			count(*) FILTER (WHERE status = 'PENDING'),
			count(*) FILTER (WHERE status = 'APPROVED'),
			count(*) FILTER (WHERE status = 'REJECTED')
		FROM entity_aliases`).Scan(&s.Pending, &s.Approved, &s.Rejected)
	if err != nil {
		return Stats{}, errs.Transientf("computing alias stats: %v", err)
	}
	return s, nil
}

// MigrateStatic seeds the Alias Repository from a fixed catalog of known
// equivalences (acronym expansions, common abbreviations curated outside
// article text), each proposed with AliasSourceStatic and immediately
// approved since a static catalog entry needs no human review.
func (r *Repository) MigrateStatic(ctx context.Context, entries []StaticEntry) (int, error) {
	applied := 0
	for _, e := range entries {
		id, err := r.ProposeAlias(ctx, e.Canonical, e.Alias, e.Type, model.AliasSourceStatic, 1.0, nil)
		if err != nil {
			return applied, err
		}
		if err := r.Approve(ctx, id, "static-migration"); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// StaticEntry is one row of MigrateStatic's seed catalog.
type StaticEntry struct {
	Canonical string
	Alias     string
	Type      model.EntityType
}
