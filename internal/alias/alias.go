// Package alias implements Argus's Alias Repository (component D):
// approved equivalences between entity surface names, discovery of new
// alias candidates from article text, and a review workflow for
// promoting proposals to APPROVED.
package alias

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"argus/internal/entity"
	"argus/internal/errs"
	"argus/internal/model"
)

// ErrNotFound mirrors store.ErrNotFound without importing the store
// package directly, keeping alias's dependency surface to *sql.DB.
var ErrNotFound = errors.New("alias: not found")

// Repository backs the Alias Repository directly against Postgres,
// sharing the Persistent Store's connection pool.
type Repository struct {
	db    *sql.DB
	cache *lruCache
}

// New returns a Repository with an in-process LRU cache of approved
// equivalences, sized and aged per Config.Alias.
func New(db *sql.DB, capacity int, ttl time.Duration) *Repository {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Repository{db: db, cache: newLRUCache(capacity, ttl)}
}

// AreEquivalent reports whether nameA and nameB are linked by an APPROVED
// alias of the given type, in either direction. Implements entity.AliasChecker.
func (r *Repository) AreEquivalent(ctx context.Context, nameA, nameB string, typ model.EntityType) (bool, error) {
	na := entity.NormalizeWithVariants(nameA)
	nb := entity.NormalizeWithVariants(nameB)
	if nb < na {
		na, nb = nb, na
	}
	key := cacheKey(na, nb, string(typ))
	if v, ok := r.cache.Get(key); ok {
		return v, nil
	}

	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*) FROM entity_aliases
		WHERE status = 'APPROVED' AND type = $1
		  AND ((canonical = $2 AND alias = $3) OR (canonical = $3 AND alias = $2))`,
		string(typ), nameA, nameB).Scan(&count)
	if err != nil {
		return false, errs.Transientf("checking alias equivalence: %v", err)
	}
	equiv := count > 0
	r.cache.Set(key, equiv)
	return equiv, nil
}

// GetCanonical resolves name to its canonical form by repeatedly following
// the highest-confidence APPROVED alias whose alias side is the current
// name, for at most 3 hops. A hop that would revisit an earlier name ends
// the walk at the last name reached.
func (r *Repository) GetCanonical(ctx context.Context, name string, typ model.EntityType) (string, error) {
	current := name
	seen := map[string]bool{current: true}

	for hop := 0; hop < 3; hop++ {
		var canonical string
		err := r.db.QueryRowContext(ctx, `
			SELECT canonical FROM entity_aliases
			WHERE status = 'APPROVED' AND type = $1 AND alias = $2
			ORDER BY confidence DESC LIMIT 1`, string(typ), current).Scan(&canonical)
		if errors.Is(err, sql.ErrNoRows) {
			return current, nil
		}
		if err != nil {
			return "", errs.Transientf("resolving canonical alias: %v", err)
		}
		if seen[canonical] {
			return current, nil // cycle guard: stop at the last non-repeating hop
		}
		seen[canonical] = true
		current = canonical
	}
	return current, nil
}

// ProposeAlias records a new PENDING alias candidate from source. For an
// existing (canonical, alias, type) tuple no row is added: the existing
// row's id is returned and its confidence raised to the higher of the two.
func (r *Repository) ProposeAlias(ctx context.Context, canonical, aliasName string, typ model.EntityType, source model.AliasSource, confidence float64, patternID *string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO entity_aliases (canonical, alias, type, source, confidence, pattern_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (canonical, alias, type) DO UPDATE SET confidence = GREATEST(entity_aliases.confidence, EXCLUDED.confidence)
		RETURNING id`, canonical, aliasName, string(typ), string(source), confidence, patternID).Scan(&id)
	if err != nil {
		return 0, errs.Transientf("proposing alias: %v", err)
	}
	return id, nil
}

// Approve promotes a PENDING alias to APPROVED and credits its discovery
// pattern (if any) in alias_pattern_stats.
func (r *Repository) Approve(ctx context.Context, id int64, approvedBy string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Transientf("beginning approve transaction: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	var patternID sql.NullString
	if err := tx.QueryRowContext(ctx, `SELECT pattern_id FROM entity_aliases WHERE id = $1`, id).Scan(&patternID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return errs.Transientf("looking up alias for approval: %v", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE entity_aliases SET status = 'APPROVED', approved_at = now(), approved_by = $1 WHERE id = $2`,
		approvedBy, id); err != nil {
		return errs.Transientf("approving alias: %v", err)
	}

	if patternID.Valid {
		if err := bumpPatternStat(ctx, tx, patternID.String, true); err != nil {
			return err
		}
	}
	r.cache.Clear()
	return tx.Commit()
}

// Reject marks a PENDING alias REJECTED, credits its pattern's rejection
// count, and writes a NegativeMatch so the same pair is never re-proposed
// and re-fuzzy-matched by the Entity Normalizer.
func (r *Repository) Reject(ctx context.Context, id int64, reason string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Transientf("beginning reject transaction: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	var canonical, aliasName, typ string
	var patternID sql.NullString
	if err := tx.QueryRowContext(ctx, `
		SELECT canonical, alias, type, pattern_id FROM entity_aliases WHERE id = $1`, id,
	).Scan(&canonical, &aliasName, &typ, &patternID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return errs.Transientf("looking up alias for rejection: %v", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE entity_aliases SET status = 'REJECTED' WHERE id = $1`, id); err != nil {
		return errs.Transientf("rejecting alias: %v", err)
	}

	nameA, nameB := canonical, aliasName
	if nameB < nameA {
		nameA, nameB = nameB, nameA
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO entity_negative_matches (name_a, name_b, type, reason) VALUES ($1, $2, $3, $4)
		ON CONFLICT (name_a, name_b, type) DO NOTHING`, nameA, nameB, typ, reason); err != nil {
		return errs.Transientf("recording negative match: %v", err)
	}

	if patternID.Valid {
		if err := bumpPatternStat(ctx, tx, patternID.String, false); err != nil {
			return err
		}
	}
	r.cache.Clear()
	return tx.Commit()
}

func bumpPatternStat(ctx context.Context, tx *sql.Tx, patternID string, approved bool) error {
	col := "rejected"
	if approved {
		col = "approved"
	}
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO alias_pattern_stats (pattern_id, %s) VALUES ($1, 1)
		ON CONFLICT (pattern_id) DO UPDATE SET %s = alias_pattern_stats.%s + 1`, col, col, col), patternID)
	if err != nil {
		return errs.Transientf("updating pattern stats: %v", err)
	}
	return nil
}

// IsNegative implements entity.NegativeMatchChecker.
func (r *Repository) IsNegative(ctx context.Context, nameA, nameB string, typ model.EntityType) (bool, error) {
	a, b := nameA, nameB
	if b < a {
		a, b = b, a
	}
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*) FROM entity_negative_matches WHERE name_a = $1 AND name_b = $2 AND type = $3`,
		a, b, string(typ)).Scan(&count)
	if err != nil {
		return false, errs.Transientf("checking negative match: %v", err)
	}
	return count > 0, nil
}

// PatternStat returns a discovery pattern's approval/rejection counters.
func (r *Repository) PatternStat(ctx context.Context, patternID string) (*model.PatternStat, error) {
	var s model.PatternStat
	s.PatternID = patternID
	err := r.db.QueryRowContext(ctx, `
		SELECT approved, rejected, enabled FROM alias_pattern_stats WHERE pattern_id = $1`, patternID,
	).Scan(&s.Approved, &s.Rejected, &s.Enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.PatternStat{PatternID: patternID, Enabled: true}, nil
	}
	if err != nil {
		return nil, errs.Transientf("fetching pattern stat: %v", err)
	}
	return &s, nil
}

// PendingBatch returns up to limit PENDING aliases for human review,
// oldest first (the "review batch" half of the Alias Repository's CLI
// surface).
func (r *Repository) PendingBatch(ctx context.Context, limit int) ([]*model.Alias, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, canonical, alias, type, source, confidence, status, pattern_id, created_at, approved_at
		FROM entity_aliases WHERE status = 'PENDING' ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, errs.Transientf("listing pending aliases: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Alias
	for rows.Next() {
		a := &model.Alias{}
		var source, status string
		var patternID sql.NullString
		var approvedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.CanonicalName, &a.AliasName, &a.EntityType, &source, &a.Confidence,
			&status, &patternID, &a.CreatedAt, &approvedAt); err != nil {
			return nil, errs.Transientf("scanning alias row: %v", err)
		}
		a.Source = model.AliasSource(source)
		a.Status = model.AliasStatus(status)
		if patternID.Valid {
			a.PatternID = &patternID.String
		}
		if approvedAt.Valid {
			a.ApprovedAt = &approvedAt.Time
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
