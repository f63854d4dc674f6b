package store

import (
	"context"
	"database/sql"
	"errors"

	"argus/internal/errs"
	"argus/internal/model"
	"argus/internal/similarity"
)

// EntityRepo is the Persistent Store's view onto entities and
// article_entities, shared by the Entity Normalizer (component C) and the
// Entity Extractor (component E).
type EntityRepo struct{ q queryer }

func (d *DB) Entities() *EntityRepo { return &EntityRepo{q: d.conn} }
func (t *Tx) Entities() *EntityRepo { return &EntityRepo{q: t.tx} }

// Upsert inserts a new entity or returns the existing one for
// (type, normalizedForm), its uniqueness constraint.
func (r *EntityRepo) Upsert(ctx context.Context, canonicalName, normalizedForm string, typ model.EntityType) (*model.Entity, error) {
	var e model.Entity
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO entities (canonical_name, normalized_form, type)
		VALUES ($1, $2, $3)
		ON CONFLICT (type, normalized_form) DO UPDATE SET type = EXCLUDED.type
		RETURNING id, canonical_name, normalized_form, type, first_seen, parent_id`,
		canonicalName, normalizedForm, string(typ),
	).Scan(&e.ID, &e.CanonicalName, &e.NormalizedForm, &e.Type, &e.FirstSeen, &e.ParentID)
	if err != nil {
		return nil, errs.Transientf("upserting entity: %v", err)
	}
	return &e, nil
}

// GetByNormalizedForm looks up an existing entity by its (type, normalized
// form) key, used by the Entity Normalizer's equal-normalized-forms check.
func (r *EntityRepo) GetByNormalizedForm(ctx context.Context, normalizedForm string, typ model.EntityType) (*model.Entity, error) {
	var e model.Entity
	err := r.q.QueryRowContext(ctx, `
		SELECT id, canonical_name, normalized_form, type, first_seen, parent_id
		FROM entities WHERE normalized_form = $1 AND type = $2`, normalizedForm, string(typ),
	).Scan(&e.ID, &e.CanonicalName, &e.NormalizedForm, &e.Type, &e.FirstSeen, &e.ParentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errs.Transientf("looking up entity: %v", err)
	}
	return &e, nil
}

// ByType returns every known entity of a given type, the candidate pool the
// Entity Normalizer fuzzy-matches a new mention against.
func (r *EntityRepo) ByType(ctx context.Context, typ model.EntityType) ([]*model.Entity, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, canonical_name, normalized_form, type, first_seen, parent_id
		FROM entities WHERE type = $1`, string(typ))
	if err != nil {
		return nil, errs.Transientf("listing entities by type: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Entity
	for rows.Next() {
		var e model.Entity
		if err := rows.Scan(&e.ID, &e.CanonicalName, &e.NormalizedForm, &e.Type, &e.FirstSeen, &e.ParentID); err != nil {
			return nil, errs.Transientf("scanning entity row: %v", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// LinkArticle records an (article, entity, importance) association,
// replacing any prior importance for the same pair.
func (r *EntityRepo) LinkArticle(ctx context.Context, articleID, entityID int64, importance model.Importance) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO article_entities (article_id, entity_id, importance)
		VALUES ($1, $2, $3)
		ON CONFLICT (article_id, entity_id) DO UPDATE SET importance = EXCLUDED.importance`,
		articleID, entityID, string(importance))
	if err != nil {
		return errs.Transientf("linking article entity: %v", err)
	}
	return nil
}

// ForArticle returns every entity linked to an article with its importance,
// the input the Similarity Engine's entity-overlap factor consumes.
func (r *EntityRepo) ForArticle(ctx context.Context, articleID int64) ([]*model.ArticleEntity, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT article_id, entity_id, importance FROM article_entities WHERE article_id = $1`, articleID)
	if err != nil {
		return nil, errs.Transientf("listing article entities: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.ArticleEntity
	for rows.Next() {
		var ae model.ArticleEntity
		var importance string
		if err := rows.Scan(&ae.ArticleID, &ae.EntityID, &importance); err != nil {
			return nil, errs.Transientf("scanning article entity row: %v", err)
		}
		ae.Importance = model.Importance(importance)
		out = append(out, &ae)
	}
	return out, rows.Err()
}

// ForArticleTyped returns every entity linked to an article, joined against
// entities for its type, the exact shape the Similarity Engine's
// entity-overlap factor compares.
func (r *EntityRepo) ForArticleTyped(ctx context.Context, articleID int64) ([]similarity.WithType, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT ae.entity_id, e.type, ae.importance
		FROM article_entities ae JOIN entities e ON e.id = ae.entity_id
		WHERE ae.article_id = $1`, articleID)
	if err != nil {
		return nil, errs.Transientf("listing typed article entities: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var out []similarity.WithType
	for rows.Next() {
		var w similarity.WithType
		var typ, importance string
		if err := rows.Scan(&w.EntityID, &typ, &importance); err != nil {
			return nil, errs.Transientf("scanning typed article entity row: %v", err)
		}
		w.Type = model.EntityType(typ)
		w.Importance = model.Importance(importance)
		out = append(out, w)
	}
	return out, rows.Err()
}
