package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"argus/internal/errs"
	"argus/internal/model"
)

// ClusterRepo is the Persistent Store's view onto article_clusters,
// article_cluster_mappings, and cluster_merge_history (component G's
// backing store).
type ClusterRepo struct{ q queryer }

func (d *DB) Clusters() *ClusterRepo { return &ClusterRepo{q: d.conn} }
func (t *Tx) Clusters() *ClusterRepo { return &ClusterRepo{q: t.tx} }

// Create inserts a new active cluster seeded with its first article's
// primary entities.
func (r *ClusterRepo) Create(ctx context.Context, primaryEntityIDs []int64) (int64, error) {
	ids, err := json.Marshal(primaryEntityIDs)
	if err != nil {
		return 0, errs.Validationf("marshaling primary entity ids: %v", err)
	}
	var id int64
	err = r.q.QueryRowContext(ctx, `
		INSERT INTO article_clusters (primary_entity_ids) VALUES ($1)
		RETURNING id`, ids).Scan(&id)
	if err != nil {
		return 0, errs.Transientf("creating cluster: %v", err)
	}
	return id, nil
}

// Get fetches a cluster by ID.
func (r *ClusterRepo) Get(ctx context.Context, id int64) (*model.Cluster, error) {
	row := r.q.QueryRowContext(ctx, clusterSelectCols+` WHERE id = $1`, id)
	return scanCluster(row)
}

// ActiveWithAnyEntity returns active clusters that share at least one
// primary entity with the given set, the Clustering Engine's candidate
// pool before it scores mean pairwise similarity.
func (r *ClusterRepo) ActiveWithAnyEntity(ctx context.Context, entityIDs []int64) ([]*model.Cluster, error) {
	ids, err := json.Marshal(entityIDs)
	if err != nil {
		return nil, errs.Validationf("marshaling entity ids: %v", err)
	}
	rows, err := r.q.QueryContext(ctx, clusterSelectCols+`
		WHERE status = 'active'
		  AND primary_entity_ids ?| (SELECT array_agg(e) FROM jsonb_array_elements_text($1::jsonb) e)`, ids)
	if err != nil {
		return nil, errs.Transientf("querying candidate clusters: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Cluster
	for rows.Next() {
		c, err := scanClusterRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdatePrimaryEntities rewrites a cluster's capped primary-entity set
// after a merge or a new article's entities shift the mean.
func (r *ClusterRepo) UpdatePrimaryEntities(ctx context.Context, id int64, entityIDs []int64) error {
	ids, err := json.Marshal(entityIDs)
	if err != nil {
		return errs.Validationf("marshaling primary entity ids: %v", err)
	}
	_, err = r.q.ExecContext(ctx, `
		UPDATE article_clusters SET primary_entity_ids = $1, last_updated = now() WHERE id = $2`, ids, id)
	if err != nil {
		return errs.Transientf("updating primary entities: %v", err)
	}
	return nil
}

// SetSummary records a regenerated cluster summary and clears the
// needs-update flag.
func (r *ClusterRepo) SetSummary(ctx context.Context, id int64, summary string, version int) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE article_clusters
		SET summary = $1, summary_version = $2, needs_summary_update = false, last_updated = now()
		WHERE id = $3`, summary, version, id)
	if err != nil {
		return errs.Transientf("setting cluster summary: %v", err)
	}
	return nil
}

// MarkNeedsSummaryUpdate flags a cluster for regeneration on the next pass.
func (r *ClusterRepo) MarkNeedsSummaryUpdate(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE article_clusters SET needs_summary_update = true WHERE id = $1`, id)
	if err != nil {
		return errs.Transientf("flagging cluster for summary update: %v", err)
	}
	return nil
}

// SetImportance records the Clustering Engine's computed importance score
//.
func (r *ClusterRepo) SetImportance(ctx context.Context, id int64, score float64) error {
	_, err := r.q.ExecContext(ctx, `UPDATE article_clusters SET importance_score = $1 WHERE id = $2`, score, id)
	if err != nil {
		return errs.Transientf("setting cluster importance: %v", err)
	}
	return nil
}

// AddMapping links an article into a cluster, incrementing article_count.
func (r *ClusterRepo) AddMapping(ctx context.Context, articleID, clusterID int64, similarity float64) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO article_cluster_mappings (article_id, cluster_id, similarity_score)
		VALUES ($1, $2, $3)
		ON CONFLICT (article_id, cluster_id) DO UPDATE SET similarity_score = EXCLUDED.similarity_score`,
		articleID, clusterID, similarity)
	if err != nil {
		return errs.Transientf("adding cluster mapping: %v", err)
	}
	if _, err := r.q.ExecContext(ctx, `
		UPDATE article_clusters SET article_count = (
			SELECT count(*) FROM article_cluster_mappings WHERE cluster_id = $1
		) WHERE id = $1`, clusterID); err != nil {
		return errs.Transientf("refreshing cluster article count: %v", err)
	}
	return nil
}

// MappingsForCluster returns every article mapped to a cluster.
func (r *ClusterRepo) MappingsForCluster(ctx context.Context, clusterID int64) ([]*model.ClusterMapping, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT article_id, cluster_id, added_date, similarity_score
		FROM article_cluster_mappings WHERE cluster_id = $1`, clusterID)
	if err != nil {
		return nil, errs.Transientf("listing cluster mappings: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.ClusterMapping
	for rows.Next() {
		var m model.ClusterMapping
		if err := rows.Scan(&m.ArticleID, &m.ClusterID, &m.AddedDate, &m.SimilarityScore); err != nil {
			return nil, errs.Transientf("scanning cluster mapping: %v", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Merge folds src into dst: repoints src's article mappings onto dst,
// marks src merged, and appends a cluster_merge_history row. Callers run this inside a transaction.
func (r *ClusterRepo) Merge(ctx context.Context, srcID, dstID int64, reason string) error {
	if _, err := r.q.ExecContext(ctx, `
		UPDATE article_cluster_mappings SET cluster_id = $1
		WHERE cluster_id = $2
		  AND article_id NOT IN (SELECT article_id FROM article_cluster_mappings WHERE cluster_id = $1)`,
		dstID, srcID); err != nil {
		return errs.Transientf("repointing merge mappings: %v", err)
	}
	if _, err := r.q.ExecContext(ctx, `DELETE FROM article_cluster_mappings WHERE cluster_id = $1`, srcID); err != nil {
		return errs.Transientf("clearing source mappings: %v", err)
	}
	if _, err := r.q.ExecContext(ctx, `
		UPDATE article_clusters SET status = 'merged', last_updated = now() WHERE id = $1`, srcID); err != nil {
		return errs.Transientf("marking source cluster merged: %v", err)
	}
	if _, err := r.q.ExecContext(ctx, `
		UPDATE article_clusters SET article_count = (
			SELECT count(*) FROM article_cluster_mappings WHERE cluster_id = $1
		), needs_summary_update = true, last_updated = now() WHERE id = $1`, dstID); err != nil {
		return errs.Transientf("refreshing merge target: %v", err)
	}
	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO cluster_merge_history (original_cluster_id, merged_into_cluster_id, merge_reason)
		VALUES ($1, $2, $3)`, srcID, dstID, reason); err != nil {
		return errs.Transientf("recording merge history: %v", err)
	}
	return nil
}

// ResolveActiveRoot follows merged_into_cluster_id until it reaches an
// active cluster, returning a Fatal error if the chain runs past 64 hops
// (as a cycle would).
func (r *ClusterRepo) ResolveActiveRoot(ctx context.Context, id int64) (int64, error) {
	current := id
	for i := 0; i < 64; i++ { // hard ceiling: a merge chain this long indicates data corruption
		c, err := r.Get(ctx, current)
		if err != nil {
			return 0, err
		}
		if c.Status == model.ClusterStatusActive {
			return current, nil
		}
		var next int64
		err = r.q.QueryRowContext(ctx, `
			SELECT merged_into_cluster_id FROM cluster_merge_history WHERE original_cluster_id = $1`, current,
		).Scan(&next)
		if err != nil {
			return 0, errs.Dataf("cluster %d is not active but has no merge history: %v", current, err)
		}
		current = next
	}
	return 0, errs.Fatalf("cluster merge chain exceeded 64 hops resolving root of %d", id)
}

const clusterSelectCols = `
	SELECT id, creation_date, last_updated, primary_entity_ids, summary, summary_version,
	       article_count, importance_score, timeline_events, has_timeline, needs_summary_update, status
	FROM article_clusters`

func scanCluster(row *sql.Row) (*model.Cluster, error) {
	c := &model.Cluster{}
	var ids []byte
	var summary, timeline sql.NullString
	var status string
	if err := row.Scan(&c.ID, &c.CreationDate, &c.LastUpdated, &ids, &summary, &c.SummaryVersion,
		&c.ArticleCount, &c.ImportanceScore, &timeline, &c.HasTimeline, &c.NeedsSummaryUpdate, &status,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errs.Transientf("scanning cluster: %v", err)
	}
	return finishCluster(c, ids, summary, timeline, status)
}

func scanClusterRow(rows *sql.Rows) (*model.Cluster, error) {
	c := &model.Cluster{}
	var ids []byte
	var summary, timeline sql.NullString
	var status string
	if err := rows.Scan(&c.ID, &c.CreationDate, &c.LastUpdated, &ids, &summary, &c.SummaryVersion,
		&c.ArticleCount, &c.ImportanceScore, &timeline, &c.HasTimeline, &c.NeedsSummaryUpdate, &status,
	); err != nil {
		return nil, errs.Transientf("scanning cluster row: %v", err)
	}
	return finishCluster(c, ids, summary, timeline, status)
}

func finishCluster(c *model.Cluster, ids []byte, summary, timeline sql.NullString, status string) (*model.Cluster, error) {
	c.Status = model.ClusterStatus(status)
	if summary.Valid {
		s := summary.String
		c.Summary = &s
	}
	if timeline.Valid {
		t := timeline.String
		c.TimelineEvents = &t
	}
	if len(ids) > 0 {
		if err := json.Unmarshal(ids, &c.PrimaryEntityIDs); err != nil {
			return nil, errs.Dataf("unmarshaling primary entity ids: %v", err)
		}
	}
	return c, nil
}
