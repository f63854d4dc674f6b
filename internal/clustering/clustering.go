// Package clustering implements Argus's Clustering Engine (component G):
// assigning an analyzed article to an existing cluster or seeding a new
// one, regenerating summaries, computing importance, and merging clusters
// whose membership has converged. The assignment algorithm is entity-driven
// mean pairwise similarity against a candidate cluster's members, rather
// than a connected-components pass over an ad hoc similarity graph.
package clustering

import (
	"context"
	"math"
	"time"

	"argus/internal/config"
	"argus/internal/model"
	"argus/internal/similarity"
)

// Store is the Persistent Store surface the Clustering Engine needs.
type Store interface {
	Get(ctx context.Context, id int64) (*model.Cluster, error)
	ActiveWithAnyEntity(ctx context.Context, entityIDs []int64) ([]*model.Cluster, error)
	Create(ctx context.Context, primaryEntityIDs []int64) (int64, error)
	UpdatePrimaryEntities(ctx context.Context, id int64, entityIDs []int64) error
	SetSummary(ctx context.Context, id int64, summary string, version int) error
	MarkNeedsSummaryUpdate(ctx context.Context, id int64) error
	SetImportance(ctx context.Context, id int64, score float64) error
	AddMapping(ctx context.Context, articleID, clusterID int64, similarity float64) error
	MappingsForCluster(ctx context.Context, clusterID int64) ([]*model.ClusterMapping, error)
	Merge(ctx context.Context, srcID, dstID int64, reason string) error
}

// SummaryGenerator produces a fresh cluster summary from its member
// articles' summaries (the Analysis Worker supplies an LLM-backed one).
type SummaryGenerator interface {
	Summarize(ctx context.Context, articleSummaries []string) (string, error)
}

// Engine assigns articles to clusters, configured via a chained With*()
// builder over a required Store/similarity engine pair.
type Engine struct {
	store      Store
	similarity *similarity.Engine
	summaries  SummaryGenerator
	cfg        *config.Clustering
}

// New returns an Engine with the required collaborators; pair with
// With*() calls to override thresholds for tests.
func New(store Store, sim *similarity.Engine, summaries SummaryGenerator, cfg *config.Clustering) *Engine {
	return &Engine{store: store, similarity: sim, summaries: summaries, cfg: cfg}
}

func (e *Engine) WithAssignThreshold(t float64) *Engine {
	cp := *e.cfg
	cp.AssignThreshold = t
	e.cfg = &cp
	return e
}

// AssignResult reports what Assign did: joined an existing cluster or
// created a new one.
type AssignResult struct {
	ClusterID int64
	Created   bool
	Score     float64
}

// MemberSimilarity is one existing cluster member's similarity report
// against the incoming article, used to compute the mean pairwise score.
type MemberSimilarity func(ctx context.Context, clusterID, memberArticleID int64) (similarity.Report, error)

// Assign decides which cluster articleID (with the given primary entity
// IDs) belongs to. It queries Store for active clusters sharing at least
// one of those entities, scores each by the mean pairwise similarity
// between articleID and the cluster's existing members, and joins the
// highest-scoring cluster if it clears Config.Clustering.AssignThreshold
// (default 0.70). Otherwise it creates a new cluster.
func (e *Engine) Assign(ctx context.Context, articleID int64, primaryEntityIDs []int64, scoreMember MemberSimilarity) (AssignResult, error) {
	candidates, err := e.store.ActiveWithAnyEntity(ctx, primaryEntityIDs)
	if err != nil {
		return AssignResult{}, err
	}

	var bestCluster *model.Cluster
	var bestScore float64
	for _, c := range candidates {
		mappings, err := e.store.MappingsForCluster(ctx, c.ID)
		if err != nil {
			return AssignResult{}, err
		}
		if len(mappings) == 0 {
			continue
		}
		var sum float64
		for _, mapping := range mappings {
			report, err := scoreMember(ctx, c.ID, mapping.ArticleID)
			if err != nil {
				return AssignResult{}, err
			}
			sum += report.Score
		}
		mean := sum / float64(len(mappings))
		if mean > bestScore {
			bestScore = mean
			bestCluster = c
		}
	}

	if bestCluster != nil && bestScore >= e.cfg.AssignThreshold {
		if err := e.store.AddMapping(ctx, articleID, bestCluster.ID, bestScore); err != nil {
			return AssignResult{}, err
		}
		if err := e.refreshPrimaryEntities(ctx, bestCluster.ID, primaryEntityIDs); err != nil {
			return AssignResult{}, err
		}
		if err := e.maybeFlagSummary(ctx, bestCluster.ID); err != nil {
			return AssignResult{}, err
		}
		return AssignResult{ClusterID: bestCluster.ID, Score: bestScore}, nil
	}

	clusterID, err := e.store.Create(ctx, capEntities(primaryEntityIDs, e.cfg.MaxPrimaryEntities))
	if err != nil {
		return AssignResult{}, err
	}
	if err := e.store.AddMapping(ctx, articleID, clusterID, 1.0); err != nil {
		return AssignResult{}, err
	}
	return AssignResult{ClusterID: clusterID, Created: true, Score: 1.0}, nil
}

// refreshPrimaryEntities folds the new member's entities into the
// cluster's primary set, keeping it capped at MaxPrimaryEntities.
func (e *Engine) refreshPrimaryEntities(ctx context.Context, clusterID int64, newEntityIDs []int64) error {
	c, err := e.store.Get(ctx, clusterID)
	if err != nil {
		return err
	}
	merged := mergeUnique(c.PrimaryEntityIDs, newEntityIDs)
	return e.store.UpdatePrimaryEntities(ctx, clusterID, capEntities(merged, e.cfg.MaxPrimaryEntities))
}

func mergeUnique(a, b []int64) []int64 {
	seen := map[int64]bool{}
	var out []int64
	for _, id := range a {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range b {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func capEntities(ids []int64, max int) []int64 {
	if max <= 0 || len(ids) <= max {
		return ids
	}
	return ids[:max]
}

// maybeFlagSummary implements two regeneration triggers: the
// article count is a power of two (1, 2, 4, 8, 16, ...),
// or the summary hasn't been touched within the staleness window.
func (e *Engine) maybeFlagSummary(ctx context.Context, clusterID int64) error {
	c, err := e.store.Get(ctx, clusterID)
	if err != nil {
		return err
	}
	if isPowerOfTwo(c.ArticleCount) || time.Since(c.LastUpdated) > e.cfg.SummaryStalenessWindow {
		return e.store.MarkNeedsSummaryUpdate(ctx, clusterID)
	}
	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// RegenerateSummary produces and stores a fresh summary for a cluster
// flagged NeedsSummaryUpdate, bumping its summary_version.
func (e *Engine) RegenerateSummary(ctx context.Context, clusterID int64, memberSummaries []string) error {
	c, err := e.store.Get(ctx, clusterID)
	if err != nil {
		return err
	}
	if !c.NeedsSummaryUpdate {
		return nil
	}
	summary, err := e.summaries.Summarize(ctx, memberSummaries)
	if err != nil {
		return err
	}
	return e.store.SetSummary(ctx, clusterID, summary, c.SummaryVersion+1)
}

// Importance computes a cluster's importance score:
//
//	w1*log1p(article_count) + w2*avg_source_quality + w3*recency_decay
//
// recency_decay is an exponential half-life of 24h: 2^(-age_hours/24), so it
// is 1.0 at last_updated=now, 0.5 at 24h, and ~0.0078 at 7 days.
func (e *Engine) Importance(ctx context.Context, clusterID int64, avgSourceQuality float64) (float64, error) {
	c, err := e.store.Get(ctx, clusterID)
	if err != nil {
		return 0, err
	}
	recency := math.Pow(2, -time.Since(c.LastUpdated).Hours()/24)
	score := e.cfg.ImportanceW1*math.Log1p(float64(c.ArticleCount)) +
		e.cfg.ImportanceW2*avgSourceQuality +
		e.cfg.ImportanceW3*recency
	if err := e.store.SetImportance(ctx, clusterID, score); err != nil {
		return 0, err
	}
	return score, nil
}

// MaybeMerge checks whether cluster a and cluster b have converged enough
// to fold together: their primary entity sets must clear the Jaccard
// threshold and their current summaries must clear the cosine threshold
//. The smaller (by article count) cluster is
// folded into the larger; ties fold the newer into the older.
func (e *Engine) MaybeMerge(ctx context.Context, aID, bID int64, summaryEmbeddingA, summaryEmbeddingB []float64) (bool, error) {
	a, err := e.store.Get(ctx, aID)
	if err != nil {
		return false, err
	}
	b, err := e.store.Get(ctx, bID)
	if err != nil {
		return false, err
	}
	if a.Status != model.ClusterStatusActive || b.Status != model.ClusterStatusActive {
		return false, nil
	}

	if jaccardInt64(a.PrimaryEntityIDs, b.PrimaryEntityIDs) < e.cfg.MergeJaccardThreshold {
		return false, nil
	}

	cos := cosineOrZero(summaryEmbeddingA, summaryEmbeddingB)
	if cos < e.cfg.MergeSummaryCosineThreshold {
		return false, nil
	}

	src, dst := a, b
	if b.ArticleCount < a.ArticleCount || (b.ArticleCount == a.ArticleCount && b.CreationDate.After(a.CreationDate)) {
		src, dst = b, a
	}

	if err := e.store.Merge(ctx, src.ID, dst.ID, "jaccard+summary-cosine convergence"); err != nil {
		return false, err
	}
	merged := mergeUnique(dst.PrimaryEntityIDs, src.PrimaryEntityIDs)
	if err := e.store.UpdatePrimaryEntities(ctx, dst.ID, capEntities(merged, e.cfg.MaxPrimaryEntities)); err != nil {
		return false, err
	}
	return true, nil
}

func jaccardInt64(a, b []int64) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := map[int64]int{}
	for _, id := range a {
		set[id]++
	}
	var intersection, unionCount int
	seen := map[int64]bool{}
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if set[id] > 0 {
			intersection++
		}
		seen[id] = true
	}
	unionCount = len(seen)
	if unionCount == 0 {
		return 0
	}
	return float64(intersection) / float64(unionCount)
}

func cosineOrZero(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
