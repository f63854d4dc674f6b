// Package similarity implements Argus's Similarity Engine (component F):
// the weighted score S = Wv*s_vec + We*s_ent + Wt*s_tmp between two
// articles, and the dual-query candidate retrieval that feeds the
// Clustering Engine.
package similarity

import (
	"context"
	"math"
	"time"

	"argus/internal/config"
	"argus/internal/errs"
	"argus/internal/llm"
	"argus/internal/model"
	"argus/internal/vectorstore"
)

// Report is the full breakdown of a similarity comparison, kept around for
// diagnostics rather than collapsed to a bare float.
type Report struct {
	Score           float64
	VectorFactor    float64
	EntityFactor    float64
	TemporalFactor  float64
	VectorDegraded  bool // s_vec defaulted to 0: missing embedding or near-zero magnitude
	DegradedReason  string
}

// Engine computes similarity between articles' entity sets and embeddings.
type Engine struct {
	cfg *config.Similarity
}

func New(cfg *config.Similarity) *Engine {
	return &Engine{cfg: cfg}
}

// Score computes the full weighted similarity between article A and B.
// Comparing an article to itself always yields 1.0 regardless of floating
// point noise in the other factors.
func (e *Engine) Score(
	embeddingA, embeddingB []float64,
	entitiesA, entitiesB []WithType,
	dateA, dateB *time.Time,
	sameArticle bool,
) Report {
	if sameArticle {
		return Report{Score: 1, VectorFactor: 1, EntityFactor: 1, TemporalFactor: 1}
	}

	sVec, degraded, reason := e.vectorFactor(embeddingA, embeddingB)
	sEnt, anyEntityOverlap := e.entityFactor(entitiesA, entitiesB)
	sTmp := e.temporalFactor(dateA, dateB)

	score := e.cfg.Wv*sVec + e.cfg.We*sEnt + e.cfg.Wt*sTmp
	// With zero shared entities, no combination of vector/temporal agreement
	// may push the overall score past 0.60.
	if !anyEntityOverlap && score > 0.60 {
		score = 0.60
	}
	return Report{
		Score: score, VectorFactor: sVec, EntityFactor: sEnt, TemporalFactor: sTmp,
		VectorDegraded: degraded, DegradedReason: reason,
	}
}

// vectorFactor is cosine similarity clamped to [0,1] (a negative cosine
// contributes nothing rather than actively penalizing the score). Embeddings
// with near-zero magnitude (a degraded-data condition, contract threshold
// 1e-3) default s_vec to 0 rather than propagate NaN/Inf.
func (e *Engine) vectorFactor(a, b []float64) (float64, bool, string) {
	if len(a) == 0 || len(b) == 0 {
		return 0, true, "missing embedding"
	}
	if magnitude(a) < 1e-3 || magnitude(b) < 1e-3 {
		return 0, true, "near-zero magnitude"
	}
	cos := llm.CosineSimilarity(a, b)
	return math.Max(0, math.Min(1, cos)), false, ""
}

func magnitude(v []float64) float64 {
	var sum float64
	for _, f := range v {
		sum += f * f
	}
	return math.Sqrt(sum)
}

// entityFactor is the type-weighted Jaccard overlap of two articles'
// entity sets, each entity contributing its importance weight:
//
//	s_ent = sum_t( weight_t * jaccard_t(A, B) ) / sum_t( weight_t )
//
// over the entity types t present in A∪B that carry a non-zero weight.
//
// If A and B share no entities at all, the result is clamped to at most
// 0.60; the caller also clamps the overall weighted score to the same bound
// in that case, since a zero-overlap s_ent alone doesn't stop s_vec/s_tmp
// from pushing the combined score past the threshold.
func (e *Engine) entityFactor(a, b []WithType) (float64, bool) {
	byTypeA := groupByType(a)
	byTypeB := groupByType(b)

	types := map[model.EntityType]bool{}
	for t := range byTypeA {
		types[t] = true
	}
	for t := range byTypeB {
		types[t] = true
	}
	if len(types) == 0 {
		return 0, false
	}

	anyOverlap := false
	var total, weightSum float64
	for t := range types {
		w := e.cfg.EntityWeights[string(t)]
		if w == 0 {
			continue
		}
		j, overlap := weightedJaccard(byTypeA[t], byTypeB[t])
		if overlap {
			anyOverlap = true
		}
		total += w * j
		weightSum += w
	}
	if weightSum == 0 {
		return 0, false
	}
	score := total / weightSum
	if !anyOverlap && score > 0.60 {
		score = 0.60
	}
	return score, anyOverlap
}

// WithType pairs an ArticleEntity with its Entity's type, since the
// article_entities table itself only stores entity_id; the
// caller joins against the entities table to get here.
type WithType struct {
	EntityID   int64
	Type       model.EntityType
	Importance model.Importance
}

func groupByType(entities []WithType) map[model.EntityType]map[int64]model.Importance {
	out := make(map[model.EntityType]map[int64]model.Importance)
	for _, e := range entities {
		if out[e.Type] == nil {
			out[e.Type] = make(map[int64]model.Importance)
		}
		out[e.Type][e.EntityID] = e.Importance
	}
	return out
}

func weightedJaccard(a, b map[int64]model.Importance) (float64, bool) {
	if len(a) == 0 && len(b) == 0 {
		return 0, false
	}
	union := map[int64]bool{}
	for id := range a {
		union[id] = true
	}
	for id := range b {
		union[id] = true
	}

	var numerator, denominator float64
	overlap := false
	for id := range union {
		wa, okA := a[id]
		wb, okB := b[id]
		if okA && okB {
			overlap = true
			numerator += math.Min(wa.Weight(), wb.Weight())
			denominator += math.Max(wa.Weight(), wb.Weight())
		} else if okA {
			denominator += wa.Weight()
		} else {
			denominator += wb.Weight()
		}
	}
	if denominator == 0 {
		return 0, overlap
	}
	return numerator / denominator, overlap
}

// temporalFactor is a piecewise-linear decay of the gap between two
// articles' best dates: 1.0 at zero days, linearly down to 0.5
// at 7 days, linearly down to 0 at 30 days and beyond. Missing dates on
// either side yield 0 (a DATA-kind degradation, not an error).
func (e *Engine) temporalFactor(a, b *time.Time) float64 {
	if a == nil || b == nil {
		return 0
	}
	days := math.Abs(a.Sub(*b).Hours() / 24)
	switch {
	case days <= 7:
		return 1 - (days/7)*0.5
	case days <= 30:
		return 0.5 - ((days-7)/23)*0.5
	default:
		return 0
	}
}

// Candidates bundles the dual-query candidate retrieval result: a vector
// ANN neighbor set and a date-window set, deduplicated by article ID
//.
type Candidates struct {
	ArticleIDs []int64
}

// VectorSearcher is the Vector Store Adapter surface candidate retrieval needs.
type VectorSearcher interface {
	TopK(ctx context.Context, query []float64, k int, excludeID int64) ([]vectorstore.Match, error)
}

// DateWindowSearcher is the Persistent Store surface candidate retrieval needs.
type DateWindowSearcher interface {
	RecentByDatePrefix(ctx context.Context, fromPrefix, toPrefix string, limit int) ([]*model.Article, error)
}

// CandidatesFor runs the dual-query retrieval for article: a vector ANN
// top-K search plus a DB query over the configured date window, unioned
// and deduplicated.
func (e *Engine) CandidatesFor(ctx context.Context, vectors VectorSearcher, dates DateWindowSearcher, articleID int64, embedding []float64, best *time.Time) (Candidates, error) {
	seen := map[int64]bool{}
	var ids []int64

	if len(embedding) > 0 {
		matches, err := vectors.TopK(ctx, embedding, e.cfg.CandidateTopK, articleID)
		if err != nil {
			return Candidates{}, errs.Transientf("vector candidate search: %v", err)
		}
		for _, m := range matches {
			if !seen[m.ArticleID] {
				seen[m.ArticleID] = true
				ids = append(ids, m.ArticleID)
			}
		}
	}

	if best != nil {
		from := model.DatePrefix(best.AddDate(0, 0, -e.cfg.WindowDaysBefore))
		to := model.DatePrefix(best.AddDate(0, 0, e.cfg.WindowDaysAfter))
		recent, err := dates.RecentByDatePrefix(ctx, from, to, e.cfg.CandidateTopK)
		if err != nil {
			return Candidates{}, errs.Transientf("date window candidate search: %v", err)
		}
		for _, a := range recent {
			if a.ID != articleID && !seen[a.ID] {
				seen[a.ID] = true
				ids = append(ids, a.ID)
			}
		}
	}

	return Candidates{ArticleIDs: ids}, nil
}
