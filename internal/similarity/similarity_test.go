package similarity

import (
	"testing"
	"time"

	"argus/internal/config"
	"argus/internal/model"
)

func testEngine() *Engine {
	return New(&config.Similarity{
		Wv: 0.5, We: 0.3, Wt: 0.2,
		EntityWeights: map[string]float64{"ORGANIZATION": 1.0, "PERSON": 1.0},
	})
}

func TestScoreSameArticleIsAlwaysOne(t *testing.T) {
	e := testEngine()
	r := e.Score(nil, nil, nil, nil, nil, nil, true)
	if r.Score != 1 {
		t.Errorf("Score(sameArticle) = %v, want 1", r.Score)
	}
}

func TestScoreVectorDegradesOnMissingEmbedding(t *testing.T) {
	e := testEngine()
	r := e.Score(nil, []float64{1, 0}, nil, nil, nil, nil, false)
	if !r.VectorDegraded {
		t.Error("expected VectorDegraded when an embedding is missing")
	}
	if r.VectorFactor != 0 {
		t.Errorf("VectorFactor = %v, want 0", r.VectorFactor)
	}
}

func TestVectorFactorClampsNegativeCosineToZero(t *testing.T) {
	e := testEngine()
	factor, degraded, _ := e.vectorFactor([]float64{1, 0}, []float64{-1, 0})
	if degraded {
		t.Error("opposite-direction embeddings are not a degraded case")
	}
	if factor != 0 {
		t.Errorf("vectorFactor(cos=-1) = %v, want 0 (clamped, not rescaled)", factor)
	}
}

func TestVectorFactorNearZeroMagnitudeUsesContractThreshold(t *testing.T) {
	e := testEngine()
	// Magnitude 1e-4 is below the 1e-3 degradation threshold.
	if _, degraded, _ := e.vectorFactor([]float64{1e-4}, []float64{1, 0}); !degraded {
		t.Error("expected a magnitude of 1e-4 to be treated as degraded")
	}
	// Magnitude slightly above 1e-3 should not be degraded.
	if _, degraded, _ := e.vectorFactor([]float64{2e-3}, []float64{2e-3}); degraded {
		t.Error("expected a magnitude above 1e-3 to not be treated as degraded")
	}
}

func TestScoreClampsOverallToSixtyPercentOnZeroEntityOverlap(t *testing.T) {
	e := testEngine()
	a := []WithType{{EntityID: 1, Type: model.EntityOrganization, Importance: model.ImportancePrimary}}
	b := []WithType{{EntityID: 2, Type: model.EntityOrganization, Importance: model.ImportancePrimary}}
	now := time.Now()
	// Identical embeddings and identical dates would otherwise push
	// Wv*1.0 + Wt*1.0 = 0.7 past the 0.60 ceiling.
	r := e.Score([]float64{1, 0, 0}, []float64{1, 0, 0}, a, b, &now, &now, false)
	if r.Score > 0.60 {
		t.Errorf("Score = %v, want <= 0.60 with zero shared entities regardless of s_vec/s_tmp", r.Score)
	}
}

func TestScoreIdenticalEmbeddingsMaxVectorFactor(t *testing.T) {
	e := testEngine()
	r := e.Score([]float64{1, 0, 0}, []float64{1, 0, 0}, nil, nil, nil, nil, false)
	if r.VectorFactor < 0.99 {
		t.Errorf("VectorFactor = %v, want ~1.0 for identical embeddings", r.VectorFactor)
	}
}

func TestEntityFactorNoOverlapClampedBelow60Percent(t *testing.T) {
	e := testEngine()
	a := []WithType{{EntityID: 1, Type: model.EntityOrganization, Importance: model.ImportancePrimary}}
	b := []WithType{{EntityID: 2, Type: model.EntityOrganization, Importance: model.ImportancePrimary}}
	r := e.Score([]float64{0, 0, 1}, []float64{0, 0, 1}, a, b, nil, nil, false)
	if r.EntityFactor > 0.60 {
		t.Errorf("EntityFactor = %v, want <= 0.60 with zero shared entities", r.EntityFactor)
	}
}

func TestEntityFactorFullOverlap(t *testing.T) {
	e := testEngine()
	a := []WithType{{EntityID: 1, Type: model.EntityOrganization, Importance: model.ImportancePrimary}}
	r := e.Score(nil, nil, a, a, nil, nil, false)
	if r.EntityFactor != 1.0 {
		t.Errorf("EntityFactor = %v, want 1.0 for identical entity sets", r.EntityFactor)
	}
}

func TestTemporalFactorDecay(t *testing.T) {
	e := testEngine()
	now := time.Now()
	same := now
	sevenDays := now.Add(-7 * 24 * time.Hour)
	thirtyDays := now.Add(-30 * 24 * time.Hour)

	if got := e.temporalFactor(&now, &same); got != 1.0 {
		t.Errorf("temporalFactor(0 days) = %v, want 1.0", got)
	}
	if got := e.temporalFactor(&now, &sevenDays); got < 0.49 || got > 0.51 {
		t.Errorf("temporalFactor(7 days) = %v, want ~0.5", got)
	}
	if got := e.temporalFactor(&now, &thirtyDays); got != 0 {
		t.Errorf("temporalFactor(30 days) = %v, want 0", got)
	}
}

func TestTemporalFactorMissingDateIsZero(t *testing.T) {
	e := testEngine()
	now := time.Now()
	if got := e.temporalFactor(&now, nil); got != 0 {
		t.Errorf("temporalFactor(nil) = %v, want 0", got)
	}
}
