package worker

import (
	"context"

	"argus/internal/clustering"
	"argus/internal/errs"
	"argus/internal/extract"
	"argus/internal/model"
	"argus/internal/similarity"
	"argus/internal/vectorstore"
)

// AnalysisResult is the Analysis Worker's single structured LLM judgment for
// an article: the long-form analysis, its summary at three lengths, and the
// quality scores, which are stored with the article.
type AnalysisResult struct {
	Text          string
	Summary       string
	TinySummary   string
	TinyTitle     string
	ELI5          string
	QualityScores model.QualityScores
}

// Analyzer produces the LLM-backed analysis, summary set, and embedding
// for an already-decided article.
type Analyzer interface {
	Analyze(ctx context.Context, title, body string) (AnalysisResult, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// EntityLinker resolves and stores the entities an article mentions.
type EntityLinker interface {
	Extract(ctx context.Context, title, text string) ([]extract.Mention, error)
	Resolve(ctx context.Context, articleID int64, mentions []extract.Mention) ([]int64, error)
}

// AnalysisStore is the Persistent Store surface the Analysis Worker needs
// beyond ArticleStore.
type AnalysisStore interface {
	ArticleStore
	ForArticle(ctx context.Context, articleID int64) ([]similarity.WithType, error)
	UpdateAnalysis(ctx context.Context, id int64, analysis, summary, tinySummary, tinyTitle, eli5 *string, quality *model.QualityScores) error
}

// VectorAdapter is the Vector Store Adapter surface the Analysis Worker
// writes embeddings through and reads neighbors from.
type VectorAdapter interface {
	Upsert(ctx context.Context, articleID int64, embedding []float64, entityIDs []int64) error
	Fetch(ctx context.Context, articleID int64) ([]float64, error)
	TopK(ctx context.Context, query []float64, k int, excludeID int64) ([]vectorstore.Match, error)
}

// Analysis implements the Analysis Worker's Processor: the six-step
// pipeline from LLM analysis through final cluster assignment. It claims
// SAFETY items before TOPIC items (encoded by the kinds slice passed to
// worker.New, priority-ordered). The worker running it does not take RSS
// items when the TOPIC/SAFETY queues are empty; RSS items go only to the
// Decision Worker.
type Analysis struct {
	articles   AnalysisStore
	vectors    VectorAdapter
	entities   EntityLinker
	analyzer   Analyzer
	similarity *similarity.Engine
	clustering *clustering.Engine
}

func NewAnalysis(articles AnalysisStore, vectors VectorAdapter, entities EntityLinker, analyzer Analyzer, sim *similarity.Engine, clust *clustering.Engine) *Analysis {
	return &Analysis{articles: articles, vectors: vectors, entities: entities, analyzer: analyzer, similarity: sim, clustering: clust}
}

func (a *Analysis) Process(ctx context.Context, item *model.QueueItem) error {
	article, err := a.articles.Get(ctx, item.ArticleID)
	if err != nil {
		return err
	}

	// Step 1: LLM analysis, summary set, and quality scores.
	result, err := a.analyzer.Analyze(ctx, article.Title, article.Body)
	if err != nil {
		return errs.Transientf("analyzing article %d: %v", article.ID, err)
	}

	// Step 2: entity extraction and resolution.
	mentions, err := a.entities.Extract(ctx, article.Title, article.Body)
	if err != nil {
		return errs.Transientf("extracting entities for article %d: %v", article.ID, err)
	}
	entityIDs, err := a.entities.Resolve(ctx, article.ID, mentions)
	if err != nil {
		return err
	}

	// Step 3: embedding and vector store write.
	embedding, err := a.analyzer.Embed(ctx, result.Text)
	if err != nil {
		return errs.Transientf("embedding article %d: %v", article.ID, err)
	}
	if err := a.vectors.Upsert(ctx, article.ID, embedding, entityIDs); err != nil {
		return err
	}

	// Step 4: similarity scoring inputs for cluster assignment.
	best := article.BestDate()
	articleEntities, err := a.articles.ForArticle(ctx, article.ID)
	if err != nil {
		return err
	}

	// Step 5: cluster assignment, scoring each candidate cluster's existing
	// members against the new article pairwise.
	scoreMember := func(ctx context.Context, clusterID, memberArticleID int64) (similarity.Report, error) {
		memberEmbedding, err := a.vectors.Fetch(ctx, memberArticleID)
		if err != nil {
			return similarity.Report{}, err
		}
		memberEntities, err := a.articles.ForArticle(ctx, memberArticleID)
		if err != nil {
			return similarity.Report{}, err
		}
		memberArticle, err := a.articles.Get(ctx, memberArticleID)
		if err != nil {
			return similarity.Report{}, err
		}
		return a.similarity.Score(embedding, memberEmbedding, articleEntities, memberEntities, best, memberArticle.BestDate(), false), nil
	}

	if _, err := a.clustering.Assign(ctx, article.ID, entityIDs, scoreMember); err != nil {
		return err
	}

	// Step 6: persist the full analysis/summary set and mark ANALYZED.
	if err := a.articles.UpdateAnalysis(ctx, article.ID,
		&result.Text, &result.Summary, &result.TinySummary, &result.TinyTitle, &result.ELI5, &result.QualityScores); err != nil {
		return err
	}
	return a.articles.UpdateStatus(ctx, article.ID, model.ArticleStatusAnalyzed, "")
}
