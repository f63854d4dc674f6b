package worker

import (
	"context"
	"testing"
	"time"

	"argus/internal/clustering"
	"argus/internal/config"
	"argus/internal/extract"
	"argus/internal/model"
	"argus/internal/similarity"
	"argus/internal/vectorstore"
)

type fakeAnalysisStore struct {
	articles  map[int64]*model.Article
	entities  map[int64][]similarity.WithType
	analyzed  map[int64]string
	statusSet model.ArticleStatus
}

func newFakeAnalysisStore(articles ...*model.Article) *fakeAnalysisStore {
	s := &fakeAnalysisStore{articles: map[int64]*model.Article{}, entities: map[int64][]similarity.WithType{}, analyzed: map[int64]string{}}
	for _, a := range articles {
		s.articles[a.ID] = a
	}
	return s
}

func (s *fakeAnalysisStore) Get(ctx context.Context, id int64) (*model.Article, error) {
	return s.articles[id], nil
}

func (s *fakeAnalysisStore) UpdateStatus(ctx context.Context, id int64, status model.ArticleStatus, reason model.RejectReason) error {
	s.statusSet = status
	return nil
}

func (s *fakeAnalysisStore) ForArticle(ctx context.Context, articleID int64) ([]similarity.WithType, error) {
	return s.entities[articleID], nil
}

func (s *fakeAnalysisStore) UpdateAnalysis(ctx context.Context, id int64, analysis, summary, tinySummary, tinyTitle, eli5 *string, quality *model.QualityScores) error {
	if analysis != nil {
		s.analyzed[id] = *analysis
	}
	return nil
}

type fakeVectorAdapter struct {
	embeddings map[int64][]float64
}

func (v *fakeVectorAdapter) Upsert(ctx context.Context, articleID int64, embedding []float64, entityIDs []int64) error {
	v.embeddings[articleID] = embedding
	return nil
}

func (v *fakeVectorAdapter) Fetch(ctx context.Context, articleID int64) ([]float64, error) {
	return v.embeddings[articleID], nil
}

func (v *fakeVectorAdapter) TopK(ctx context.Context, query []float64, k int, excludeID int64) ([]vectorstore.Match, error) {
	return nil, nil
}

type fakeEntityLinker struct {
	resolved []int64
}

func (f *fakeEntityLinker) Extract(ctx context.Context, title, text string) ([]extract.Mention, error) {
	return []extract.Mention{{Name: "Acme Corp", Type: model.EntityOrganization, Importance: model.ImportancePrimary}}, nil
}

func (f *fakeEntityLinker) Resolve(ctx context.Context, articleID int64, mentions []extract.Mention) ([]int64, error) {
	return f.resolved, nil
}

type fakeAnalyzer struct {
	analysis, summary string
	embedding         []float64
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, title, body string) (AnalysisResult, error) {
	return AnalysisResult{Text: f.analysis, Summary: f.summary}, nil
}

func (f *fakeAnalyzer) Embed(ctx context.Context, text string) ([]float64, error) {
	return f.embedding, nil
}

// fakeClusterStore satisfies clustering.Store for testing Analysis.Process
// end to end against a real clustering.Engine.
type fakeClusterStore struct {
	clusters map[int64]*model.Cluster
	mappings map[int64][]*model.ClusterMapping
	nextID   int64
}

func newFakeClusterStore() *fakeClusterStore {
	return &fakeClusterStore{clusters: map[int64]*model.Cluster{}, mappings: map[int64][]*model.ClusterMapping{}}
}

func (s *fakeClusterStore) Get(ctx context.Context, id int64) (*model.Cluster, error) {
	return s.clusters[id], nil
}
func (s *fakeClusterStore) ActiveWithAnyEntity(ctx context.Context, entityIDs []int64) ([]*model.Cluster, error) {
	var out []*model.Cluster
	for _, c := range s.clusters {
		out = append(out, c)
	}
	return out, nil
}
func (s *fakeClusterStore) Create(ctx context.Context, primaryEntityIDs []int64) (int64, error) {
	s.nextID++
	s.clusters[s.nextID] = &model.Cluster{ID: s.nextID, PrimaryEntityIDs: primaryEntityIDs, LastUpdated: time.Now()}
	return s.nextID, nil
}
func (s *fakeClusterStore) UpdatePrimaryEntities(ctx context.Context, id int64, entityIDs []int64) error {
	s.clusters[id].PrimaryEntityIDs = entityIDs
	return nil
}
func (s *fakeClusterStore) SetSummary(ctx context.Context, id int64, summary string, version int) error {
	return nil
}
func (s *fakeClusterStore) MarkNeedsSummaryUpdate(ctx context.Context, id int64) error { return nil }
func (s *fakeClusterStore) SetImportance(ctx context.Context, id int64, score float64) error {
	return nil
}
func (s *fakeClusterStore) AddMapping(ctx context.Context, articleID, clusterID int64, sim float64) error {
	s.mappings[clusterID] = append(s.mappings[clusterID], &model.ClusterMapping{ArticleID: articleID, ClusterID: clusterID})
	s.clusters[clusterID].ArticleCount++
	return nil
}
func (s *fakeClusterStore) MappingsForCluster(ctx context.Context, clusterID int64) ([]*model.ClusterMapping, error) {
	return s.mappings[clusterID], nil
}
func (s *fakeClusterStore) Merge(ctx context.Context, srcID, dstID int64, reason string) error {
	return nil
}

type fakeSummaryGenerator struct{}

func (fakeSummaryGenerator) Summarize(ctx context.Context, summaries []string) (string, error) {
	return "combined", nil
}

func TestAnalysisProcessSeedsFirstClusterAndMarksAnalyzed(t *testing.T) {
	article := &model.Article{ID: 1, Title: "Acme announces layoffs", Body: "Acme Corp announced layoffs today."}
	store := newFakeAnalysisStore(article)
	vectors := &fakeVectorAdapter{embeddings: map[int64][]float64{}}
	entities := &fakeEntityLinker{resolved: []int64{10}}
	analyzer := &fakeAnalyzer{analysis: "analysis text", summary: "summary text", embedding: []float64{1, 0, 0}}

	simEngine := similarity.New(&config.Similarity{Wv: 1})
	clusterStore := newFakeClusterStore()
	clusterEngine := clustering.New(clusterStore, simEngine, fakeSummaryGenerator{}, &config.Clustering{AssignThreshold: 0.7, MaxPrimaryEntities: 10})

	a := NewAnalysis(store, vectors, entities, analyzer, simEngine, clusterEngine)

	if err := a.Process(context.Background(), &model.QueueItem{ArticleID: 1}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if store.statusSet != model.ArticleStatusAnalyzed {
		t.Errorf("status = %v, want ANALYZED", store.statusSet)
	}
	if store.analyzed[1] != "analysis text" {
		t.Errorf("stored analysis = %q, want %q", store.analyzed[1], "analysis text")
	}
	if len(vectors.embeddings[1]) != 3 {
		t.Errorf("expected the embedding to be upserted, got %v", vectors.embeddings[1])
	}
	if len(clusterStore.clusters) != 1 {
		t.Errorf("expected exactly one cluster to be seeded, got %d", len(clusterStore.clusters))
	}
}
