package clustering

import (
	"context"
	"testing"
	"time"

	"argus/internal/config"
	"argus/internal/model"
	"argus/internal/similarity"
)

type fakeStore struct {
	clusters map[int64]*model.Cluster
	mappings map[int64][]*model.ClusterMapping
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{clusters: map[int64]*model.Cluster{}, mappings: map[int64][]*model.ClusterMapping{}}
}

func (s *fakeStore) Get(ctx context.Context, id int64) (*model.Cluster, error) {
	return s.clusters[id], nil
}

func (s *fakeStore) ActiveWithAnyEntity(ctx context.Context, entityIDs []int64) ([]*model.Cluster, error) {
	var out []*model.Cluster
	for _, c := range s.clusters {
		out = append(out, c)
	}
	return out, nil
}

func (s *fakeStore) Create(ctx context.Context, primaryEntityIDs []int64) (int64, error) {
	s.nextID++
	s.clusters[s.nextID] = &model.Cluster{ID: s.nextID, PrimaryEntityIDs: primaryEntityIDs, LastUpdated: time.Now()}
	return s.nextID, nil
}

func (s *fakeStore) UpdatePrimaryEntities(ctx context.Context, id int64, entityIDs []int64) error {
	s.clusters[id].PrimaryEntityIDs = entityIDs
	return nil
}

func (s *fakeStore) SetSummary(ctx context.Context, id int64, summary string, version int) error {
	s.clusters[id].Summary = &summary
	s.clusters[id].SummaryVersion = version
	return nil
}

func (s *fakeStore) MarkNeedsSummaryUpdate(ctx context.Context, id int64) error {
	s.clusters[id].NeedsSummaryUpdate = true
	return nil
}

func (s *fakeStore) SetImportance(ctx context.Context, id int64, score float64) error {
	s.clusters[id].ImportanceScore = score
	return nil
}

func (s *fakeStore) AddMapping(ctx context.Context, articleID, clusterID int64, sim float64) error {
	s.mappings[clusterID] = append(s.mappings[clusterID], &model.ClusterMapping{ArticleID: articleID, ClusterID: clusterID, SimilarityScore: sim, AddedDate: time.Now()})
	s.clusters[clusterID].ArticleCount++
	return nil
}

func (s *fakeStore) MappingsForCluster(ctx context.Context, clusterID int64) ([]*model.ClusterMapping, error) {
	return s.mappings[clusterID], nil
}

func (s *fakeStore) Merge(ctx context.Context, srcID, dstID int64, reason string) error {
	return nil
}

type fakeSummaries struct{}

func (fakeSummaries) Summarize(ctx context.Context, summaries []string) (string, error) {
	return "combined", nil
}

func testConfig() *config.Clustering {
	return &config.Clustering{
		AssignThreshold:        0.7,
		MaxPrimaryEntities:     10,
		SummaryStalenessWindow: time.Hour,
	}
}

func TestAssignCreatesNewClusterWhenNoCandidates(t *testing.T) {
	store := newFakeStore()
	sim := similarity.New(&config.Similarity{Wv: 1})
	engine := New(store, sim, fakeSummaries{}, testConfig())

	result, err := engine.Assign(context.Background(), 1, []int64{10}, func(ctx context.Context, clusterID, memberArticleID int64) (similarity.Report, error) {
		t.Fatal("scoreMember should not be called with no candidate clusters")
		return similarity.Report{}, nil
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if !result.Created {
		t.Error("expected a new cluster to be created")
	}
	if len(store.mappings[result.ClusterID]) != 1 {
		t.Errorf("expected one mapping recorded, got %d", len(store.mappings[result.ClusterID]))
	}
}

func TestAssignJoinsHighScoringCandidate(t *testing.T) {
	store := newFakeStore()
	store.clusters[1] = &model.Cluster{ID: 1, PrimaryEntityIDs: []int64{10}, LastUpdated: time.Now()}
	store.mappings[1] = []*model.ClusterMapping{{ArticleID: 100, ClusterID: 1}}

	sim := similarity.New(&config.Similarity{Wv: 1})
	engine := New(store, sim, fakeSummaries{}, testConfig())

	result, err := engine.Assign(context.Background(), 2, []int64{10}, func(ctx context.Context, clusterID, memberArticleID int64) (similarity.Report, error) {
		return similarity.Report{Score: 0.9}, nil
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if result.Created {
		t.Error("expected the article to join the existing cluster, not create one")
	}
	if result.ClusterID != 1 {
		t.Errorf("ClusterID = %d, want 1", result.ClusterID)
	}
}

func TestAssignCreatesNewClusterWhenBelowThreshold(t *testing.T) {
	store := newFakeStore()
	store.clusters[1] = &model.Cluster{ID: 1, PrimaryEntityIDs: []int64{10}, LastUpdated: time.Now()}
	store.mappings[1] = []*model.ClusterMapping{{ArticleID: 100, ClusterID: 1}}

	sim := similarity.New(&config.Similarity{Wv: 1})
	engine := New(store, sim, fakeSummaries{}, testConfig())

	result, err := engine.Assign(context.Background(), 2, []int64{10}, func(ctx context.Context, clusterID, memberArticleID int64) (similarity.Report, error) {
		return similarity.Report{Score: 0.2}, nil
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if !result.Created {
		t.Error("expected a new cluster since the only candidate scored below threshold")
	}
}

func TestMaybeFlagSummaryOnPowerOfTwoCount(t *testing.T) {
	store := newFakeStore()
	store.clusters[1] = &model.Cluster{ID: 1, ArticleCount: 4, LastUpdated: time.Now()}
	sim := similarity.New(&config.Similarity{Wv: 1})
	engine := New(store, sim, fakeSummaries{}, testConfig())

	if err := engine.maybeFlagSummary(context.Background(), 1); err != nil {
		t.Fatalf("maybeFlagSummary: %v", err)
	}
	if !store.clusters[1].NeedsSummaryUpdate {
		t.Error("expected NeedsSummaryUpdate to be set at a power-of-two article count")
	}
}
