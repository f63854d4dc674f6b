package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"argus/internal/model"
)

type fakeArticleStore struct {
	articles map[int64]*model.Article
	updates  []statusUpdate
}

type statusUpdate struct {
	id     int64
	status model.ArticleStatus
	reason model.RejectReason
}

func newFakeArticleStore(articles ...*model.Article) *fakeArticleStore {
	s := &fakeArticleStore{articles: map[int64]*model.Article{}}
	for _, a := range articles {
		s.articles[a.ID] = a
	}
	return s
}

func (s *fakeArticleStore) Get(ctx context.Context, id int64) (*model.Article, error) {
	a, ok := s.articles[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return a, nil
}

func (s *fakeArticleStore) UpdateStatus(ctx context.Context, id int64, status model.ArticleStatus, reason model.RejectReason) error {
	s.updates = append(s.updates, statusUpdate{id, status, reason})
	if a, ok := s.articles[id]; ok {
		a.Status = status
		a.RejectReason = reason
	}
	return nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(ctx context.Context, articleID int64) (string, error) {
	return f.text, f.err
}

type fakeClassifier struct {
	verdict        Classification
	err            error
	topicRelevant  map[string]bool
	topicErr       error
	threatLocation ThreatLocation
	threatErr      error
	threatCalls    int
}

func (f *fakeClassifier) Classify(ctx context.Context, title, body string) (Classification, error) {
	return f.verdict, f.err
}

func (f *fakeClassifier) TopicRelevant(ctx context.Context, title, body, topic string) (bool, error) {
	if f.topicErr != nil {
		return false, f.topicErr
	}
	return f.topicRelevant[topic], nil
}

func (f *fakeClassifier) ThreatLocation(ctx context.Context, title, body string) (ThreatLocation, error) {
	f.threatCalls++
	return f.threatLocation, f.threatErr
}

type fakeEnqueuer struct {
	kind model.QueueKind
	id   int64
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, articleID int64, kind model.QueueKind) (int64, error) {
	f.kind = kind
	f.id = articleID
	return 1, nil
}

func TestDecisionProcess(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	old := time.Now().Add(-30 * 24 * time.Hour)

	cases := []struct {
		name       string
		pubDate    *time.Time
		extractor  *fakeExtractor
		classifier *fakeClassifier
		wantStatus model.ArticleStatus
		wantReason model.RejectReason
		wantQueue  model.QueueKind
	}{
		{
			name:       "too old is rejected before extraction",
			pubDate:    &old,
			extractor:  &fakeExtractor{text: "body"},
			classifier: &fakeClassifier{},
			wantStatus: model.ArticleStatusRejected,
			wantReason: model.RejectAge,
		},
		{
			name:       "extraction failure is an access error",
			pubDate:    &recent,
			extractor:  &fakeExtractor{err: errors.New("fetch failed")},
			classifier: &fakeClassifier{},
			wantStatus: model.ArticleStatusAccessError,
		},
		{
			name:       "empty body is an access error",
			pubDate:    &recent,
			extractor:  &fakeExtractor{text: "   "},
			classifier: &fakeClassifier{},
			wantStatus: model.ArticleStatusAccessError,
		},
		{
			name:       "promotional is rejected",
			pubDate:    &recent,
			extractor:  &fakeExtractor{text: "body"},
			classifier: &fakeClassifier{verdict: Classification{IsPromotional: true}},
			wantStatus: model.ArticleStatusRejected,
			wantReason: model.RejectPromotional,
		},
		{
			name:       "no matching topic is rejected as non-relevant",
			pubDate:    &recent,
			extractor:  &fakeExtractor{text: "body"},
			classifier: &fakeClassifier{topicRelevant: map[string]bool{}},
			wantStatus: model.ArticleStatusRejected,
			wantReason: model.RejectNonRelevant,
		},
		{
			name:       "life safety routes to the safety queue",
			pubDate:    &recent,
			extractor:  &fakeExtractor{text: "body"},
			classifier: &fakeClassifier{verdict: Classification{IsLifeSafety: true}},
			wantStatus: model.ArticleStatusQueuedSafety,
			wantQueue:  model.QueueSafety,
		},
		{
			name:       "a matching topic routes to the topic queue",
			pubDate:    &recent,
			extractor:  &fakeExtractor{text: "body"},
			classifier: &fakeClassifier{topicRelevant: map[string]bool{"politics": true}},
			wantStatus: model.ArticleStatusQueuedTopic,
			wantQueue:  model.QueueTopic,
		},
	}

	topics := []string{"politics", "technology"}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			article := &model.Article{ID: 1, Title: "t", PubDate: tc.pubDate, Status: model.ArticleStatusNew}
			articles := newFakeArticleStore(article)
			enq := &fakeEnqueuer{}
			d := NewDecision(articles, tc.extractor, tc.classifier, enq, topics, 24*time.Hour)

			if err := d.Process(context.Background(), &model.QueueItem{ArticleID: 1}); err != nil {
				t.Fatalf("Process: %v", err)
			}

			if article.Status != tc.wantStatus {
				t.Errorf("status = %v, want %v", article.Status, tc.wantStatus)
			}
			if tc.wantReason != "" && article.RejectReason != tc.wantReason {
				t.Errorf("reject reason = %v, want %v", article.RejectReason, tc.wantReason)
			}
			if tc.wantQueue != "" && enq.kind != tc.wantQueue {
				t.Errorf("enqueued kind = %v, want %v", enq.kind, tc.wantQueue)
			}
		})
	}
}

func TestDecisionProcessClassifierError(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	article := &model.Article{ID: 1, PubDate: &recent}
	articles := newFakeArticleStore(article)
	d := NewDecision(articles, &fakeExtractor{text: "body"}, &fakeClassifier{err: errors.New("llm down")}, &fakeEnqueuer{}, []string{"politics"}, 24*time.Hour)

	err := d.Process(context.Background(), &model.QueueItem{ArticleID: 1})
	if err == nil {
		t.Fatal("expected an error when classification fails")
	}
	if article.Status != model.ArticleStatusNew {
		t.Errorf("article status should be unchanged on classifier error, got %v", article.Status)
	}
}

func TestDecisionProcessLifeSafetyRequestsThreatLocation(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	article := &model.Article{ID: 1, PubDate: &recent}
	articles := newFakeArticleStore(article)
	classifier := &fakeClassifier{
		verdict:        Classification{IsLifeSafety: true},
		threatLocation: ThreatLocation{ImpactedRegions: []ImpactedRegion{{Continent: "Asia", Country: "Japan"}}},
	}
	d := NewDecision(articles, &fakeExtractor{text: "body"}, classifier, &fakeEnqueuer{}, nil, 24*time.Hour)

	if err := d.Process(context.Background(), &model.QueueItem{ArticleID: 1}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if article.Status != model.ArticleStatusQueuedSafety {
		t.Errorf("status = %v, want QUEUED_SAFETY", article.Status)
	}
	if classifier.threatCalls != 1 {
		t.Errorf("ThreatLocation called %d times, want 1", classifier.threatCalls)
	}
}

func TestDecisionProcessLifeSafetyPropagatesThreatLocationError(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	article := &model.Article{ID: 1, PubDate: &recent}
	articles := newFakeArticleStore(article)
	classifier := &fakeClassifier{
		verdict:   Classification{IsLifeSafety: true},
		threatErr: errors.New("llm down"),
	}
	d := NewDecision(articles, &fakeExtractor{text: "body"}, classifier, &fakeEnqueuer{}, nil, 24*time.Hour)

	if err := d.Process(context.Background(), &model.QueueItem{ArticleID: 1}); err == nil {
		t.Fatal("expected an error when the threat-location request fails")
	}
}

func TestDecisionProcessChecksEveryConfiguredTopicBeforeRejecting(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	topics := []string{"politics", "technology", "sports"}
	checked := map[string]bool{}
	classifier := &fakeClassifier{topicRelevant: map[string]bool{}}

	article := &model.Article{ID: 1, PubDate: &recent}
	articles := newFakeArticleStore(article)
	d := NewDecision(articles, &fakeExtractor{text: "body"}, &countingClassifier{fakeClassifier: classifier, checked: checked}, &fakeEnqueuer{}, topics, 24*time.Hour)

	if err := d.Process(context.Background(), &model.QueueItem{ArticleID: 1}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	for _, topic := range topics {
		if !checked[topic] {
			t.Errorf("expected topic %q to be checked before rejecting as non-relevant", topic)
		}
	}
	if article.Status != model.ArticleStatusRejected || article.RejectReason != model.RejectNonRelevant {
		t.Errorf("status/reason = %v/%v, want REJECTED/non-relevant", article.Status, article.RejectReason)
	}
}

// countingClassifier records every topic TopicRelevant is asked about.
type countingClassifier struct {
	*fakeClassifier
	checked map[string]bool
}

func (c *countingClassifier) TopicRelevant(ctx context.Context, title, body, topic string) (bool, error) {
	c.checked[topic] = true
	return c.fakeClassifier.TopicRelevant(ctx, title, body, topic)
}
