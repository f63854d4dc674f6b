package worker

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"argus/internal/errs"
	"argus/internal/logger"
	"argus/internal/model"
)

// ArticleStore is the Persistent Store surface the Decision Worker needs.
type ArticleStore interface {
	Get(ctx context.Context, id int64) (*model.Article, error)
	UpdateStatus(ctx context.Context, id int64, status model.ArticleStatus, reason model.RejectReason) error
}

// Classifier is the LLM-backed life-safety/promotional judgment, per-topic
// relevance check, and threat-location lookup the Decision Worker asks for.
type Classifier interface {
	Classify(ctx context.Context, title, body string) (Classification, error)
	TopicRelevant(ctx context.Context, title, body, topic string) (bool, error)
	ThreatLocation(ctx context.Context, title, body string) (ThreatLocation, error)
}

// Classification is the Decision Worker's life-safety/promotional verdict
// on one article. Topic relevance is a separate per-topic call.
type Classification struct {
	IsLifeSafety  bool
	IsPromotional bool
}

// ImpactedRegion is one entry of a ThreatLocation response.
type ImpactedRegion struct {
	Continent string
	Country   string
	City      string
}

// ThreatLocation is the structured response requested for a life-safety
// article: the geographic regions the threat affects.
type ThreatLocation struct {
	ImpactedRegions []ImpactedRegion
}

// TextExtractor pulls clean article text from a fetched page; a failure
// here is what produces ACCESS_ERROR.
type TextExtractor interface {
	Extract(ctx context.Context, articleID int64) (string, error)
}

// Enqueuer routes an article onward to the TOPIC or SAFETY queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, articleID int64, kind model.QueueKind) (int64, error)
}

// Decision implements the Decision Worker's Processor: claim an RSS item,
// reject it if too old, extract its text, classify it, and route it to the
// appropriate analysis queue or reject it outright.
type Decision struct {
	articles        ArticleStore
	extractor       TextExtractor
	classifier      Classifier
	queue           Enqueuer
	topics          []string
	rejectOlderThan time.Duration
}

func NewDecision(articles ArticleStore, extractor TextExtractor, classifier Classifier, queue Enqueuer, topics []string, rejectOlderThan time.Duration) *Decision {
	return &Decision{articles: articles, extractor: extractor, classifier: classifier, queue: queue, topics: topics, rejectOlderThan: rejectOlderThan}
}

func (d *Decision) Process(ctx context.Context, item *model.QueueItem) error {
	article, err := d.articles.Get(ctx, item.ArticleID)
	if err != nil {
		return err
	}

	if best := article.BestDate(); best != nil && time.Since(*best) > d.rejectOlderThan {
		return d.articles.UpdateStatus(ctx, article.ID, model.ArticleStatusRejected, model.RejectAge)
	}

	text, err := d.extractor.Extract(ctx, article.ID)
	if err != nil {
		return d.articles.UpdateStatus(ctx, article.ID, model.ArticleStatusAccessError, "")
	}
	if strings.TrimSpace(text) == "" {
		return d.articles.UpdateStatus(ctx, article.ID, model.ArticleStatusAccessError, "")
	}

	// The non-promotional check runs first, ahead of life-safety and topic
	// routing, regardless of what else the article might match.
	verdict, err := d.classifier.Classify(ctx, article.Title, text)
	if err != nil {
		return errs.Transientf("classifying article %d: %v", article.ID, err)
	}
	if verdict.IsPromotional {
		return d.articles.UpdateStatus(ctx, article.ID, model.ArticleStatusRejected, model.RejectPromotional)
	}

	if verdict.IsLifeSafety {
		loc, err := d.classifier.ThreatLocation(ctx, article.Title, text)
		if err != nil {
			return errs.Transientf("requesting threat location for article %d: %v", article.ID, err)
		}
		logger.Get().Info("life-safety article", "article_id", article.ID, "impacted_regions", loc.ImpactedRegions)
		if err := d.articles.UpdateStatus(ctx, article.ID, model.ArticleStatusQueuedSafety, ""); err != nil {
			return err
		}
		_, err = d.queue.Enqueue(ctx, article.ID, model.QueueSafety)
		return err
	}

	// Otherwise, check each configured topic in random order; the first
	// match routes the article to the TOPIC queue.
	for _, idx := range rand.Perm(len(d.topics)) {
		topic := d.topics[idx]
		relevant, err := d.classifier.TopicRelevant(ctx, article.Title, text, topic)
		if err != nil {
			return errs.Transientf("checking topic %q for article %d: %v", topic, article.ID, err)
		}
		if relevant {
			if err := d.articles.UpdateStatus(ctx, article.ID, model.ArticleStatusQueuedTopic, ""); err != nil {
				return err
			}
			_, err := d.queue.Enqueue(ctx, article.ID, model.QueueTopic)
			return err
		}
	}
	return d.articles.UpdateStatus(ctx, article.ID, model.ArticleStatusRejected, model.RejectNonRelevant)
}
