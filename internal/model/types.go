// Package model holds the durable record types shared across Argus's
// components. They map directly onto the Persistent Store's tables
// (internal/store) and are passed by value or pointer between workers,
// the similarity engine, and the clustering engine.
package model

import "time"

// ArticleStatus tracks an article through decision and analysis.
type ArticleStatus string

const (
	ArticleStatusNew          ArticleStatus = "NEW"
	ArticleStatusQueuedTopic  ArticleStatus = "QUEUED_TOPIC"
	ArticleStatusQueuedSafety ArticleStatus = "QUEUED_SAFETY"
	ArticleStatusRejected     ArticleStatus = "REJECTED"
	ArticleStatusAnalyzed     ArticleStatus = "ANALYZED"
	ArticleStatusAccessError  ArticleStatus = "ACCESS_ERROR"
)

// RejectReason qualifies an ArticleStatusRejected article.
type RejectReason string

const (
	RejectPromotional RejectReason = "promotional"
	RejectNonRelevant RejectReason = "non-relevant"
	RejectAge         RejectReason = "age"
)

// QualityScores are ancillary source-quality metrics carried alongside an
// article and stored as JSON; not part of the contract schema. Nothing in
// this module reads them back: the clustering engine's Importance takes
// avg_source_quality as a caller-supplied number.
type QualityScores struct {
	Readability       float64 `json:"readability"`
	SourceReliability float64 `json:"source_reliability"`
	Depth             float64 `json:"depth"`
}

// Article is one ingested news item with text and metadata.
type Article struct {
	ID            int64
	URL           string
	URLHash       string
	PubDate       *time.Time
	EventDate     *time.Time
	Title         string
	Body          string
	Analysis      *string
	Summary       *string
	TinySummary   *string
	TinyTitle     *string
	ELI5          *string
	QualityScores *QualityScores
	Status        ArticleStatus
	RejectReason  RejectReason
	CreatedAt     time.Time
}

// BestDate returns event_date if present, else pub_date, else nil. Used by
// the similarity engine's temporal factor and the dual-query candidate
// window.
func (a *Article) BestDate() *time.Time {
	if a.EventDate != nil {
		return a.EventDate
	}
	return a.PubDate
}

// QueueKind distinguishes Argus's three database-backed queues.
type QueueKind string

const (
	QueueRSS    QueueKind = "RSS"
	QueueTopic  QueueKind = "TOPIC"
	QueueSafety QueueKind = "SAFETY"
)

// QueueItemStatus additionally tags dead-lettered rows.
type QueueItemStatus string

const (
	QueueItemStatusPending     QueueItemStatus = "PENDING"
	QueueItemStatusDeadLettered QueueItemStatus = "DEAD_LETTERED"
)

// QueueItem is one unit of work in one of Argus's three queues. An item is
// claimable iff ClaimToken is nil or ClaimExpiresAt has passed.
type QueueItem struct {
	ID              int64
	Kind            QueueKind
	ArticleID       int64
	EnqueuedAt      time.Time
	ClaimToken      *string
	ClaimExpiresAt  *time.Time
	Attempts        int
	Status          QueueItemStatus
}

// Claimable reports whether the item may be claimed at t.
func (q *QueueItem) Claimable(t time.Time) bool {
	return q.ClaimToken == nil || (q.ClaimExpiresAt != nil && q.ClaimExpiresAt.Before(t))
}

// EntityType enumerates the named-entity categories Argus recognizes.
type EntityType string

const (
	EntityPerson       EntityType = "PERSON"
	EntityOrganization EntityType = "ORGANIZATION"
	EntityLocation     EntityType = "LOCATION"
	EntityEvent        EntityType = "EVENT"
	EntityProduct      EntityType = "PRODUCT"
)

// Entity is a canonical named thing. (Type, NormalizedForm) is unique.
type Entity struct {
	ID             int64
	CanonicalName  string
	NormalizedForm string
	Type           EntityType
	FirstSeen      time.Time
	ParentID       *int64
}

// Importance ranks how central an entity is to an article.
type Importance string

const (
	ImportancePrimary   Importance = "PRIMARY"
	ImportanceSecondary Importance = "SECONDARY"
	ImportanceMentioned Importance = "MENTIONED"
)

// Weight returns the weighted Jaccard contribution for an
// importance level (PRIMARY=1.0, SECONDARY=0.5, MENTIONED=0.25).
func (i Importance) Weight() float64 {
	switch i {
	case ImportancePrimary:
		return 1.0
	case ImportanceSecondary:
		return 0.5
	case ImportanceMentioned:
		return 0.25
	default:
		return 0
	}
}

// ArticleEntity links an article to an entity with an importance rank.
type ArticleEntity struct {
	ArticleID  int64
	EntityID   int64
	Importance Importance
}

// AliasSource records where an alias proposal came from.
type AliasSource string

const (
	AliasSourceStatic  AliasSource = "STATIC"
	AliasSourcePattern AliasSource = "PATTERN"
	AliasSourceLLM     AliasSource = "LLM"
	AliasSourceUser    AliasSource = "USER"
	AliasSourceFix     AliasSource = "FIX"
)

// AliasStatus is the review state of a proposed alias.
type AliasStatus string

const (
	AliasStatusPending  AliasStatus = "PENDING"
	AliasStatusApproved AliasStatus = "APPROVED"
	AliasStatusRejected AliasStatus = "REJECTED"
)

// Alias is an approved (or proposed) equivalence between two surface names
// of the same entity. The store keeps (canonical, alias, type) unique on the
// names as given; they are not normalized before that check.
type Alias struct {
	ID            int64
	CanonicalName string
	AliasName     string
	EntityType    EntityType
	Source        AliasSource
	Confidence    float64
	Status        AliasStatus
	PatternID     *string
	CreatedAt     time.Time
	ApprovedAt    *time.Time
}

// NegativeMatch records a non-equivalence. NameA/NameB are stored in
// alphabetical order to deduplicate the unordered pair.
type NegativeMatch struct {
	NameA     string
	NameB     string
	Type      EntityType
	Reason    string
	CreatedAt time.Time
}

// PatternStat tracks how often a discovery pattern's suggestions are
// approved vs. rejected.
type PatternStat struct {
	PatternID string
	Approved  int
	Rejected  int
	Enabled   bool
}

// ClusterStatus distinguishes live clusters from ones folded into another.
type ClusterStatus string

const (
	ClusterStatusActive ClusterStatus = "active"
	ClusterStatusMerged ClusterStatus = "merged"
)

// Cluster is a set of articles grouped by shared entities and similarity.
type Cluster struct {
	ID                 int64
	CreationDate       time.Time
	LastUpdated        time.Time
	PrimaryEntityIDs   []int64
	Summary            *string
	SummaryVersion     int
	ArticleCount       int
	ImportanceScore    float64
	TimelineEvents     *string // opaque JSON
	HasTimeline        bool
	NeedsSummaryUpdate bool
	Status             ClusterStatus
}

// ClusterMapping links an article to a cluster it belongs to.
type ClusterMapping struct {
	ArticleID       int64
	ClusterID       int64
	AddedDate       time.Time
	SimilarityScore float64
}

// ClusterMergeHistory records a completed merge; OriginalClusterID is the
// primary key.
type ClusterMergeHistory struct {
	OriginalClusterID   int64
	MergedIntoClusterID int64
	MergeDate           time.Time
	MergeReason         string
}

// UserClusterPreference is a per-user silencing/follow flag on a cluster
//; Argus's core never writes these, only the excluded delivery
// layer would, but the table is part of the store's contract schema.
type UserClusterPreference struct {
	UserID            string
	ClusterID         int64
	Silenced          bool
	Followed          bool
	LastSeenVersion   int
	LastInteraction   time.Time
}

// DatePrefix returns the first 10 characters (YYYY-MM-DD) of an RFC3339
// timestamp. Full-string RFC3339 comparison misses same-day articles
// recorded in different timezones; all date window/membership logic goes
// through this instead.
func DatePrefix(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
