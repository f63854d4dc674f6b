package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"argus/internal/errs"
	"argus/internal/model"
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// ArticleRepo is the Persistent Store's view onto the articles table.
type ArticleRepo struct {
	q queryer
}

// Articles returns a repository bound to the pool. Pass a *Tx instead of db
// to scope the repository to one transaction.
func (d *DB) Articles() *ArticleRepo { return &ArticleRepo{q: d.conn} }

// Articles scopes an ArticleRepo to this transaction.
func (t *Tx) Articles() *ArticleRepo { return &ArticleRepo{q: t.tx} }

// Create inserts a new article with a.Status as its status and returns its
// assigned ID.
func (r *ArticleRepo) Create(ctx context.Context, a *model.Article) (int64, error) {
	var scores []byte
	var err error
	if a.QualityScores != nil {
		scores, err = json.Marshal(a.QualityScores)
		if err != nil {
			return 0, errs.Validationf("marshaling quality scores: %v", err)
		}
	}

	var id int64
	err = r.q.QueryRowContext(ctx, `
		INSERT INTO articles (url, url_hash, pub_date, event_date, title, body, quality_scores, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		a.URL, a.URLHash, a.PubDate, a.EventDate, a.Title, a.Body, nullBytes(scores), string(a.Status),
	).Scan(&id)
	if err != nil {
		return 0, errs.Transientf("inserting article: %v", err).WithField("url_hash", a.URLHash)
	}
	return id, nil
}

// Get fetches an article by ID.
func (r *ArticleRepo) Get(ctx context.Context, id int64) (*model.Article, error) {
	row := r.q.QueryRowContext(ctx, articleSelectCols+` WHERE id = $1`, id)
	return scanArticle(row)
}

// GetByURLHash fetches an article by its URL hash, used for dedup checks
// before enqueuing a freshly-fetched RSS item.
func (r *ArticleRepo) GetByURLHash(ctx context.Context, urlHash string) (*model.Article, error) {
	row := r.q.QueryRowContext(ctx, articleSelectCols+` WHERE url_hash = $1`, urlHash)
	return scanArticle(row)
}

// UpdateStatus transitions an article's status, optionally recording a
// rejection reason.
func (r *ArticleRepo) UpdateStatus(ctx context.Context, id int64, status model.ArticleStatus, reason model.RejectReason) error {
	var reasonVal interface{}
	if reason != "" {
		reasonVal = string(reason)
	}
	res, err := r.q.ExecContext(ctx, `
		UPDATE articles SET status = $1, reject_reason = $2 WHERE id = $3`,
		string(status), reasonVal, id)
	if err != nil {
		return errs.Transientf("updating article status: %v", err)
	}
	return requireOneRow(res)
}

// UpdateAnalysis persists the Analysis Worker's full derived-text set:
// the long-form analysis, summary, tiny_summary, tiny_title, ELI5, and
// quality scores produced by its single structured LLM call.
func (r *ArticleRepo) UpdateAnalysis(ctx context.Context, id int64, analysis, summary, tinySummary, tinyTitle, eli5 *string, quality *model.QualityScores) error {
	var scores []byte
	var err error
	if quality != nil {
		scores, err = json.Marshal(quality)
		if err != nil {
			return errs.Validationf("marshaling quality scores: %v", err)
		}
	}
	res, err := r.q.ExecContext(ctx, `
		UPDATE articles
		SET analysis = $1, summary = $2, tiny_summary = $3, tiny_title = $4, eli5 = $5, quality_scores = $6
		WHERE id = $7`,
		analysis, summary, tinySummary, tinyTitle, eli5, nullBytes(scores), id)
	if err != nil {
		return errs.Transientf("updating article analysis: %v", err)
	}
	return requireOneRow(res)
}

// RecentByDatePrefix returns articles whose best date falls
// within the inclusive [fromPrefix, toPrefix] window of 10-character
// YYYY-MM-DD date prefixes, for the Similarity Engine's date-window
// candidate query.
func (r *ArticleRepo) RecentByDatePrefix(ctx context.Context, fromPrefix, toPrefix string, limit int) ([]*model.Article, error) {
	rows, err := r.q.QueryContext(ctx, articleSelectCols+`
		WHERE substr(to_char(coalesce(event_date, pub_date, created_at), 'YYYY-MM-DD'), 1, 10) BETWEEN $1 AND $2
		  AND status = 'ANALYZED'
		ORDER BY coalesce(event_date, pub_date, created_at) DESC
		LIMIT $3`, fromPrefix, toPrefix, limit)
	if err != nil {
		return nil, errs.Transientf("querying recent articles: %v", err)
	}
	defer func() { _ = rows.Close() }()
	return scanArticles(rows)
}

const articleSelectCols = `
	SELECT id, url, url_hash, pub_date, event_date, title, body, analysis, summary,
	       tiny_summary, tiny_title, eli5, quality_scores, status, reject_reason, created_at
	FROM articles`

func scanArticle(row *sql.Row) (*model.Article, error) {
	a := &model.Article{}
	var analysis, summary, tinySummary, tinyTitle, eli5, rejectReason sql.NullString
	var scores []byte
	var status string
	if err := row.Scan(&a.ID, &a.URL, &a.URLHash, &a.PubDate, &a.EventDate, &a.Title, &a.Body,
		&analysis, &summary, &tinySummary, &tinyTitle, &eli5, &scores, &status, &rejectReason, &a.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errs.Transientf("scanning article: %v", err)
	}
	a.Status = model.ArticleStatus(status)
	assignNullable(&a.Analysis, analysis)
	assignNullable(&a.Summary, summary)
	assignNullable(&a.TinySummary, tinySummary)
	assignNullable(&a.TinyTitle, tinyTitle)
	assignNullable(&a.ELI5, eli5)
	if rejectReason.Valid {
		a.RejectReason = model.RejectReason(rejectReason.String)
	}
	if len(scores) > 0 {
		var qs model.QualityScores
		if err := json.Unmarshal(scores, &qs); err == nil {
			a.QualityScores = &qs
		}
	}
	return a, nil
}

func scanArticles(rows *sql.Rows) ([]*model.Article, error) {
	var out []*model.Article
	for rows.Next() {
		a := &model.Article{}
		var analysis, summary, tinySummary, tinyTitle, eli5, rejectReason sql.NullString
		var scores []byte
		var status string
		if err := rows.Scan(&a.ID, &a.URL, &a.URLHash, &a.PubDate, &a.EventDate, &a.Title, &a.Body,
			&analysis, &summary, &tinySummary, &tinyTitle, &eli5, &scores, &status, &rejectReason, &a.CreatedAt,
		); err != nil {
			return nil, errs.Transientf("scanning article row: %v", err)
		}
		a.Status = model.ArticleStatus(status)
		assignNullable(&a.Analysis, analysis)
		assignNullable(&a.Summary, summary)
		assignNullable(&a.TinySummary, tinySummary)
		assignNullable(&a.TinyTitle, tinyTitle)
		assignNullable(&a.ELI5, eli5)
		if rejectReason.Valid {
			a.RejectReason = model.RejectReason(rejectReason.String)
		}
		if len(scores) > 0 {
			var qs model.QualityScores
			if err := json.Unmarshal(scores, &qs); err == nil {
				a.QualityScores = &qs
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func assignNullable(dst **string, src sql.NullString) {
	if src.Valid {
		v := src.String
		*dst = &v
	}
}

func nullBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Transientf("checking rows affected: %v", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
