package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"argus/internal/errs"
	"argus/internal/model"
)

// ErrNoItemsAvailable is the sentinel a worker's poll loop checks for to
// distinguish "queue empty, back off" from a real failure (mirrors the
// tarsy queue's ErrNoSessionsAvailable pattern).
var ErrNoItemsAvailable = errors.New("store: no claimable queue items")

// QueueRepo is the Persistent Store's view onto queue_items.
type QueueRepo struct {
	q  queryer
	db *DB
}

func (d *DB) Queue() *QueueRepo { return &QueueRepo{q: d.conn, db: d} }

// Enqueue adds an article to a queue.
func (r *QueueRepo) Enqueue(ctx context.Context, articleID int64, kind model.QueueKind) (int64, error) {
	var id int64
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO queue_items (queue_kind, article_id) VALUES ($1, $2)
		RETURNING id`, string(kind), articleID).Scan(&id)
	if err != nil {
		return 0, errs.Transientf("enqueueing item: %v", err)
	}
	return id, nil
}

// Claim atomically claims the single oldest claimable item from kinds, in
// the priority order given, and leases it for lease. An item is claimable
// when claim_token is NULL or claim_expires_at has passed. Returns
// ErrNoItemsAvailable when nothing is claimable.
//
// This is Argus's CLAIM transaction: SELECT ... FOR UPDATE SKIP LOCKED
// followed by an UPDATE, committed together, so two workers racing on the
// same row never both win it.
func (r *QueueRepo) Claim(ctx context.Context, kinds []model.QueueKind, lease time.Duration) (*model.QueueItem, string, error) {
	if r.db == nil {
		return nil, "", errs.Fatalf("queue: Claim requires a *DB-backed repo, not a transaction-scoped one")
	}

	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", errs.Transientf("beginning claim transaction: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	kindStrs := make([]string, len(kinds))
	for i, k := range kinds {
		kindStrs[i] = string(k)
	}

	row := tx.QueryRowContext(ctx, `
		SELECT id, queue_kind, article_id, enqueued_at, claim_token, claim_expires_at, attempts, status
		FROM queue_items
		WHERE status = 'PENDING'
		  AND queue_kind = ANY($1)
		  AND (claim_token IS NULL OR claim_expires_at < now())
		ORDER BY array_position($1::text[], queue_kind), enqueued_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, pqStringArray(kindStrs))

	item, err := scanQueueItem(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", ErrNoItemsAvailable
		}
		return nil, "", errs.Transientf("selecting claimable item: %v", err)
	}

	token := newClaimToken()
	expiresAt := time.Now().UTC().Add(lease)
	if _, err := tx.ExecContext(ctx, `
		UPDATE queue_items SET claim_token = $1, claim_expires_at = $2, attempts = attempts + 1
		WHERE id = $3`, token, expiresAt, item.ID); err != nil {
		return nil, "", errs.Transientf("marking item claimed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, "", errs.Transientf("committing claim: %v", err)
	}

	item.ClaimToken = &token
	item.ClaimExpiresAt = &expiresAt
	item.Attempts++
	return item, token, nil
}

// ExtendLease pushes claim_expires_at forward for a worker still actively
// processing an item, the store-side half of a heartbeat.
func (r *QueueRepo) ExtendLease(ctx context.Context, id int64, token string, lease time.Duration) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE queue_items SET claim_expires_at = $1
		WHERE id = $2 AND claim_token = $3`, time.Now().UTC().Add(lease), id, token)
	if err != nil {
		return errs.Transientf("extending lease: %v", err)
	}
	return requireOneRow(res)
}

// Complete removes a successfully processed item from the queue.
func (r *QueueRepo) Complete(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM queue_items WHERE id = $1`, id)
	if err != nil {
		return errs.Transientf("completing item: %v", err)
	}
	return nil
}

// Release gives an item back to the pool immediately (used when a worker
// shuts down mid-processing), clearing its claim without incrementing attempts.
func (r *QueueRepo) Release(ctx context.Context, id int64, token string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE queue_items SET claim_token = NULL, claim_expires_at = NULL
		WHERE id = $1 AND claim_token = $2`, id, token)
	if err != nil {
		return errs.Transientf("releasing item: %v", err)
	}
	return nil
}

// DeadLetter marks an item DEAD_LETTERED after it has exhausted max_attempts.
func (r *QueueRepo) DeadLetter(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE queue_items SET status = 'DEAD_LETTERED', claim_token = NULL, claim_expires_at = NULL
		WHERE id = $1`, id)
	if err != nil {
		return errs.Transientf("dead-lettering item: %v", err)
	}
	return nil
}

// CountClaimable reports how many PENDING items of the given kinds are
// presently claimable. No worker calls it: the Analysis Worker runs no
// idle-threshold check.
func (r *QueueRepo) CountClaimable(ctx context.Context, kinds []model.QueueKind) (int, error) {
	kindStrs := make([]string, len(kinds))
	for i, k := range kinds {
		kindStrs[i] = string(k)
	}
	var n int
	err := r.q.QueryRowContext(ctx, `
		SELECT count(*) FROM queue_items
		WHERE status = 'PENDING' AND queue_kind = ANY($1)
		  AND (claim_token IS NULL OR claim_expires_at < now())`, pqStringArray(kindStrs)).Scan(&n)
	if err != nil {
		return 0, errs.Transientf("counting claimable items: %v", err)
	}
	return n, nil
}

func scanQueueItem(row *sql.Row) (*model.QueueItem, error) {
	item := &model.QueueItem{}
	var kind, status string
	var token sql.NullString
	var expires sql.NullTime
	if err := row.Scan(&item.ID, &kind, &item.ArticleID, &item.EnqueuedAt, &token, &expires, &item.Attempts, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	item.Kind = model.QueueKind(kind)
	item.Status = model.QueueItemStatus(status)
	if token.Valid {
		item.ClaimToken = &token.String
	}
	if expires.Valid {
		item.ClaimExpiresAt = &expires.Time
	}
	return item, nil
}
