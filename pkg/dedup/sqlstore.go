package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"k8s.io/klog"
)

const defaultListLimit = 20

type SQLTransactionLog struct {
	bun.BaseModel   `bun:"table:transaction_logs,alias:tl"`
	ID              int64     `bun:",pk,autoincrement"`
	Fingerprint     string    `bun:",notnull,unique"`
	PayeeName       string    `bun:",notnull"`
	TransactionDate string    `bun:",notnull"`
	Amount          int64     `bun:",notnull"`
	Cardholder      string    `bun:",notnull"`
	CreatedAt       time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

func (l SQLTransactionLog) entry() Entry {
	return Entry{
		Fingerprint: l.Fingerprint,
		PayeeName:   l.PayeeName,
		Date:        l.TransactionDate,
		Amount:      l.Amount,
		Cardholder:  l.Cardholder,
		CreatedAt:   l.CreatedAt,
	}
}

func sqlTransactionLog(e Entry) SQLTransactionLog {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return SQLTransactionLog{
		Fingerprint:     e.Fingerprint,
		PayeeName:       e.PayeeName,
		TransactionDate: e.Date,
		Amount:          e.Amount,
		Cardholder:      e.Cardholder,
		CreatedAt:       createdAt,
	}
}

// SQLStore keeps fingerprints in the transaction_logs table. The unique
// constraint on fingerprint makes inserts idempotent.
type SQLStore struct {
	db *bun.DB
}

// NewSQLStore creates the transaction_logs table if needed.
func NewSQLStore(ctx context.Context, db *bun.DB) (*SQLStore, error) {
	s := &SQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*SQLTransactionLog)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create transaction_logs table: %w", err)
	}
	return nil
}

func (s *SQLStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*SQLTransactionLog)(nil)).
		Where("fingerprint = ?", fingerprint).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to look up fingerprint: %w", err)
	}
	return exists, nil
}

func (s *SQLStore) Record(ctx context.Context, entry Entry) error {
	_, err := s.RecordBatch(ctx, []Entry{entry})
	return err
}

func (s *SQLStore) RecordBatch(ctx context.Context, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	records := make([]SQLTransactionLog, 0, len(entries))
	for _, e := range entries {
		records = append(records, sqlTransactionLog(e))
	}

	// RETURNING would come back empty for skipped rows, so plain exec
	res, err := s.db.NewInsert().
		Model(&records).
		On("CONFLICT (fingerprint) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("error writing transaction log to sql: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count inserted transaction logs: %w", err)
	}

	klog.V(1).Infof("Wrote %d of %d transaction logs to sql\n", inserted, len(records))
	return int(inserted), nil
}

type CardholderStats struct {
	Cardholder string `bun:"cardholder"`
	Count      int    `bun:"count"`
	Amount     int64  `bun:"amount"`
}

type Stats struct {
	Count       int
	Amount      int64
	Cardholders []CardholderStats
}

// Stats summarizes the log per cardholder. Amounts are milliunits.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	rows := []CardholderStats{}
	err := s.db.NewSelect().
		TableExpr("transaction_logs").
		ColumnExpr("cardholder").
		ColumnExpr("count(*) AS count").
		ColumnExpr("CAST(coalesce(sum(amount), 0) AS BIGINT) AS amount").
		GroupExpr("cardholder").
		OrderExpr("cardholder").
		Scan(ctx, &rows)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query transaction log stats: %w", err)
	}

	stats := Stats{Cardholders: rows}
	for _, row := range rows {
		stats.Count += row.Count
		stats.Amount += row.Amount
	}
	return stats, nil
}

type ListOptions struct {
	// Query matches payee or fingerprint, case insensitive.
	Query string
	Page  int
	Limit int
}

type ListResult struct {
	Entries []Entry
	Total   int
	Page    int
	Limit   int
}

// List pages through the log newest first.
func (s *SQLStore) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = defaultListLimit
	}

	query := func(q *bun.SelectQuery) *bun.SelectQuery {
		if opts.Query == "" {
			return q
		}
		pattern := "%" + strings.ToLower(opts.Query) + "%"
		return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("lower(payee_name) LIKE ?", pattern).
				WhereOr("lower(fingerprint) LIKE ?", pattern)
		})
	}

	total, err := query(s.db.NewSelect().Model((*SQLTransactionLog)(nil))).Count(ctx)
	if err != nil {
		return ListResult{}, fmt.Errorf("failed to count transaction logs: %w", err)
	}

	records := []SQLTransactionLog{}
	err = query(s.db.NewSelect().Model(&records)).
		OrderExpr("created_at DESC, id DESC").
		Limit(opts.Limit).
		Offset((opts.Page - 1) * opts.Limit).
		Scan(ctx)
	if err != nil {
		return ListResult{}, fmt.Errorf("failed to list transaction logs: %w", err)
	}

	result := ListResult{Entries: make([]Entry, 0, len(records)), Total: total, Page: opts.Page, Limit: opts.Limit}
	for _, r := range records {
		result.Entries = append(result.Entries, r.entry())
	}
	return result, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
