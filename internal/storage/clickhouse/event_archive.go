package clickhouse

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/observability"
	"pat-settlement/internal/storage"
)

// EventArchive implements storage.EventArchive using ClickHouse.
type EventArchive struct {
	conn *Conn
}

// NewEventArchive creates a new EventArchive.
func NewEventArchive(conn *Conn) *EventArchive {
	return &EventArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.EventArchive = (*EventArchive)(nil)

const eventColumns = `event_id, seq, event_index, kind, event_time, attributes`

// InsertBulk appends records not yet archived in one batch.
func (s *EventArchive) InsertBulk(ctx context.Context, records []*domain.EventRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_bulk", time.Since(start).Seconds(), err)
	}()

	// Check for intra-batch duplicates
	type key struct {
		seq   uint64
		index int
	}
	seen := make(map[key]struct{})
	for _, r := range records {
		k := key{r.Seq, r.Index}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Skip records already archived by an earlier delivery
	var fresh []*domain.EventRecord
	for _, r := range records {
		exists, err := s.exists(ctx, r.Seq, r.Index)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if !exists {
			fresh = append(fresh, r)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO market_events (
			event_id, seq, event_index, kind, event_time, segment_id, actor, amount, attributes
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range fresh {
		attrs := r.Attributes
		if attrs == nil {
			attrs = map[string]string{}
		}
		err = batch.Append(
			r.ID, r.Seq, uint32(r.Index), r.Kind, uint64(r.Time),
			r.SegmentID(), r.Actor(), r.Amount().BigInt(), attrs,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByKind retrieves all records of a kind, ordered by (seq, index).
func (s *EventArchive) GetByKind(ctx context.Context, kind string) ([]*domain.EventRecord, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM market_events FINAL
		WHERE kind = ?
		ORDER BY seq ASC, event_index ASC
	`

	rows, err := s.conn.Query(ctx, query, kind)
	if err != nil {
		return nil, fmt.Errorf("query by kind: %w", err)
	}
	defer rows.Close()

	return scanEventRecords(rows)
}

// GetBySegment retrieves all records referring to a segment.
func (s *EventArchive) GetBySegment(ctx context.Context, segmentID uint64) ([]*domain.EventRecord, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM market_events FINAL
		WHERE segment_id = ?
		ORDER BY seq ASC, event_index ASC
	`

	rows, err := s.conn.Query(ctx, query, segmentID)
	if err != nil {
		return nil, fmt.Errorf("query by segment: %w", err)
	}
	defer rows.Close()

	return scanEventRecords(rows)
}

// GetByTimeRange retrieves records within [start, end] (inclusive).
func (s *EventArchive) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.EventRecord, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM market_events FINAL
		WHERE event_time >= ? AND event_time <= ?
		ORDER BY seq ASC, event_index ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanEventRecords(rows)
}

// SettlementVolume sums SegmentPurchased records within [start, end].
func (s *EventArchive) SettlementVolume(ctx context.Context, start, end int64) (*storage.SettlementVolume, error) {
	query := `
		SELECT
			count(),
			sum(amount),
			sum(toUInt256OrZero(attributes['provider_payout'])),
			sum(toUInt256OrZero(attributes['broker_spread']))
		FROM market_events FINAL
		WHERE kind = ? AND event_time >= ? AND event_time <= ?
	`

	var count uint64
	var volume, payout, spread big.Int
	err := s.conn.QueryRow(ctx, query, domain.EventSegmentPurchased, uint64(start), uint64(end)).
		Scan(&count, &volume, &payout, &spread)
	if err != nil {
		return nil, fmt.Errorf("query settlement volume: %w", err)
	}

	return &storage.SettlementVolume{
		Purchases:      count,
		Volume:         math.NewIntFromBigInt(&volume),
		ProviderPayout: math.NewIntFromBigInt(&payout),
		BrokerSpread:   math.NewIntFromBigInt(&spread),
	}, nil
}

// exists checks if a record with the given key exists.
func (s *EventArchive) exists(ctx context.Context, seq uint64, index int) (bool, error) {
	query := `
		SELECT count(*) FROM market_events
		WHERE seq = ? AND event_index = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, seq, uint32(index)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanEventRecords scans multiple rows.
func scanEventRecords(rows chRows) ([]*domain.EventRecord, error) {
	var records []*domain.EventRecord

	for rows.Next() {
		var r domain.EventRecord
		var index uint32
		var eventTime uint64

		if err := rows.Scan(&r.ID, &r.Seq, &index, &r.Kind, &eventTime, &r.Attributes); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		r.Index = int(index)
		r.Time = int64(eventTime)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return records, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}
