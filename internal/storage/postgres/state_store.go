package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cosmossdk.io/math"
	"github.com/jackc/pgx/v5"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/observability"
	"pat-settlement/internal/storage"
)

// StateStore implements storage.Store using PostgreSQL.
//
// Every Atomic call bumps the single market_seq row first. The row lock
// it takes serializes writers for the rest of the transaction, and the
// bumped value becomes the transaction's sequence number.
type StateStore struct {
	pool *Pool
}

// NewStateStore creates a new StateStore.
func NewStateStore(pool *Pool) *StateStore {
	return &StateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.Store = (*StateStore)(nil)

// Atomic runs fn inside one serialized read-write transaction.
func (s *StateStore) Atomic(ctx context.Context, fn func(tx storage.Tx) error) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "atomic", time.Since(start).Seconds(), err)
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var seq int64
	err = tx.QueryRow(ctx, `UPDATE market_seq SET seq = seq + 1 WHERE id = 1 RETURNING seq`).Scan(&seq)
	if err != nil {
		return fmt.Errorf("advance market seq: %w", err)
	}

	if err := fn(&stateTx{tx: tx, seq: uint64(seq)}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// View runs fn inside a read-only repeatable-read transaction.
func (s *StateStore) View(ctx context.Context, fn func(tx storage.ReadTx) error) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "view", time.Since(start).Seconds(), err)
	}()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&stateTx{tx: tx, readOnly: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// stateTx implements storage.Tx over a pgx transaction.
type stateTx struct {
	tx       pgx.Tx
	seq      uint64
	readOnly bool
}

var _ storage.Tx = (*stateTx)(nil)

func (t *stateTx) writable() error {
	if t.readOnly {
		return storage.ErrReadOnly
	}
	return nil
}

func (t *stateTx) Seq() uint64 { return t.seq }

// parseNumeric converts a NUMERIC rendered as text.
func parseNumeric(s string) (math.Int, error) {
	v, ok := math.NewIntFromString(s)
	if !ok {
		return math.Int{}, fmt.Errorf("invalid numeric %q", s)
	}
	return v, nil
}

func parseAddress(b []byte) (domain.Address, error) {
	addr, err := domain.AddressFromBytes(b)
	if err != nil {
		return domain.Address{}, fmt.Errorf("invalid stored address: %w", err)
	}
	return addr, nil
}

func validAmount(amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return storage.ErrInvalidInput
	}
	return nil
}

func (t *stateTx) TokenInfo(ctx context.Context) (*domain.TokenInfo, error) {
	query := `SELECT name, symbol, decimals, total_supply::text, issuer FROM token_info WHERE id = 1`

	var info domain.TokenInfo
	var supply string
	var issuer []byte
	err := t.tx.QueryRow(ctx, query).Scan(&info.Name, &info.Symbol, &info.Decimals, &supply, &issuer)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token info: %w", err)
	}
	if info.TotalSupply, err = parseNumeric(supply); err != nil {
		return nil, err
	}
	if info.Issuer, err = parseAddress(issuer); err != nil {
		return nil, err
	}
	return &info, nil
}

func (t *stateTx) SetTokenInfo(ctx context.Context, info *domain.TokenInfo) error {
	if err := t.writable(); err != nil {
		return err
	}
	if info == nil || validAmount(info.TotalSupply) != nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_info (id, name, symbol, decimals, total_supply, issuer)
		VALUES (1, $1, $2, $3, $4::text::numeric, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			decimals = EXCLUDED.decimals,
			total_supply = EXCLUDED.total_supply,
			issuer = EXCLUDED.issuer
	`
	_, err := t.tx.Exec(ctx, query, info.Name, info.Symbol, info.Decimals, info.TotalSupply.String(), info.Issuer.Bytes())
	if err != nil {
		return fmt.Errorf("set token info: %w", err)
	}
	return nil
}

func (t *stateTx) Balance(ctx context.Context, addr domain.Address) (math.Int, error) {
	return t.amountByAddress(ctx, "balances", addr)
}

func (t *stateTx) Balances(ctx context.Context) (map[domain.Address]math.Int, error) {
	return t.allAmounts(ctx, "balances")
}

func (t *stateTx) SetBalance(ctx context.Context, addr domain.Address, amount math.Int) error {
	return t.setAmount(ctx, "balances", addr, amount)
}

func (t *stateTx) Earnings(ctx context.Context, addr domain.Address) (math.Int, error) {
	return t.amountByAddress(ctx, "earnings", addr)
}

func (t *stateTx) AllEarnings(ctx context.Context) (map[domain.Address]math.Int, error) {
	return t.allAmounts(ctx, "earnings")
}

func (t *stateTx) SetEarnings(ctx context.Context, addr domain.Address, amount math.Int) error {
	return t.setAmount(ctx, "earnings", addr, amount)
}

// amountByAddress reads an address-keyed amount table. Missing rows are zero.
func (t *stateTx) amountByAddress(ctx context.Context, table string, addr domain.Address) (math.Int, error) {
	query := `SELECT amount::text FROM ` + table + ` WHERE address = $1`

	var raw string
	err := t.tx.QueryRow(ctx, query, addr.Bytes()).Scan(&raw)
	if err != nil {
		if isNotFoundError(err) {
			return math.ZeroInt(), nil
		}
		return math.Int{}, fmt.Errorf("get %s: %w", table, err)
	}
	return parseNumeric(raw)
}

func (t *stateTx) allAmounts(ctx context.Context, table string) (map[domain.Address]math.Int, error) {
	rows, err := t.tx.Query(ctx, `SELECT address, amount::text FROM `+table)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[domain.Address]math.Int)
	for rows.Next() {
		var rawAddr []byte
		var rawAmount string
		if err := rows.Scan(&rawAddr, &rawAmount); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		addr, err := parseAddress(rawAddr)
		if err != nil {
			return nil, err
		}
		if out[addr], err = parseNumeric(rawAmount); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", table, err)
	}
	return out, nil
}

// setAmount upserts an address-keyed amount. Zero deletes the row.
func (t *stateTx) setAmount(ctx context.Context, table string, addr domain.Address, amount math.Int) error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}

	if amount.IsZero() {
		if _, err := t.tx.Exec(ctx, `DELETE FROM `+table+` WHERE address = $1`, addr.Bytes()); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
		return nil
	}

	query := `
		INSERT INTO ` + table + ` (address, amount) VALUES ($1, $2::text::numeric)
		ON CONFLICT (address) DO UPDATE SET amount = EXCLUDED.amount
	`
	if _, err := t.tx.Exec(ctx, query, addr.Bytes(), amount.String()); err != nil {
		return fmt.Errorf("set %s: %w", table, err)
	}
	return nil
}

func (t *stateTx) Allowance(ctx context.Context, owner, spender domain.Address) (math.Int, error) {
	query := `SELECT amount::text FROM allowances WHERE owner = $1 AND spender = $2`

	var raw string
	err := t.tx.QueryRow(ctx, query, owner.Bytes(), spender.Bytes()).Scan(&raw)
	if err != nil {
		if isNotFoundError(err) {
			return math.ZeroInt(), nil
		}
		return math.Int{}, fmt.Errorf("get allowance: %w", err)
	}
	return parseNumeric(raw)
}

func (t *stateTx) SetAllowance(ctx context.Context, owner, spender domain.Address, amount math.Int) error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}

	if amount.IsZero() {
		_, err := t.tx.Exec(ctx, `DELETE FROM allowances WHERE owner = $1 AND spender = $2`, owner.Bytes(), spender.Bytes())
		if err != nil {
			return fmt.Errorf("clear allowance: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO allowances (owner, spender, amount) VALUES ($1, $2, $3::text::numeric)
		ON CONFLICT (owner, spender) DO UPDATE SET amount = EXCLUDED.amount
	`
	if _, err := t.tx.Exec(ctx, query, owner.Bytes(), spender.Bytes(), amount.String()); err != nil {
		return fmt.Errorf("set allowance: %w", err)
	}
	return nil
}

func (t *stateTx) Distribution(ctx context.Context) (*domain.Distribution, error) {
	query := `SELECT treasury, ecosystem, ico, team_vesting_target, distributed_at FROM distribution WHERE id = 1`

	var treasury, ecosystem, ico, team []byte
	var d domain.Distribution
	err := t.tx.QueryRow(ctx, query).Scan(&treasury, &ecosystem, &ico, &team, &d.DistributedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get distribution: %w", err)
	}
	for _, f := range []struct {
		dst *domain.Address
		src []byte
	}{{&d.Treasury, treasury}, {&d.Ecosystem, ecosystem}, {&d.ICO, ico}, {&d.TeamVestingTarget, team}} {
		if *f.dst, err = parseAddress(f.src); err != nil {
			return nil, err
		}
	}
	return &d, nil
}

func (t *stateTx) SetDistribution(ctx context.Context, d *domain.Distribution) error {
	if err := t.writable(); err != nil {
		return err
	}
	if d == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO distribution (id, treasury, ecosystem, ico, team_vesting_target, distributed_at)
		VALUES (1, $1, $2, $3, $4, $5)
	`
	_, err := t.tx.Exec(ctx, query,
		d.Treasury.Bytes(),
		d.Ecosystem.Bytes(),
		d.ICO.Bytes(),
		d.TeamVestingTarget.Bytes(),
		d.DistributedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("set distribution: %w", err)
	}
	return nil
}

func (t *stateTx) VestingSchedule(ctx context.Context) (*domain.VestingSchedule, error) {
	query := `SELECT beneficiary, start_time, duration, total::text, released::text FROM vesting_schedule WHERE id = 1`

	var v domain.VestingSchedule
	var beneficiary []byte
	var total, released string
	err := t.tx.QueryRow(ctx, query).Scan(&beneficiary, &v.Start, &v.Duration, &total, &released)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get vesting schedule: %w", err)
	}
	if v.Beneficiary, err = parseAddress(beneficiary); err != nil {
		return nil, err
	}
	if v.Total, err = parseNumeric(total); err != nil {
		return nil, err
	}
	if v.Released, err = parseNumeric(released); err != nil {
		return nil, err
	}
	return &v, nil
}

func (t *stateTx) SetVestingSchedule(ctx context.Context, v *domain.VestingSchedule) error {
	if err := t.writable(); err != nil {
		return err
	}
	if v == nil || validAmount(v.Total) != nil || validAmount(v.Released) != nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO vesting_schedule (id, beneficiary, start_time, duration, total, released)
		VALUES (1, $1, $2, $3, $4::text::numeric, $5::text::numeric)
		ON CONFLICT (id) DO UPDATE SET
			beneficiary = EXCLUDED.beneficiary,
			start_time = EXCLUDED.start_time,
			duration = EXCLUDED.duration,
			total = EXCLUDED.total,
			released = EXCLUDED.released
	`
	_, err := t.tx.Exec(ctx, query, v.Beneficiary.Bytes(), v.Start, v.Duration, v.Total.String(), v.Released.String())
	if err != nil {
		return fmt.Errorf("set vesting schedule: %w", err)
	}
	return nil
}

// NextSegmentID reads max(id)+1. Writers are serialized, so the value
// cannot be taken by a concurrent transaction.
func (t *stateTx) NextSegmentID(ctx context.Context) (uint64, error) {
	var next int64
	if err := t.tx.QueryRow(ctx, `SELECT COALESCE(MAX(segment_id), 0) + 1 FROM segments`).Scan(&next); err != nil {
		return 0, fmt.Errorf("next segment id: %w", err)
	}
	return uint64(next), nil
}

const segmentColumns = `segment_id, provider, segment_type, window_days, confidence_bps, ask_price::text, active, created_at, updated_at`

func (t *stateTx) Segment(ctx context.Context, id uint64) (*domain.Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM segments WHERE segment_id = $1`

	seg, err := scanSegment(t.tx.QueryRow(ctx, query, int64(id)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get segment by id: %w", err)
	}
	return seg, nil
}

func (t *stateTx) Segments(ctx context.Context, filter domain.SegmentFilter) ([]*domain.Segment, error) {
	conds := []string{"segment_id > $1"}
	args := []any{int64(filter.AfterID)}

	if filter.Provider != nil {
		args = append(args, filter.Provider.Bytes())
		conds = append(conds, fmt.Sprintf("provider = $%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, int16(*filter.Type))
		conds = append(conds, fmt.Sprintf("segment_type = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conds = append(conds, "active")
	}

	query := `SELECT ` + segmentColumns + ` FROM segments WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY segment_id ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segments []*domain.Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment row: %w", err)
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segment rows: %w", err)
	}
	return segments, nil
}

func (t *stateTx) InsertSegment(ctx context.Context, seg *domain.Segment) error {
	if err := t.writable(); err != nil {
		return err
	}
	if seg == nil || seg.ID == 0 || validAmount(seg.AskPrice) != nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO segments (
			segment_id, provider, segment_type, window_days, confidence_bps, ask_price, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8, $9)
	`
	_, err := t.tx.Exec(ctx, query,
		int64(seg.ID),
		seg.Provider.Bytes(),
		int16(seg.Type),
		int16(seg.WindowDays),
		int32(seg.ConfidenceBps),
		seg.AskPrice.String(),
		seg.Active,
		seg.CreatedAt,
		seg.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert segment: %w", err)
	}
	return nil
}

// UpdateSegment rewrites the mutable columns. Provider, type, window and
// confidence are fixed at creation.
func (t *stateTx) UpdateSegment(ctx context.Context, seg *domain.Segment) error {
	if err := t.writable(); err != nil {
		return err
	}
	if seg == nil || validAmount(seg.AskPrice) != nil {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE segments SET ask_price = $2::text::numeric, active = $3, updated_at = $4
		WHERE segment_id = $1
	`
	tag, err := t.tx.Exec(ctx, query, int64(seg.ID), seg.AskPrice.String(), seg.Active, seg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update segment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanSegment(row pgx.Row) (*domain.Segment, error) {
	var seg domain.Segment
	var id int64
	var provider []byte
	var segType, windowDays int16
	var confidence int32
	var askPrice string

	err := row.Scan(
		&id,
		&provider,
		&segType,
		&windowDays,
		&confidence,
		&askPrice,
		&seg.Active,
		&seg.CreatedAt,
		&seg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	seg.ID = uint64(id)
	seg.Type = domain.SegmentType(segType)
	seg.WindowDays = uint16(windowDays)
	seg.ConfidenceBps = uint16(confidence)
	if seg.Provider, err = parseAddress(provider); err != nil {
		return nil, err
	}
	if seg.AskPrice, err = parseNumeric(askPrice); err != nil {
		return nil, err
	}
	return &seg, nil
}

func (t *stateTx) HasAccess(ctx context.Context, consumer domain.Address, id uint64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM access_rights WHERE consumer = $1 AND segment_id = $2)`

	var ok bool
	if err := t.tx.QueryRow(ctx, query, consumer.Bytes(), int64(id)).Scan(&ok); err != nil {
		return false, fmt.Errorf("check access: %w", err)
	}
	return ok, nil
}

func (t *stateTx) AccessRights(ctx context.Context) ([]storage.AccessRight, error) {
	rows, err := t.tx.Query(ctx, `SELECT consumer, segment_id, granted_at FROM access_rights ORDER BY segment_id ASC, consumer ASC`)
	if err != nil {
		return nil, fmt.Errorf("list access rights: %w", err)
	}
	defer rows.Close()

	var rights []storage.AccessRight
	for rows.Next() {
		var consumer []byte
		var id int64
		var r storage.AccessRight
		if err := rows.Scan(&consumer, &id, &r.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan access row: %w", err)
		}
		if r.Consumer, err = parseAddress(consumer); err != nil {
			return nil, err
		}
		r.SegmentID = uint64(id)
		rights = append(rights, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access rows: %w", err)
	}
	return rights, nil
}

func (t *stateTx) GrantAccess(ctx context.Context, consumer domain.Address, id uint64, at int64) error {
	if err := t.writable(); err != nil {
		return err
	}

	query := `INSERT INTO access_rights (consumer, segment_id, granted_at) VALUES ($1, $2, $3)`
	if _, err := t.tx.Exec(ctx, query, consumer.Bytes(), int64(id), at); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("grant access: %w", err)
	}
	return nil
}

func (t *stateTx) Config(ctx context.Context) (*domain.GlobalConfig, error) {
	query := `
		SELECT operator, spread_bps, broker_wallet, broker_pool, phase, paused, version, program_id, custody
		FROM market_config WHERE id = 1
	`

	var cfg domain.GlobalConfig
	var operator, wallet, pool, programID, custody []byte
	var spread int32
	var phase int16
	err := t.tx.QueryRow(ctx, query).Scan(&operator, &spread, &wallet, &pool, &phase, &cfg.Paused, &cfg.Version, &programID, &custody)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get config: %w", err)
	}

	cfg.SpreadBps = uint32(spread)
	cfg.Phase = domain.Phase(phase)
	for _, f := range []struct {
		dst *domain.Address
		src []byte
	}{{&cfg.Operator, operator}, {&cfg.BrokerWallet, wallet}, {&cfg.BrokerPool, pool}, {&cfg.ProgramID, programID}, {&cfg.Custody, custody}} {
		if *f.dst, err = parseAddress(f.src); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func (t *stateTx) SetConfig(ctx context.Context, cfg *domain.GlobalConfig) error {
	if err := t.writable(); err != nil {
		return err
	}
	if cfg == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO market_config (
			id, operator, spread_bps, broker_wallet, broker_pool, phase, paused, version, program_id, custody
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			operator = EXCLUDED.operator,
			spread_bps = EXCLUDED.spread_bps,
			broker_wallet = EXCLUDED.broker_wallet,
			broker_pool = EXCLUDED.broker_pool,
			phase = EXCLUDED.phase,
			paused = EXCLUDED.paused,
			version = EXCLUDED.version,
			program_id = EXCLUDED.program_id,
			custody = EXCLUDED.custody
	`
	_, err := t.tx.Exec(ctx, query,
		cfg.Operator.Bytes(),
		int32(cfg.SpreadBps),
		cfg.BrokerWallet.Bytes(),
		cfg.BrokerPool.Bytes(),
		int16(cfg.Phase),
		cfg.Paused,
		cfg.Version,
		cfg.ProgramID.Bytes(),
		cfg.Custody.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("set config: %w", err)
	}
	return nil
}

func (t *stateTx) Events(ctx context.Context, afterSeq uint64, limit int) ([]*domain.EventRecord, error) {
	query := `
		SELECT event_id, seq, event_index, kind, event_time, attributes
		FROM events
		WHERE seq > $1
		ORDER BY seq ASC, event_index ASC
	`
	args := []any{int64(afterSeq)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var records []*domain.EventRecord
	for rows.Next() {
		var r domain.EventRecord
		var seq int64
		var index int32
		if err := rows.Scan(&r.ID, &seq, &index, &r.Kind, &r.Time, &r.Attributes); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		r.Seq = uint64(seq)
		r.Index = int(index)
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return records, nil
}

// AppendEvents inserts records in one batch.
func (t *stateTx) AppendEvents(ctx context.Context, records []*domain.EventRecord) error {
	if err := t.writable(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO events (event_id, seq, event_index, kind, event_time, attributes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	batch := &pgx.Batch{}
	for _, r := range records {
		if r == nil || r.ID == "" || r.Seq != t.seq {
			return storage.ErrInvalidInput
		}
		attrs := r.Attributes
		if attrs == nil {
			attrs = map[string]string{}
		}
		batch.Queue(query, r.ID, int64(r.Seq), int32(r.Index), r.Kind, r.Time, attrs)
	}

	br := t.tx.SendBatch(ctx, batch)
	for range records {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("append event: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close event batch: %w", err)
	}
	return nil
}
