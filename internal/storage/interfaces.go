package storage

import (
	"context"

	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
)

// Store holds the persistent marketplace state. The schema is independent of
// the logic version running on top of it.
type Store interface {
	// Atomic runs fn as one serialized read-write transaction. Writers are
	// totally ordered. If fn returns an error nothing it wrote is kept.
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn against a consistent read-only snapshot.
	View(ctx context.Context, fn func(tx ReadTx) error) error
}

// AccessRight is a granted (consumer, segment) pair.
type AccessRight struct {
	Consumer  domain.Address
	SegmentID uint64
	GrantedAt int64
}

// ReadTx exposes read access to every persistent structure.
type ReadTx interface {
	// TokenInfo returns the token metadata. Returns ErrNotFound before genesis.
	TokenInfo(ctx context.Context) (*domain.TokenInfo, error)

	// Balance returns the token balance of addr (zero if never credited).
	Balance(ctx context.Context, addr domain.Address) (math.Int, error)

	// Balances returns every non-zero balance.
	Balances(ctx context.Context) (map[domain.Address]math.Int, error)

	// Allowance returns how much spender may move from owner.
	Allowance(ctx context.Context, owner, spender domain.Address) (math.Int, error)

	// Distribution returns the one-time allocation. Returns ErrNotFound if not performed.
	Distribution(ctx context.Context) (*domain.Distribution, error)

	// VestingSchedule returns the team vesting schedule. Returns ErrNotFound if none.
	VestingSchedule(ctx context.Context) (*domain.VestingSchedule, error)

	// Segment retrieves a segment by id. Returns ErrNotFound if not exists.
	Segment(ctx context.Context, id uint64) (*domain.Segment, error)

	// Segments lists segments matching filter, ordered by id ASC.
	Segments(ctx context.Context, filter domain.SegmentFilter) ([]*domain.Segment, error)

	// HasAccess reports whether consumer holds access to segment id.
	HasAccess(ctx context.Context, consumer domain.Address, id uint64) (bool, error)

	// AccessRights lists every grant ordered by (segment_id, consumer).
	AccessRights(ctx context.Context) ([]AccessRight, error)

	// Earnings returns the accrued, unwithdrawn earnings of addr.
	Earnings(ctx context.Context, addr domain.Address) (math.Int, error)

	// AllEarnings returns every non-zero earnings balance.
	AllEarnings(ctx context.Context) (map[domain.Address]math.Int, error)

	// Config returns the global configuration. Returns ErrNotFound before genesis.
	Config(ctx context.Context) (*domain.GlobalConfig, error)

	// Events returns up to limit records with Seq > afterSeq, ordered by (seq, index).
	Events(ctx context.Context, afterSeq uint64, limit int) ([]*domain.EventRecord, error)
}

// Tx is a read-write transaction handed to Store.Atomic callbacks.
type Tx interface {
	ReadTx

	// Seq is the sequence number assigned to this transaction.
	Seq() uint64

	SetTokenInfo(ctx context.Context, info *domain.TokenInfo) error
	SetBalance(ctx context.Context, addr domain.Address, amount math.Int) error
	SetAllowance(ctx context.Context, owner, spender domain.Address, amount math.Int) error
	SetDistribution(ctx context.Context, d *domain.Distribution) error
	SetVestingSchedule(ctx context.Context, v *domain.VestingSchedule) error

	// NextSegmentID returns the id the next inserted segment must use.
	NextSegmentID(ctx context.Context) (uint64, error)

	// InsertSegment adds a segment. Returns ErrDuplicateKey if the id exists.
	InsertSegment(ctx context.Context, s *domain.Segment) error

	// UpdateSegment replaces a segment. Returns ErrNotFound if missing.
	UpdateSegment(ctx context.Context, s *domain.Segment) error

	// GrantAccess records a grant. Returns ErrDuplicateKey if already granted.
	GrantAccess(ctx context.Context, consumer domain.Address, id uint64, at int64) error

	SetEarnings(ctx context.Context, addr domain.Address, amount math.Int) error
	SetConfig(ctx context.Context, cfg *domain.GlobalConfig) error

	// AppendEvents adds records to the append-only event log.
	AppendEvents(ctx context.Context, records []*domain.EventRecord) error
}

// SettlementVolume aggregates SegmentPurchased events over a time range.
type SettlementVolume struct {
	Purchases      uint64
	Volume         math.Int
	ProviderPayout math.Int
	BrokerSpread   math.Int
}

// EventArchive is the analytics copy of the event log, fed by a sink after
// commit. It is never read by the engine.
type EventArchive interface {
	// InsertBulk stores records. Records whose (seq, index) is already
	// archived are skipped so replays are harmless. Returns ErrDuplicateKey
	// if the batch itself repeats a key.
	InsertBulk(ctx context.Context, records []*domain.EventRecord) error

	// GetByKind returns records of one kind ordered by (seq, index).
	GetByKind(ctx context.Context, kind string) ([]*domain.EventRecord, error)

	// GetBySegment returns records referring to a segment ordered by (seq, index).
	GetBySegment(ctx context.Context, segmentID uint64) ([]*domain.EventRecord, error)

	// GetByTimeRange returns records with Time in [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.EventRecord, error)

	// SettlementVolume sums purchases with Time in [start, end] (inclusive).
	SettlementVolume(ctx context.Context, start, end int64) (*SettlementVolume, error)
}
