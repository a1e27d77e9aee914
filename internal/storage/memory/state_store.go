package memory

import (
	"context"
	"sort"
	"sync"

	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/storage"
)

type allowanceKey struct {
	owner, spender domain.Address
}

type accessKey struct {
	consumer  domain.Address
	segmentID uint64
}

// state is one immutable-once-committed version of the market.
type state struct {
	token        *domain.TokenInfo
	balances     map[domain.Address]math.Int
	allowances   map[allowanceKey]math.Int
	distribution *domain.Distribution
	vesting      *domain.VestingSchedule
	segments     map[uint64]*domain.Segment
	lastSegment  uint64
	access       map[accessKey]int64
	earnings     map[domain.Address]math.Int
	config       *domain.GlobalConfig
	events       []*domain.EventRecord
	seq          uint64
}

func newState() *state {
	return &state{
		balances:   make(map[domain.Address]math.Int),
		allowances: make(map[allowanceKey]math.Int),
		segments:   make(map[uint64]*domain.Segment),
		access:     make(map[accessKey]int64),
		earnings:   make(map[domain.Address]math.Int),
	}
}

// clone copies the maps. Stored values are never mutated in place, so
// pointers are shared between versions.
func (s *state) clone() *state {
	c := *s
	c.balances = make(map[domain.Address]math.Int, len(s.balances))
	for k, v := range s.balances {
		c.balances[k] = v
	}
	c.allowances = make(map[allowanceKey]math.Int, len(s.allowances))
	for k, v := range s.allowances {
		c.allowances[k] = v
	}
	c.segments = make(map[uint64]*domain.Segment, len(s.segments))
	for k, v := range s.segments {
		c.segments[k] = v
	}
	c.access = make(map[accessKey]int64, len(s.access))
	for k, v := range s.access {
		c.access[k] = v
	}
	c.earnings = make(map[domain.Address]math.Int, len(s.earnings))
	for k, v := range s.earnings {
		c.earnings[k] = v
	}
	// Full slice expression so appends in the clone never touch the parent.
	c.events = s.events[:len(s.events):len(s.events)]
	return &c
}

// StateStore is an in-memory implementation of storage.Store.
// Atomic works on a private copy that replaces the committed state only
// when the callback succeeds.
type StateStore struct {
	mu    sync.RWMutex
	state *state
}

// NewStateStore creates an empty in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{state: newState()}
}

// Compile-time interface check.
var _ storage.Store = (*StateStore)(nil)

// Atomic runs fn against a copy of the state and commits it on success.
func (s *StateStore) Atomic(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	next.seq++
	if err := fn(&stateTx{st: next}); err != nil {
		return err
	}
	s.state = next
	return nil
}

// View runs fn against the committed state.
func (s *StateStore) View(ctx context.Context, fn func(tx storage.ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&stateTx{st: s.state, readOnly: true})
}

// stateTx implements storage.Tx over one state version.
type stateTx struct {
	st       *state
	readOnly bool
}

var _ storage.Tx = (*stateTx)(nil)

func (t *stateTx) writable() error {
	if t.readOnly {
		return storage.ErrReadOnly
	}
	return nil
}

func (t *stateTx) Seq() uint64 { return t.st.seq }

func (t *stateTx) TokenInfo(_ context.Context) (*domain.TokenInfo, error) {
	if t.st.token == nil {
		return nil, storage.ErrNotFound
	}
	info := *t.st.token
	return &info, nil
}

func (t *stateTx) SetTokenInfo(_ context.Context, info *domain.TokenInfo) error {
	if err := t.writable(); err != nil {
		return err
	}
	if info == nil {
		return storage.ErrInvalidInput
	}
	infoCopy := *info
	t.st.token = &infoCopy
	return nil
}

func (t *stateTx) Balance(_ context.Context, addr domain.Address) (math.Int, error) {
	if b, ok := t.st.balances[addr]; ok {
		return b, nil
	}
	return math.ZeroInt(), nil
}

func (t *stateTx) Balances(_ context.Context) (map[domain.Address]math.Int, error) {
	out := make(map[domain.Address]math.Int, len(t.st.balances))
	for k, v := range t.st.balances {
		out[k] = v
	}
	return out, nil
}

func (t *stateTx) SetBalance(_ context.Context, addr domain.Address, amount math.Int) error {
	if err := t.writable(); err != nil {
		return err
	}
	if amount.IsNil() || amount.IsNegative() {
		return storage.ErrInvalidInput
	}
	if amount.IsZero() {
		delete(t.st.balances, addr)
		return nil
	}
	t.st.balances[addr] = amount
	return nil
}

func (t *stateTx) Allowance(_ context.Context, owner, spender domain.Address) (math.Int, error) {
	if a, ok := t.st.allowances[allowanceKey{owner, spender}]; ok {
		return a, nil
	}
	return math.ZeroInt(), nil
}

func (t *stateTx) SetAllowance(_ context.Context, owner, spender domain.Address, amount math.Int) error {
	if err := t.writable(); err != nil {
		return err
	}
	if amount.IsNil() || amount.IsNegative() {
		return storage.ErrInvalidInput
	}
	key := allowanceKey{owner, spender}
	if amount.IsZero() {
		delete(t.st.allowances, key)
		return nil
	}
	t.st.allowances[key] = amount
	return nil
}

func (t *stateTx) Distribution(_ context.Context) (*domain.Distribution, error) {
	if t.st.distribution == nil {
		return nil, storage.ErrNotFound
	}
	d := *t.st.distribution
	return &d, nil
}

func (t *stateTx) SetDistribution(_ context.Context, d *domain.Distribution) error {
	if err := t.writable(); err != nil {
		return err
	}
	if d == nil {
		return storage.ErrInvalidInput
	}
	dCopy := *d
	t.st.distribution = &dCopy
	return nil
}

func (t *stateTx) VestingSchedule(_ context.Context) (*domain.VestingSchedule, error) {
	if t.st.vesting == nil {
		return nil, storage.ErrNotFound
	}
	v := *t.st.vesting
	return &v, nil
}

func (t *stateTx) SetVestingSchedule(_ context.Context, v *domain.VestingSchedule) error {
	if err := t.writable(); err != nil {
		return err
	}
	if v == nil {
		return storage.ErrInvalidInput
	}
	vCopy := *v
	t.st.vesting = &vCopy
	return nil
}

func (t *stateTx) NextSegmentID(_ context.Context) (uint64, error) {
	return t.st.lastSegment + 1, nil
}

func (t *stateTx) Segment(_ context.Context, id uint64) (*domain.Segment, error) {
	seg, ok := t.st.segments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	segCopy := *seg
	return &segCopy, nil
}

func (t *stateTx) Segments(_ context.Context, filter domain.SegmentFilter) ([]*domain.Segment, error) {
	var result []*domain.Segment
	for _, seg := range t.st.segments {
		if filter.Matches(seg) {
			segCopy := *seg
			result = append(result, &segCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (t *stateTx) InsertSegment(_ context.Context, seg *domain.Segment) error {
	if err := t.writable(); err != nil {
		return err
	}
	if seg == nil || seg.ID == 0 {
		return storage.ErrInvalidInput
	}
	if _, exists := t.st.segments[seg.ID]; exists {
		return storage.ErrDuplicateKey
	}
	segCopy := *seg
	t.st.segments[seg.ID] = &segCopy
	if seg.ID > t.st.lastSegment {
		t.st.lastSegment = seg.ID
	}
	return nil
}

func (t *stateTx) UpdateSegment(_ context.Context, seg *domain.Segment) error {
	if err := t.writable(); err != nil {
		return err
	}
	if seg == nil {
		return storage.ErrInvalidInput
	}
	if _, exists := t.st.segments[seg.ID]; !exists {
		return storage.ErrNotFound
	}
	segCopy := *seg
	t.st.segments[seg.ID] = &segCopy
	return nil
}

func (t *stateTx) HasAccess(_ context.Context, consumer domain.Address, id uint64) (bool, error) {
	_, ok := t.st.access[accessKey{consumer, id}]
	return ok, nil
}

func (t *stateTx) AccessRights(_ context.Context) ([]storage.AccessRight, error) {
	result := make([]storage.AccessRight, 0, len(t.st.access))
	for k, at := range t.st.access {
		result = append(result, storage.AccessRight{Consumer: k.consumer, SegmentID: k.segmentID, GrantedAt: at})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SegmentID != result[j].SegmentID {
			return result[i].SegmentID < result[j].SegmentID
		}
		return result[i].Consumer.String() < result[j].Consumer.String()
	})
	return result, nil
}

func (t *stateTx) GrantAccess(_ context.Context, consumer domain.Address, id uint64, at int64) error {
	if err := t.writable(); err != nil {
		return err
	}
	key := accessKey{consumer, id}
	if _, exists := t.st.access[key]; exists {
		return storage.ErrDuplicateKey
	}
	t.st.access[key] = at
	return nil
}

func (t *stateTx) Earnings(_ context.Context, addr domain.Address) (math.Int, error) {
	if e, ok := t.st.earnings[addr]; ok {
		return e, nil
	}
	return math.ZeroInt(), nil
}

func (t *stateTx) AllEarnings(_ context.Context) (map[domain.Address]math.Int, error) {
	out := make(map[domain.Address]math.Int, len(t.st.earnings))
	for k, v := range t.st.earnings {
		out[k] = v
	}
	return out, nil
}

func (t *stateTx) SetEarnings(_ context.Context, addr domain.Address, amount math.Int) error {
	if err := t.writable(); err != nil {
		return err
	}
	if amount.IsNil() || amount.IsNegative() {
		return storage.ErrInvalidInput
	}
	if amount.IsZero() {
		delete(t.st.earnings, addr)
		return nil
	}
	t.st.earnings[addr] = amount
	return nil
}

func (t *stateTx) Config(_ context.Context) (*domain.GlobalConfig, error) {
	if t.st.config == nil {
		return nil, storage.ErrNotFound
	}
	cfg := *t.st.config
	return &cfg, nil
}

func (t *stateTx) SetConfig(_ context.Context, cfg *domain.GlobalConfig) error {
	if err := t.writable(); err != nil {
		return err
	}
	if cfg == nil {
		return storage.ErrInvalidInput
	}
	cfgCopy := *cfg
	t.st.config = &cfgCopy
	return nil
}

func (t *stateTx) Events(_ context.Context, afterSeq uint64, limit int) ([]*domain.EventRecord, error) {
	// Events are appended in (seq, index) order.
	start := sort.Search(len(t.st.events), func(i int) bool {
		return t.st.events[i].Seq > afterSeq
	})

	var result []*domain.EventRecord
	for _, rec := range t.st.events[start:] {
		if limit > 0 && len(result) >= limit {
			break
		}
		result = append(result, copyRecord(rec))
	}
	return result, nil
}

func (t *stateTx) AppendEvents(_ context.Context, records []*domain.EventRecord) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, rec := range records {
		if rec == nil || rec.ID == "" || rec.Seq != t.st.seq {
			return storage.ErrInvalidInput
		}
	}
	for _, rec := range records {
		t.st.events = append(t.st.events, copyRecord(rec))
	}
	return nil
}

func copyRecord(r *domain.EventRecord) *domain.EventRecord {
	c := *r
	c.Attributes = make(map[string]string, len(r.Attributes))
	for k, v := range r.Attributes {
		c.Attributes[k] = v
	}
	return &c
}
