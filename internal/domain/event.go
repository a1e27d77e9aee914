package domain

import (
	"strconv"

	"cosmossdk.io/math"
)

// Event kinds emitted by the engine and the token ledger.
const (
	EventSegmentCreated        = "SegmentCreated"
	EventSegmentPriceUpdated   = "SegmentPriceUpdated"
	EventSegmentDeactivated    = "SegmentDeactivated"
	EventSegmentPurchased      = "SegmentPurchased"
	EventPayoutRecorded        = "PayoutRecorded"
	EventWithdrawal            = "Withdrawal"
	EventConfigUpdated         = "ConfigUpdated"
	EventPhaseAdvanced         = "PhaseAdvanced"
	EventMarketPaused          = "MarketPaused"
	EventImplementationSwapped = "ImplementationSwapped"
	EventTransfer              = "Transfer"
	EventApproval              = "Approval"
	EventBurn                  = "Burn"
	EventAllocationDistributed = "AllocationDistributed"
	EventTokensReleased        = "TokensReleased"
)

// Attribute keys shared across event kinds.
const (
	AttrSegmentID      = "segment_id"
	AttrProvider       = "provider"
	AttrConsumer       = "consumer"
	AttrType           = "type"
	AttrAskPrice       = "ask_price"
	AttrProviderPayout = "provider_payout"
	AttrBrokerSpread   = "broker_spread"
	AttrAmount         = "amount"
	AttrOwner          = "owner"
	AttrTime           = "time"
	AttrKey            = "key"
	AttrValue          = "value"
	AttrPhase          = "phase"
	AttrPaused         = "paused"
	AttrOldVersion     = "old"
	AttrNewVersion     = "new"
	AttrFrom           = "from"
	AttrTo             = "to"
	AttrSpender        = "spender"
	AttrTreasury       = "treasury"
	AttrEcosystem      = "ecosystem"
	AttrICO            = "ico"
	AttrTeam           = "team"
	AttrBeneficiary    = "beneficiary"
)

// Event is a record emitted by an operation for external consumers.
// Events are never read back by the engine.
type Event interface {
	Kind() string
	Attributes() map[string]string
}

// EventRecord is an event as persisted in the append-only log.
// Seq is the sequence number of the committing transaction and Index the
// position of the event within it.
type EventRecord struct {
	ID         string
	Seq        uint64
	Index      int
	Kind       string
	Time       int64 // unix seconds
	Attributes map[string]string
}

// Attr returns an attribute or "".
func (r *EventRecord) Attr(key string) string {
	return r.Attributes[key]
}

// SegmentID returns the segment the event refers to, or 0.
func (r *EventRecord) SegmentID() uint64 {
	id, _ := strconv.ParseUint(r.Attributes[AttrSegmentID], 10, 64)
	return id
}

// Actor returns the primary party of the event, or "".
func (r *EventRecord) Actor() string {
	for _, key := range []string{AttrConsumer, AttrProvider, AttrOwner, AttrFrom, AttrBeneficiary} {
		if v := r.Attributes[key]; v != "" {
			return v
		}
	}
	return ""
}

// Amount returns the value carried by the event: the ask price for
// segment events, the moved amount otherwise. Zero if neither is set.
func (r *EventRecord) Amount() math.Int {
	raw := r.Attributes[AttrAskPrice]
	if raw == "" {
		raw = r.Attributes[AttrAmount]
	}
	v, ok := math.NewIntFromString(raw)
	if !ok {
		return math.ZeroInt()
	}
	return v
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

type SegmentCreated struct {
	ID       uint64
	Provider Address
	Type     SegmentType
	AskPrice math.Int
}

func (e SegmentCreated) Kind() string { return EventSegmentCreated }
func (e SegmentCreated) Attributes() map[string]string {
	return map[string]string{
		AttrSegmentID: u64(e.ID),
		AttrProvider:  e.Provider.String(),
		AttrType:      e.Type.String(),
		AttrAskPrice:  e.AskPrice.String(),
	}
}

type SegmentPriceUpdated struct {
	ID       uint64
	Provider Address
	AskPrice math.Int
}

func (e SegmentPriceUpdated) Kind() string { return EventSegmentPriceUpdated }
func (e SegmentPriceUpdated) Attributes() map[string]string {
	return map[string]string{
		AttrSegmentID: u64(e.ID),
		AttrProvider:  e.Provider.String(),
		AttrAskPrice:  e.AskPrice.String(),
	}
}

type SegmentDeactivated struct {
	ID       uint64
	Provider Address
}

func (e SegmentDeactivated) Kind() string { return EventSegmentDeactivated }
func (e SegmentDeactivated) Attributes() map[string]string {
	return map[string]string{
		AttrSegmentID: u64(e.ID),
		AttrProvider:  e.Provider.String(),
	}
}

type SegmentPurchased struct {
	ID             uint64
	Consumer       Address
	Provider       Address
	AskPrice       math.Int
	ProviderPayout math.Int
	BrokerSpread   math.Int
}

func (e SegmentPurchased) Kind() string { return EventSegmentPurchased }
func (e SegmentPurchased) Attributes() map[string]string {
	return map[string]string{
		AttrSegmentID:      u64(e.ID),
		AttrConsumer:       e.Consumer.String(),
		AttrProvider:       e.Provider.String(),
		AttrAskPrice:       e.AskPrice.String(),
		AttrProviderPayout: e.ProviderPayout.String(),
		AttrBrokerSpread:   e.BrokerSpread.String(),
	}
}

type PayoutRecorded struct {
	Provider  Address
	Amount    math.Int
	SegmentID uint64
	Time      int64
}

func (e PayoutRecorded) Kind() string { return EventPayoutRecorded }
func (e PayoutRecorded) Attributes() map[string]string {
	return map[string]string{
		AttrProvider:  e.Provider.String(),
		AttrAmount:    e.Amount.String(),
		AttrSegmentID: u64(e.SegmentID),
		AttrTime:      strconv.FormatInt(e.Time, 10),
	}
}

type Withdrawal struct {
	Owner  Address
	Amount math.Int
	Time   int64
}

func (e Withdrawal) Kind() string { return EventWithdrawal }
func (e Withdrawal) Attributes() map[string]string {
	return map[string]string{
		AttrOwner:  e.Owner.String(),
		AttrAmount: e.Amount.String(),
		AttrTime:   strconv.FormatInt(e.Time, 10),
	}
}

type ConfigUpdated struct {
	Key   string
	Value string
}

func (e ConfigUpdated) Kind() string { return EventConfigUpdated }
func (e ConfigUpdated) Attributes() map[string]string {
	return map[string]string{AttrKey: e.Key, AttrValue: e.Value}
}

type PhaseAdvanced struct {
	NewPhase Phase
}

func (e PhaseAdvanced) Kind() string { return EventPhaseAdvanced }
func (e PhaseAdvanced) Attributes() map[string]string {
	return map[string]string{AttrPhase: e.NewPhase.String()}
}

type MarketPaused struct {
	Paused bool
}

func (e MarketPaused) Kind() string { return EventMarketPaused }
func (e MarketPaused) Attributes() map[string]string {
	return map[string]string{AttrPaused: strconv.FormatBool(e.Paused)}
}

type ImplementationSwapped struct {
	Old string
	New string
}

func (e ImplementationSwapped) Kind() string { return EventImplementationSwapped }
func (e ImplementationSwapped) Attributes() map[string]string {
	return map[string]string{AttrOldVersion: e.Old, AttrNewVersion: e.New}
}

type Transfer struct {
	From   Address
	To     Address
	Amount math.Int
}

func (e Transfer) Kind() string { return EventTransfer }
func (e Transfer) Attributes() map[string]string {
	return map[string]string{
		AttrFrom:   e.From.String(),
		AttrTo:     e.To.String(),
		AttrAmount: e.Amount.String(),
	}
}

type Approval struct {
	Owner   Address
	Spender Address
	Amount  math.Int
}

func (e Approval) Kind() string { return EventApproval }
func (e Approval) Attributes() map[string]string {
	return map[string]string{
		AttrOwner:   e.Owner.String(),
		AttrSpender: e.Spender.String(),
		AttrAmount:  e.Amount.String(),
	}
}

type Burn struct {
	Owner  Address
	Amount math.Int
}

func (e Burn) Kind() string { return EventBurn }
func (e Burn) Attributes() map[string]string {
	return map[string]string{AttrOwner: e.Owner.String(), AttrAmount: e.Amount.String()}
}

type AllocationDistributed struct {
	Distribution Distribution
	Amounts      AllocationAmounts
}

func (e AllocationDistributed) Kind() string { return EventAllocationDistributed }
func (e AllocationDistributed) Attributes() map[string]string {
	return map[string]string{
		AttrTreasury:  e.Distribution.Treasury.String() + ":" + e.Amounts.Treasury.String(),
		AttrEcosystem: e.Distribution.Ecosystem.String() + ":" + e.Amounts.Ecosystem.String(),
		AttrICO:       e.Distribution.ICO.String() + ":" + e.Amounts.ICO.String(),
		AttrTeam:      e.Distribution.TeamVestingTarget.String() + ":" + e.Amounts.Team.String(),
		AttrTime:      strconv.FormatInt(e.Distribution.DistributedAt, 10),
	}
}

type TokensReleased struct {
	Beneficiary Address
	Amount      math.Int
}

func (e TokensReleased) Kind() string { return EventTokensReleased }
func (e TokensReleased) Attributes() map[string]string {
	return map[string]string{AttrBeneficiary: e.Beneficiary.String(), AttrAmount: e.Amount.String()}
}

// Journal collects the events of one operation in emission order.
type Journal struct {
	events []Event
}

// Emit appends an event.
func (j *Journal) Emit(e Event) {
	j.events = append(j.events, e)
}

// Events returns the collected events.
func (j *Journal) Events() []Event {
	return j.events
}

// Len returns the number of collected events.
func (j *Journal) Len() int {
	return len(j.events)
}
