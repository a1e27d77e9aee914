package api

import (
	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/settlement"
)

// Amounts are smallest-unit integers rendered as JSON strings.

type segmentResponse struct {
	ID            uint64             `json:"id"`
	Provider      domain.Address     `json:"provider"`
	Type          domain.SegmentType `json:"type"`
	WindowDays    uint16             `json:"window_days"`
	ConfidenceBps uint16             `json:"confidence_bps"`
	AskPrice      math.Int           `json:"ask_price"`
	Active        bool               `json:"active"`
	Label         string             `json:"label"`
	CreatedAt     int64              `json:"created_at"`
	UpdatedAt     int64              `json:"updated_at"`
}

func newSegmentResponse(s *domain.Segment) segmentResponse {
	return segmentResponse{
		ID:            s.ID,
		Provider:      s.Provider,
		Type:          s.Type,
		WindowDays:    s.WindowDays,
		ConfidenceBps: s.ConfidenceBps,
		AskPrice:      s.AskPrice,
		Active:        s.Active,
		Label:         s.Label(),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

type splitResponse struct {
	AskPrice       math.Int `json:"ask_price"`
	ProviderPayout math.Int `json:"provider_payout"`
	BrokerSpread   math.Int `json:"broker_spread"`
}

func newSplitResponse(s domain.Split) splitResponse {
	return splitResponse{AskPrice: s.AskPrice, ProviderPayout: s.ProviderPayout, BrokerSpread: s.BrokerSpread}
}

type settlementResponse struct {
	SegmentID uint64         `json:"segment_id"`
	Consumer  domain.Address `json:"consumer"`
	Provider  domain.Address `json:"provider"`
	splitResponse
	SettledAt int64 `json:"settled_at"`
}

func newSettlementResponse(s *domain.Settlement) settlementResponse {
	return settlementResponse{
		SegmentID:     s.SegmentID,
		Consumer:      s.Consumer,
		Provider:      s.Provider,
		splitResponse: newSplitResponse(s.Split),
		SettledAt:     s.SettledAt,
	}
}

type configResponse struct {
	Operator     domain.Address `json:"operator"`
	SpreadBps    uint32         `json:"spread_bps"`
	BrokerWallet domain.Address `json:"broker_wallet"`
	BrokerPool   domain.Address `json:"broker_pool"`
	Phase        domain.Phase   `json:"phase"`
	Paused       bool           `json:"paused"`
	Version      string         `json:"version"`
	ProgramID    domain.Address `json:"program_id"`
	Custody      domain.Address `json:"custody"`
}

func newConfigResponse(c *domain.GlobalConfig) configResponse {
	return configResponse{
		Operator:     c.Operator,
		SpreadBps:    c.SpreadBps,
		BrokerWallet: c.BrokerWallet,
		BrokerPool:   c.BrokerPool,
		Phase:        c.Phase,
		Paused:       c.Paused,
		Version:      c.Version,
		ProgramID:    c.ProgramID,
		Custody:      c.Custody,
	}
}

type tokenResponse struct {
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"`
	Decimals    int32          `json:"decimals"`
	TotalSupply math.Int       `json:"total_supply"`
	Display     string         `json:"total_supply_display"`
	Issuer      domain.Address `json:"issuer"`
}

func newTokenResponse(t *domain.TokenInfo) tokenResponse {
	return tokenResponse{
		Name:        t.Name,
		Symbol:      t.Symbol,
		Decimals:    t.Decimals,
		TotalSupply: t.TotalSupply,
		Display:     domain.FormatTokens(t.TotalSupply, t.Decimals),
		Issuer:      t.Issuer,
	}
}

type distributionResponse struct {
	Treasury          domain.Address `json:"treasury"`
	Ecosystem         domain.Address `json:"ecosystem"`
	ICO               domain.Address `json:"ico"`
	TeamVestingTarget domain.Address `json:"team_vesting_target"`
	DistributedAt     int64          `json:"distributed_at"`
}

type allocationResponse struct {
	Treasury  math.Int `json:"treasury"`
	Ecosystem math.Int `json:"ecosystem"`
	ICO       math.Int `json:"ico"`
	Team      math.Int `json:"team"`
}

type vestingResponse struct {
	Beneficiary domain.Address `json:"beneficiary"`
	Start       int64          `json:"start"`
	Duration    int64          `json:"duration"`
	Total       math.Int       `json:"total"`
	Released    math.Int       `json:"released"`
	Locked      math.Int       `json:"locked"`
	Releasable  math.Int       `json:"releasable"`
}

type statusResponse struct {
	Initialized bool            `json:"initialized"`
	Versions    []string        `json:"versions"`
	Config      *configResponse `json:"config,omitempty"`
	Token       *tokenResponse  `json:"token,omitempty"`
	Segments    int             `json:"segments"`
	Distributed bool            `json:"distributed"`
}

func newStatusResponse(st *settlement.Status) statusResponse {
	cfg := newConfigResponse(st.Config)
	tok := newTokenResponse(st.Token)
	return statusResponse{
		Initialized: true,
		Versions:    st.Versions,
		Config:      &cfg,
		Token:       &tok,
		Segments:    st.Segments,
		Distributed: st.Distributed,
	}
}

type genesisRequest struct {
	TokenName    string         `json:"token_name"`
	TokenSymbol  string         `json:"token_symbol"`
	Decimals     int32          `json:"decimals"`
	TotalSupply  string         `json:"total_supply"` // whole tokens
	SpreadBps    uint32         `json:"spread_bps"`
	BrokerWallet domain.Address `json:"broker_wallet"`
	BrokerPool   domain.Address `json:"broker_pool"`
	ProgramID    domain.Address `json:"program_id"`
	Version      string         `json:"version"`
}

type createSegmentRequest struct {
	Type          domain.SegmentType `json:"type"`
	WindowDays    uint16             `json:"window_days"`
	ConfidenceBps uint16             `json:"confidence_bps"`
	AskPrice      math.Int           `json:"ask_price"`
}

type priceRequest struct {
	AskPrice math.Int `json:"ask_price"`
}

type buySegmentsRequest struct {
	IDs []uint64 `json:"ids"`
}

type amountRequest struct {
	Amount math.Int `json:"amount"`
}

type transferRequest struct {
	To     domain.Address `json:"to"`
	Amount math.Int       `json:"amount"`
}

type transferFromRequest struct {
	Owner  domain.Address `json:"owner"`
	To     domain.Address `json:"to"`
	Amount math.Int       `json:"amount"`
}

type approveRequest struct {
	Spender domain.Address `json:"spender"`
	Amount  math.Int       `json:"amount"`
}

type distributeRequest struct {
	Treasury          domain.Address `json:"treasury"`
	Ecosystem         domain.Address `json:"ecosystem"`
	ICO               domain.Address `json:"ico"`
	TeamVestingTarget domain.Address `json:"team_vesting_target"`
	VestingDuration   int64          `json:"vesting_duration"` // seconds; zero means the default
}

type spreadRequest struct {
	SpreadBps uint32 `json:"spread_bps"`
}

type addressRequest struct {
	Address domain.Address `json:"address"`
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

type versionRequest struct {
	Version string `json:"version"`
}

type configUpdateRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
