package domain

// MaxSpreadBps is the hard cap on the broker spread (50%).
const MaxSpreadBps = 5000

// GlobalConfig holds the market's economic and governance parameters.
// It is owned by Operator; every mutation goes through a governance setter.
type GlobalConfig struct {
	Operator     Address
	SpreadBps    uint32
	BrokerWallet Address // receives the broker spread of every purchase
	BrokerPool   Address // recorded for downstream products; not paid by the buy path
	Phase        Phase
	Paused       bool
	Version      string // logic version the engine dispatches to
	ProgramID    Address
	Custody      Address // program-derived account holding unwithdrawn earnings
}

// Config keys accepted by the generic governance setter and reported in
// ConfigUpdated events.
const (
	ConfigKeySpreadBps    = "spread_bps"
	ConfigKeyBrokerWallet = "broker_wallet"
	ConfigKeyBrokerPool   = "broker_pool"
	ConfigKeyOperator     = "operator"
)
