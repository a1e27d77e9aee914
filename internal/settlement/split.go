package settlement

import (
	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
)

// ComputeSplit divides ask between broker and provider. The broker spread is
// floor(ask * spreadBps / 10000) and the provider receives the rest, so the
// two parts always sum to ask.
func ComputeSplit(ask math.Int, spreadBps uint32) domain.Split {
	spread := domain.MulBps(ask, spreadBps)
	return domain.Split{
		AskPrice:       ask,
		ProviderPayout: ask.Sub(spread),
		BrokerSpread:   spread,
	}
}
