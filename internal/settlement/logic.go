package settlement

import (
	"fmt"
	"sort"
	"sync"

	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
)

// DefaultVersion is the logic version a market starts with.
const DefaultVersion = "v1"

// SegmentParams are the provider-chosen attributes of a new segment.
type SegmentParams struct {
	Type          domain.SegmentType
	WindowDays    uint16
	ConfidenceBps uint16
	AskPrice      math.Int
}

// Logic is one version of the marketplace rules. Every version reads and
// writes the same storage schema, so versions can be swapped at any time
// without migrating state.
type Logic interface {
	Version() string

	CreateSegment(env *Env, params SegmentParams) (uint64, error)
	UpdateSegmentPrice(env *Env, id uint64, price math.Int) error
	DeactivateSegment(env *Env, id uint64) error

	BuySegment(env *Env, id uint64) (*domain.Settlement, error)
	BuySegments(env *Env, ids []uint64) ([]*domain.Settlement, error)

	WithdrawEarnings(env *Env, amount math.Int) error
}

// Registry maps version names to logic implementations. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	logics map[string]Logic
}

// NewRegistry creates a registry holding logics.
func NewRegistry(logics ...Logic) *Registry {
	r := &Registry{logics: make(map[string]Logic)}
	for _, l := range logics {
		r.logics[l.Version()] = l
	}
	return r
}

// DefaultRegistry returns a registry with every built-in version.
func DefaultRegistry() *Registry {
	return NewRegistry(LogicV1{}, LogicV2{})
}

// Register adds a version. Registering a name twice is an error.
func (r *Registry) Register(l Logic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.Version() == "" {
		return fmt.Errorf("logic version must not be empty")
	}
	if _, exists := r.logics[l.Version()]; exists {
		return fmt.Errorf("logic version %q already registered", l.Version())
	}
	r.logics[l.Version()] = l
	return nil
}

// Lookup returns the logic registered as version.
func (r *Registry) Lookup(version string) (Logic, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.logics[version]
	return l, ok
}

// Versions lists registered versions in lexical order.
func (r *Registry) Versions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.logics))
	for v := range r.logics {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
