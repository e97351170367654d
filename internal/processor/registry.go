package processor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chaincore/chaincore/types"
)

// registry maps protocol versions to rule sets and matchers. Matchers are
// consulted in ascending version order and the first match wins, so a matcher
// registered under a low version can shadow a higher one.
type registry struct {
	mtx      sync.RWMutex
	rules    map[int]RuleSet
	matchers map[int]Matcher
	versions []int // ascending
}

func newRegistry() *registry {
	return &registry{
		rules:    make(map[int]RuleSet),
		matchers: make(map[int]Matcher),
	}
}

func (r *registry) register(rules RuleSet, matcher Matcher) error {
	if rules == nil {
		return fmt.Errorf("%w: nil rule set", ErrInvalidVersion)
	}
	version := rules.Version()
	if version < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidVersion, version)
	}
	if matcher == nil {
		matcher = MatchAll
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.rules[version]; !ok {
		r.versions = append(r.versions, version)
		sort.Ints(r.versions)
	}
	r.rules[version] = rules
	r.matchers[version] = matcher
	return nil
}

func (r *registry) resolve(block *types.Block) (RuleSet, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	if _, ok := r.rules[block.Version]; !ok {
		return nil, fmt.Errorf("%w: version %d", ErrUnregisteredVersion, block.Version)
	}
	for _, version := range r.versions {
		if r.matchers[version](block) {
			return r.rules[version], nil
		}
	}
	return nil, fmt.Errorf("%w: block %s at height %d", ErrNoMatchingProcessor, block.ID, block.Height)
}

func (r *registry) highest() (RuleSet, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	if len(r.versions) == 0 {
		return nil, false
	}
	return r.rules[r.versions[len(r.versions)-1]], true
}

// all returns the registered rule sets in ascending version order.
func (r *registry) all() []RuleSet {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	out := make([]RuleSet, 0, len(r.versions))
	for _, version := range r.versions {
		out = append(out, r.rules[version])
	}
	return out
}
