package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/chaincore/chaincore/types"
)

// versioned only answers Version; the registry never calls anything else.
type versioned struct {
	RuleSet
	version int
}

func (v versioned) Version() int { return v.version }

func minHeight(h int64) Matcher {
	return func(b *types.Block) bool { return b.Height >= h }
}

func TestRegistryRegister(t *testing.T) {
	r := newRegistry()
	require.ErrorIs(t, r.register(nil, nil), ErrInvalidVersion)
	require.ErrorIs(t, r.register(versioned{version: -1}, nil), ErrInvalidVersion)

	require.NoError(t, r.register(versioned{version: 2}, nil))
	require.NoError(t, r.register(versioned{version: 0}, nil))
	require.NoError(t, r.register(versioned{version: 1}, nil))

	var got []int
	for _, rules := range r.all() {
		got = append(got, rules.Version())
	}
	assert.Equal(t, []int{0, 1, 2}, got)

	highest, ok := r.highest()
	require.True(t, ok)
	assert.Equal(t, 2, highest.Version())
}

func TestRegistryReplacesSameVersion(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.register(versioned{version: 1}, minHeight(100)))
	require.NoError(t, r.register(versioned{version: 1}, nil))

	assert.Len(t, r.all(), 1)
	rules, err := r.resolve(&types.Block{ID: "a", Height: 1, Version: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, rules.Version())
}

func TestRegistryResolve(t *testing.T) {
	r := newRegistry()
	_, ok := r.highest()
	require.False(t, ok)

	require.NoError(t, r.register(versioned{version: 1}, minHeight(10)))
	require.NoError(t, r.register(versioned{version: 2}, minHeight(5)))

	testCases := []struct {
		name    string
		block   *types.Block
		version int
		err     error
	}{
		{"unregistered version", &types.Block{Height: 50, Version: 3}, 0, ErrUnregisteredVersion},
		{"lowest matcher wins", &types.Block{Height: 50, Version: 2}, 1, nil},
		{"only higher matcher accepts", &types.Block{Height: 7, Version: 1}, 2, nil},
		{"no matcher accepts", &types.Block{Height: 2, Version: 1}, 0, ErrNoMatchingProcessor},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rules, err := r.resolve(tc.block)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.version, rules.Version())
		})
	}
}

func TestRegistryResolveIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := newRegistry()
		n := rapid.IntRange(1, 6).Draw(t, "n").(int)
		for v := 0; v < n; v++ {
			threshold := rapid.Int64Range(1, 100).Draw(t, "threshold").(int64)
			if err := r.register(versioned{version: v}, minHeight(threshold)); err != nil {
				t.Fatalf("register: %v", err)
			}
		}

		block := &types.Block{
			Height:  rapid.Int64Range(1, 100).Draw(t, "height").(int64),
			Version: rapid.IntRange(0, n-1).Draw(t, "version").(int),
		}
		first, firstErr := r.resolve(block)
		for i := 0; i < 5; i++ {
			again, err := r.resolve(block)
			if (err == nil) != (firstErr == nil) {
				t.Fatalf("resolve flipped between error %v and %v", firstErr, err)
			}
			if err == nil && again.Version() != first.Version() {
				t.Fatalf("resolve returned v%d then v%d", first.Version(), again.Version())
			}
		}
	})
}
