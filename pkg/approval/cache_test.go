package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheLookupUndecidedByDefault(t *testing.T) {
	c := New()
	assert.Equal(t, Undecided, c.Lookup("execution", "execution"))
}

func TestCachePerToolTierTakesPrecedence(t *testing.T) {
	c := New()
	c.MemoizeCategory("execution", true)
	c.MemoizeTool("execution", "execution", false)

	assert.Equal(t, Denied, c.Lookup("execution", "execution"))
}

func TestCacheFallsBackToCategoryTier(t *testing.T) {
	c := New()
	c.MemoizeCategory("execution", true)
	assert.Equal(t, Approved, c.Lookup("some_other_tool", "execution"))
}

func TestCacheDistinctToolsDoNotShareMemoization(t *testing.T) {
	c := New()
	c.MemoizeTool("a", "execution", true)
	assert.Equal(t, Undecided, c.Lookup("b", "execution"))
}
