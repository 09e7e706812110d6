package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecentCallsProceedsWhenUnseen(t *testing.T) {
	rc := NewRecentCalls()
	assert.Equal(t, Proceed, rc.Check("sig-1"))
}

func TestRecentCallsBlocksRapidDuplicate(t *testing.T) {
	rc := NewRecentCalls()
	fakeNow := time.Now()
	rc.now = func() time.Time { return fakeNow }

	rc.Record("sig-1", true)
	assert.Equal(t, RapidDuplicate, rc.Check("sig-1"))
}

func TestRecentCallsAllowsSuccessAfterRapidWindow(t *testing.T) {
	rc := NewRecentCalls()
	fakeNow := time.Now()
	rc.now = func() time.Time { return fakeNow }

	rc.Record("sig-1", true)
	fakeNow = fakeNow.Add(RapidDuplicateTTL + time.Second)
	assert.Equal(t, Proceed, rc.Check("sig-1"))
}

func TestRecentCallsBlocksFailedRetryWithinWindow(t *testing.T) {
	rc := NewRecentCalls()
	fakeNow := time.Now()
	rc.now = func() time.Time { return fakeNow }

	rc.Record("sig-1", false)
	fakeNow = fakeNow.Add(RapidDuplicateTTL + time.Second)
	assert.Equal(t, FailedRetryBlocked, rc.Check("sig-1"))
}

func TestRecentCallsAllowsFailureAfterFailedRetryWindow(t *testing.T) {
	rc := NewRecentCalls()
	fakeNow := time.Now()
	rc.now = func() time.Time { return fakeNow }

	rc.Record("sig-1", false)
	fakeNow = fakeNow.Add(FailedRetryTTL + time.Second)
	assert.Equal(t, Proceed, rc.Check("sig-1"))
}
