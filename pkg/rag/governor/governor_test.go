package governor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type GovernorSuite struct {
	suite.Suite
	clock *fakeClock
	gov   *Governor
}

func (s *GovernorSuite) SetupTest() {
	s.clock = &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s.gov = New(Config{SpendCeiling: 0.50, TTL: time.Hour, Now: s.clock.Now})
}

func TestGovernorSuite(t *testing.T) {
	suite.Run(t, new(GovernorSuite))
}

func (s *GovernorSuite) TestCheckBeforeRecordAfter() {
	s.gov.Touch("s1", 0)
	s.Require().NoError(s.gov.CheckBudget("s1"), "fresh session is admitted")

	// an admitted request costing more than the ceiling is recorded, not refunded
	total, err := s.gov.AddSpend("s1", 0.51)
	s.ErrorIs(err, ErrSpendLimitExceeded)
	s.InDelta(0.51, total, 1e-9)

	// every later request is refused before any work is done
	for i := 0; i < 3; i++ {
		s.ErrorIs(s.gov.CheckBudget("s1"), ErrSpendLimitExceeded)
	}
	usage, ok := s.gov.Usage("s1")
	s.Require().True(ok)
	s.InDelta(0.51, usage.Spent, 1e-9)
}

func (s *GovernorSuite) TestSpendAccumulatesUntilCeiling() {
	s.gov.Touch("s1", 0)
	for i := 0; i < 4; i++ {
		_, err := s.gov.AddSpend("s1", 0.125)
		s.Require().NoError(err)
	}
	s.ErrorIs(s.gov.CheckBudget("s1"), ErrSpendLimitExceeded, "exactly at the ceiling blocks new requests")

	_, err := s.gov.AddSpend("s1", -1)
	s.ErrorIs(err, ErrSpendLimitExceeded)
	usage, _ := s.gov.Usage("s1")
	s.InDelta(0.50, usage.Spent, 1e-9, "negative amounts are ignored")
}

func (s *GovernorSuite) TestTouchSeedsPersistedSpendOnce() {
	s.gov.Touch("s1", 0.45)
	s.gov.Touch("s1", 0)
	usage, ok := s.gov.Usage("s1")
	s.Require().True(ok)
	s.InDelta(0.45, usage.Spent, 1e-9)
}

func (s *GovernorSuite) TestSweepEvictsIdleSessions() {
	s.gov.Touch("idle", 0)
	s.clock.Advance(30 * time.Minute)
	s.gov.Touch("active", 0)
	s.clock.Advance(30 * time.Minute)

	s.Equal([]string{"idle"}, s.gov.Sweep())
	_, ok := s.gov.Usage("idle")
	s.False(ok)
	s.Equal(1, s.gov.Len())

	s.gov.Touch("active", 0)
	s.clock.Advance(59 * time.Minute)
	s.Empty(s.gov.Sweep())
}

func (s *GovernorSuite) TestForget() {
	s.gov.Touch("s1", 0.49)
	s.gov.Forget("s1")
	_, ok := s.gov.Usage("s1")
	s.False(ok)
	s.NoError(s.gov.CheckBudget("s1"))
}

func TestGovernor_ConcurrentSpend(t *testing.T) {
	g := New(Config{SpendCeiling: 1000, TTL: time.Hour})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Touch("s", 0)
			_, err := g.AddSpend("s", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	usage, ok := g.Usage("s")
	require.True(t, ok)
	assert.InDelta(t, 50.0, usage.Spent, 1e-9)
}
