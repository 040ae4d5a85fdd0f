package ledger

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.UnixMilli(1_700_000_000_000)

func newTestLedger(t *testing.T, mutate ...func(*Config)) (*Ledger, *clockwork.FakeClock) {
	t.Helper()
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	clock := clockwork.NewFakeClockAt(epoch)
	return New(cfg, clock, rand.New(rand.NewPCG(1, 2))), clock
}

var (
	alice = User{ID: "1001", DisplayName: "alice"}
	bob   = User{ID: "1002", DisplayName: "bob"}
	owner = User{ID: "252205625", DisplayName: "owner"}
)

func TestRecordTap_InsufficientBalanceAfterBalanceSpent(t *testing.T) {
	l, _ := newTestLedger(t)
	require.Equal(t, 3, l.Buy(alice, 3))

	for i := 0; i < 3; i++ {
		_, err := l.RecordTap(alice)
		require.NoError(t, err, "tap %d", i+1)
	}

	_, err := l.RecordTap(alice)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, 3, l.Jackpot())
	assert.Equal(t, 0, l.Balance(alice))
	assert.Equal(t, 3, l.TapCount())
}

func TestRecordTap_NewUserStartsWithDefaultBalance(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.RecordTap(bob)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, 0, l.Jackpot())
	assert.Equal(t, 0, l.TapCount())
}

func TestRecordTap_OwnerTapsFree(t *testing.T) {
	l, _ := newTestLedger(t)
	before := l.Balance(owner)

	for i := 0; i < 5; i++ {
		r, err := l.RecordTap(owner)
		require.NoError(t, err)
		assert.Equal(t, before, r.Balance)
		assert.Equal(t, i+1, r.Jackpot)
	}

	assert.Equal(t, 5, l.Jackpot())
	assert.Equal(t, before, l.Balance(owner))
	assert.Equal(t, DefaultConfig().OwnerBalance, before)
}

func TestRecordTap_JackpotCountsAcceptedTaps(t *testing.T) {
	l, clock := newTestLedger(t)
	l.Buy(alice, 2)
	l.Buy(bob, 1)

	accepted := 0
	for _, u := range []User{alice, bob, alice, bob, alice, owner} {
		clock.Advance(time.Second)
		if _, err := l.RecordTap(u); err == nil {
			accepted++
		}
	}

	assert.Equal(t, 4, accepted)
	assert.Equal(t, accepted, l.Jackpot())
}

func TestRecordTap_RoundWindow(t *testing.T) {
	cases := []struct {
		name    string
		advance time.Duration
		wantErr error
	}{
		{name: "start of round", advance: 0},
		{name: "mid round", advance: 30 * time.Second},
		{name: "exact end is inclusive", advance: 60 * time.Second},
		{name: "one ms late", advance: 60*time.Second + time.Millisecond, wantErr: ErrRoundClosed},
		{name: "long after", advance: time.Hour, wantErr: ErrRoundClosed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, clock := newTestLedger(t)
			clock.Advance(tc.advance)

			r, err := l.RecordTap(owner)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, 0, l.Jackpot())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, epoch.Add(tc.advance).UnixMilli(), r.Timestamp)
		})
	}
}

func TestDraw_RejectedWhileRoundOpen(t *testing.T) {
	l, clock := newTestLedger(t)
	_, err := l.RecordTap(owner)
	require.NoError(t, err)
	round := l.Round()

	clock.Advance(59 * time.Second)
	_, err = l.Draw()
	require.ErrorIs(t, err, ErrRoundInProgress)

	assert.Equal(t, round, l.Round())
	assert.Equal(t, 1, l.Jackpot())
	assert.Equal(t, 1, l.TapCount())
}

func TestDraw_RanksAllTapsAndPaysWinner(t *testing.T) {
	l, clock := newTestLedger(t)
	l.Buy(alice, 2)
	l.Buy(bob, 2)

	for _, u := range []User{alice, bob, owner, alice, bob} {
		clock.Advance(7 * time.Second)
		_, err := l.RecordTap(u)
		require.NoError(t, err)
	}
	round := l.Round()
	balances := map[UserID]int{}
	for _, u := range []User{alice, bob, owner} {
		balances[u.ID] = l.Balance(u)
	}

	clock.Advance(time.Minute)
	res, err := l.Draw()
	require.NoError(t, err)

	require.Len(t, res.Results, 5)
	ranks := map[int]bool{}
	for i, r := range res.Results {
		ranks[r.Rank] = true
		assert.Equal(t, i+1, r.Rank)
		if i > 0 {
			assert.LessOrEqual(t, res.Results[i-1].Diff, r.Diff)
		}
		assert.Equal(t, abs(r.Timestamp-res.WinningTime), r.Diff)
	}
	assert.Len(t, ranks, 5)

	assert.GreaterOrEqual(t, res.WinningTime, round.StartTime)
	assert.Less(t, res.WinningTime, round.EndTime)
	assert.Equal(t, round, res.Round)
	assert.Equal(t, 5, res.Jackpot)
	assert.Equal(t, res.Results[0], res.WinningTap)

	winner := res.WinningTap.User
	assert.Equal(t, balances[winner.ID]+5, res.WinnerBalance)
	assert.Equal(t, res.WinnerBalance, l.Balance(winner))

	// rolled over
	assert.Equal(t, 0, l.Jackpot())
	assert.Equal(t, 0, l.TapCount())
	assert.Equal(t, clock.Now().UnixMilli(), l.Round().StartTime)
	assert.Equal(t, clock.Now().Add(time.Minute).UnixMilli(), l.Round().EndTime)
}

func TestDraw_OwnerWinnerIsCredited(t *testing.T) {
	l, clock := newTestLedger(t)
	for i := 0; i < 3; i++ {
		_, err := l.RecordTap(owner)
		require.NoError(t, err)
	}

	clock.Advance(time.Minute)
	res, err := l.Draw()
	require.NoError(t, err)

	assert.Equal(t, owner, res.WinningTap.User)
	assert.Equal(t, DefaultConfig().OwnerBalance+3, res.WinnerBalance)
}

func TestDraw_EmptyRound(t *testing.T) {
	cases := []struct {
		name     string
		rollover bool
	}{
		{name: "rolls over", rollover: true},
		{name: "stays closed", rollover: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, clock := newTestLedger(t, func(c *Config) { c.RolloverOnEmpty = tc.rollover })
			first := l.Round()

			clock.Advance(2 * time.Minute)
			res, err := l.Draw()
			require.True(t, errors.Is(err, ErrEmptyRound))
			assert.Equal(t, first, res.Round)

			if tc.rollover {
				assert.Equal(t, clock.Now().UnixMilli(), l.Round().StartTime)
				_, err = l.RecordTap(owner)
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, first, l.Round())
			_, err = l.RecordTap(owner)
			assert.ErrorIs(t, err, ErrRoundClosed)
		})
	}
}

func TestBuy(t *testing.T) {
	cases := []struct {
		name   string
		user   User
		amount int
		want   int
	}{
		{name: "explicit amount", user: alice, amount: 20, want: 20},
		{name: "zero buys default pack", user: alice, amount: 0, want: 50},
		{name: "negative buys default pack", user: alice, amount: -4, want: 50},
		{name: "owner unaffected", user: owner, amount: 20, want: DefaultConfig().OwnerBalance},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, _ := newTestLedger(t)
			assert.Equal(t, tc.want, l.Buy(tc.user, tc.amount))
			assert.Equal(t, tc.want, l.Balance(tc.user))
		})
	}
}

func TestBuy_Accumulates(t *testing.T) {
	l, _ := newTestLedger(t)
	l.Buy(alice, 20)
	assert.Equal(t, 70, l.Buy(alice, 0))
}

func TestReset_KeepsBalances(t *testing.T) {
	l, clock := newTestLedger(t)
	l.Buy(alice, 5)
	_, err := l.RecordTap(alice)
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	round := l.Reset()

	assert.Equal(t, clock.Now().UnixMilli(), round.StartTime)
	assert.Equal(t, round, l.Round())
	assert.Equal(t, 0, l.Jackpot())
	assert.Empty(t, l.Taps())
	assert.Equal(t, 4, l.Balance(alice))
}

func TestBalance_CustomDefaults(t *testing.T) {
	l, _ := newTestLedger(t, func(c *Config) {
		c.DefaultBalance = 10
		c.OwnerBalance = 7
		c.OwnerID = "42"
	})

	assert.Equal(t, 10, l.Balance(alice))
	assert.Equal(t, 7, l.Balance(User{ID: "42"}))
	assert.False(t, l.IsOwner(owner))
}
