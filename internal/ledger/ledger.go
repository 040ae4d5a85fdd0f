package ledger

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
)

var ErrRoundClosed = errors.New("round closed")
var ErrInsufficientBalance = errors.New("insufficient balance")
var ErrRoundInProgress = errors.New("round still in progress")
var ErrEmptyRound = errors.New("no taps recorded this round")

type Config struct {
	RoundDuration   time.Duration
	DefaultPurchase int
	DefaultBalance  int
	OwnerBalance    int
	OwnerID         UserID
	// RolloverOnEmpty starts a fresh round when a draw finds no taps.
	RolloverOnEmpty bool
}

func DefaultConfig() Config {
	return Config{
		RoundDuration:   60 * time.Second,
		DefaultPurchase: 50,
		DefaultBalance:  0,
		OwnerBalance:    1_000_000_000,
		OwnerID:         "252205625",
		RolloverOnEmpty: true,
	}
}

type TapReceipt struct {
	Timestamp int64
	Balance   int
	Jackpot   int
}

// Ledger owns the tap list, the current round, the jackpot and the balance
// book. It is not safe for concurrent use; lobby.Lobby serializes access.
type Ledger struct {
	cfg     Config
	clock   clockwork.Clock
	rng     *rand.Rand
	round   Round
	jackpot int
	taps    []Tap
	book    *Book
}

// New starts the first round at clock.Now(). A nil rng gets a randomly
// seeded PCG source.
func New(cfg Config, clock clockwork.Clock, rng *rand.Rand) *Ledger {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Ledger{
		cfg:   cfg,
		clock: clock,
		rng:   rng,
		round: NewRound(clock.Now(), cfg.RoundDuration),
		book:  NewBook(cfg.OwnerID, cfg.DefaultBalance, cfg.OwnerBalance),
	}
}

func (l *Ledger) now() int64 { return l.clock.Now().UnixMilli() }

// RecordTap charges u one tap and adds it to the jackpot.
func (l *Ledger) RecordTap(u User) (TapReceipt, error) {
	now := l.now()
	if !l.round.Accepts(now) {
		return TapReceipt{}, ErrRoundClosed
	}

	bal := l.book.GetOrInit(u.ID)
	if !l.book.IsOwner(u.ID) {
		if bal <= 0 {
			return TapReceipt{}, ErrInsufficientBalance
		}
		bal = l.book.Add(u.ID, -1)
	}

	l.jackpot++
	l.taps = append(l.taps, Tap{User: u, Timestamp: now})
	return TapReceipt{Timestamp: now, Balance: bal, Jackpot: l.jackpot}, nil
}

// Draw picks the winner of an elapsed round, pays out the jackpot and starts
// the next round. An empty round returns ErrEmptyRound along with the round
// it looked at; whether that also rolls over is Config.RolloverOnEmpty.
func (l *Ledger) Draw() (DrawResult, error) {
	now := l.now()
	if !l.round.Drawable(now) {
		return DrawResult{}, ErrRoundInProgress
	}

	round := l.round
	var qualifying []Tap
	for _, t := range l.taps {
		if t.Timestamp >= round.StartTime {
			qualifying = append(qualifying, t)
		}
	}
	if len(qualifying) == 0 {
		if l.cfg.RolloverOnEmpty {
			l.rollover(now)
		}
		return DrawResult{Round: round}, ErrEmptyRound
	}

	winningTime := round.StartTime
	if d := round.DurationMs(); d > 0 {
		winningTime += l.rng.Int64N(d)
	}

	results := Rank(qualifying, winningTime)
	winner := results[0]
	paid := l.jackpot
	res := DrawResult{
		WinningTime:   winningTime,
		WinningTap:    winner,
		Results:       results,
		Round:         round,
		Jackpot:       paid,
		WinnerBalance: l.book.Add(winner.User.ID, paid),
	}

	l.rollover(now)
	return res, nil
}

// Buy credits amount taps to u; amount <= 0 buys the default pack. The owner
// is unaffected.
func (l *Ledger) Buy(u User, amount int) int {
	if l.book.IsOwner(u.ID) {
		return l.book.GetOrInit(u.ID)
	}
	if amount <= 0 {
		amount = l.cfg.DefaultPurchase
	}
	return l.book.Add(u.ID, amount)
}

func (l *Ledger) Balance(u User) int {
	return l.book.GetOrInit(u.ID)
}

// Reset discards the current round without a draw. Balances are kept.
func (l *Ledger) Reset() Round {
	l.rollover(l.now())
	return l.round
}

func (l *Ledger) rollover(now int64) {
	l.taps = nil
	l.jackpot = 0
	l.round = Round{StartTime: now, EndTime: now + l.cfg.RoundDuration.Milliseconds()}
}

func (l *Ledger) Round() Round   { return l.round }
func (l *Ledger) Jackpot() int   { return l.jackpot }
func (l *Ledger) TapCount() int  { return len(l.taps) }
func (l *Ledger) Now() int64     { return l.now() }
func (l *Ledger) Config() Config { return l.cfg }

func (l *Ledger) IsOwner(u User) bool { return l.book.IsOwner(u.ID) }

// Taps returns a copy of the current round's taps in submission order.
func (l *Ledger) Taps() []Tap {
	out := make([]Tap, len(l.taps))
	copy(out, l.taps)
	return out
}
