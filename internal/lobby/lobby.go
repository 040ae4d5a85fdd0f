package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tap-to-win/internal/ledger"
)

// ErrClosed is returned by calls made after the lobby loop has exited.
var ErrClosed = errors.New("lobby closed")

type Msg interface{ isLobbyMsg() }

type Result[T any] struct {
	Value T
	Err   error
}

type Tap struct {
	User  ledger.User
	Reply chan Result[ledger.TapReceipt]
}

func (Tap) isLobbyMsg() {}

type Draw struct {
	Reply chan Result[ledger.DrawResult]
}

func (Draw) isLobbyMsg() {}

type Buy struct {
	User   ledger.User
	Amount int
	Reply  chan Result[int]
}

func (Buy) isLobbyMsg() {}

type Balance struct {
	User  ledger.User
	Reply chan Result[int]
}

func (Balance) isLobbyMsg() {}

type Reset struct {
	Reply chan Result[ledger.Round]
}

func (Reset) isLobbyMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type Event string

const (
	EvtJoined   Event = "joined"
	EvtTap      Event = "tap"
	EvtDraw     Event = "draw"
	EvtEmpty    Event = "empty"
	EvtReset    Event = "reset"
	EvtPurchase Event = "purchase"
)

// Snapshot is what subscribers see after every change.
type Snapshot struct {
	Version int
	Event   Event
	Round   ledger.Round
	Jackpot int
	Taps    int
	Winner  *ledger.RankedTap // set on EvtDraw
}

type View struct {
	Version    int
	NumClients int
	Round      ledger.Round
	Now        int64
	Jackpot    int
	Taps       int
	AutoDraw   bool
}

type Options struct {
	// AutoDraw makes the lobby call Draw itself once a round elapses.
	AutoDraw bool
	Logger   *zap.Logger
}

type Lobby struct {
	inbox    chan Msg
	ledger   *ledger.Ledger
	clock    clockwork.Clock
	log      *zap.Logger
	autoDraw bool
	timer    clockwork.Timer
	version  int
	clients  map[string]chan Snapshot
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewLobby(parent context.Context, l *ledger.Ledger, clock clockwork.Clock, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	lb := &Lobby{
		inbox:    make(chan Msg, 64), // Small buffer
		ledger:   l,
		clock:    clock,
		log:      log.Named("lobby"),
		autoDraw: opts.AutoDraw,
		clients:  make(map[string]chan Snapshot),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go lb.loop()
	return lb
}

func (l *Lobby) loop() {
	defer close(l.done)
	l.armTimer()

	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case <-l.timerC():
			l.timer = nil
			l.draw(nil)

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				select {
				case msg.Outbox <- l.snapshot(EvtJoined, nil):
					l.clients[msg.ClientID] = msg.Outbox
				default:
					close(msg.Outbox)
				}

			case Leave:
				if ch, ok := l.clients[msg.ClientID]; ok {
					close(ch)
					delete(l.clients, msg.ClientID)
				}

			case Tap:
				receipt, err := l.ledger.RecordTap(msg.User)
				if err != nil {
					l.log.Debug("tap rejected", zap.String("user_id", string(msg.User.ID)), zap.Error(err))
				} else {
					l.commit(EvtTap, nil)
				}
				msg.Reply <- Result[ledger.TapReceipt]{Value: receipt, Err: err}

			case Draw:
				l.draw(msg.Reply)

			case Buy:
				bal := l.ledger.Buy(msg.User, msg.Amount)
				l.log.Info("taps purchased",
					zap.String("user_id", string(msg.User.ID)),
					zap.Int("amount", msg.Amount),
					zap.Int("balance", bal),
				)
				l.commit(EvtPurchase, nil)
				msg.Reply <- Result[int]{Value: bal}

			case Balance:
				msg.Reply <- Result[int]{Value: l.ledger.Balance(msg.User)}

			case Reset:
				round := l.ledger.Reset()
				l.log.Info("round reset", zap.Int64("round_start", round.StartTime))
				l.commit(EvtReset, nil)
				l.armTimer()
				msg.Reply <- Result[ledger.Round]{Value: round}

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					Round:      l.ledger.Round(),
					Now:        l.ledger.Now(),
					Jackpot:    l.ledger.Jackpot(),
					Taps:       l.ledger.TapCount(),
					AutoDraw:   l.autoDraw,
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

// draw runs a draw and re-arms the auto-draw timer. reply is nil when the
// timer triggered it.
func (l *Lobby) draw(reply chan Result[ledger.DrawResult]) {
	before := l.ledger.Round()
	res, err := l.ledger.Draw()

	switch {
	case err == nil:
		l.log.Info("round drawn",
			zap.String("winner_id", string(res.WinningTap.User.ID)),
			zap.Int("jackpot", res.Jackpot),
			zap.Int("taps", len(res.Results)),
			zap.Int64("winning_time", res.WinningTime),
		)
		l.commit(EvtDraw, &res.WinningTap)
	case errors.Is(err, ledger.ErrEmptyRound):
		l.log.Info("round drawn with no taps", zap.Int64("round_start", before.StartTime))
		if l.ledger.Round() != before {
			l.commit(EvtEmpty, nil)
		}
	default:
		l.log.Debug("draw rejected", zap.Error(err))
	}

	// An empty round that did not roll over stays closed; nothing to wait for.
	if !errors.Is(err, ledger.ErrEmptyRound) || l.ledger.Round() != before {
		l.armTimer()
	}
	if reply != nil {
		reply <- Result[ledger.DrawResult]{Value: res, Err: err}
	}
}

func (l *Lobby) commit(evt Event, winner *ledger.RankedTap) {
	l.version++
	l.broadcast(l.snapshot(evt, winner))
}

func (l *Lobby) snapshot(evt Event, winner *ledger.RankedTap) Snapshot {
	return Snapshot{
		Version: l.version,
		Event:   evt,
		Round:   l.ledger.Round(),
		Jackpot: l.ledger.Jackpot(),
		Taps:    l.ledger.TapCount(),
		Winner:  winner,
	}
}

// armTimer replaces any pending auto-draw timer with one for the current
// round's end.
func (l *Lobby) armTimer() {
	if !l.autoDraw {
		return
	}
	l.stopTimer()
	wait := time.Duration(l.ledger.Round().Remaining(l.ledger.Now())) * time.Millisecond
	l.timer = l.clock.NewTimer(wait)
}

func (l *Lobby) stopTimer() {
	if l.timer == nil {
		return
	}
	if !l.timer.Stop() {
		select {
		case <-l.timer.Chan():
		default:
		}
	}
	l.timer = nil
}

// timerC is nil while disarmed, which blocks its select case.
func (l *Lobby) timerC() <-chan time.Time {
	if l.timer == nil {
		return nil
	}
	return l.timer.Chan()
}

func (l *Lobby) shutdown() {
	l.stopTimer()
	for id, ch := range l.clients {
		close(ch) // Tell client no more snapshots
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(snap Snapshot) {
	for id, ch := range l.clients {
		select {
		case ch <- snap:
			//ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(l.clients, id)
		}
	}
}

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the loop has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }
