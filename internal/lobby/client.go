package lobby

import (
	"context"

	"github.com/DoyleJ11/tap-to-win/internal/ledger"
)

// call sends a request built around a fresh reply channel and waits for the
// answer. The reply channel is buffered so the loop never blocks on a caller
// that gave up.
func call[T any](ctx context.Context, l *Lobby, build func(chan Result[T]) Msg) (T, error) {
	var zero T
	reply := make(chan Result[T], 1)

	select {
	case l.inbox <- build(reply):
	case <-l.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.Value, r.Err
	case <-l.done:
		select {
		case r := <-reply:
			return r.Value, r.Err
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (l *Lobby) Tap(ctx context.Context, u ledger.User) (ledger.TapReceipt, error) {
	return call(ctx, l, func(r chan Result[ledger.TapReceipt]) Msg { return Tap{User: u, Reply: r} })
}

func (l *Lobby) Draw(ctx context.Context) (ledger.DrawResult, error) {
	return call(ctx, l, func(r chan Result[ledger.DrawResult]) Msg { return Draw{Reply: r} })
}

func (l *Lobby) Buy(ctx context.Context, u ledger.User, amount int) (int, error) {
	return call(ctx, l, func(r chan Result[int]) Msg { return Buy{User: u, Amount: amount, Reply: r} })
}

func (l *Lobby) Balance(ctx context.Context, u ledger.User) (int, error) {
	return call(ctx, l, func(r chan Result[int]) Msg { return Balance{User: u, Reply: r} })
}

func (l *Lobby) Reset(ctx context.Context) (ledger.Round, error) {
	return call(ctx, l, func(r chan Result[ledger.Round]) Msg { return Reset{Reply: r} })
}

// State reads the current round without mutating anything.
func (l *Lobby) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case l.inbox <- GetState{Reply: reply}:
	case <-l.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}

	select {
	case v := <-reply:
		return v, nil
	case <-l.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Subscribe registers outbox for snapshots. The lobby closes outbox when the
// client is dropped, leaves, or the lobby shuts down. outbox must be buffered.
func (l *Lobby) Subscribe(ctx context.Context, clientID string, outbox chan Snapshot) error {
	select {
	case l.inbox <- Join{ClientID: clientID, Outbox: outbox}:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unsubscribe never blocks past the lobby's lifetime.
func (l *Lobby) Unsubscribe(clientID string) {
	select {
	case l.inbox <- Leave{ClientID: clientID}:
	case <-l.done:
	}
}
