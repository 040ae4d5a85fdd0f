package types

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/DoyleJ11/tap-to-win/internal/ledger"
	"github.com/DoyleJ11/tap-to-win/internal/lobby"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// UserRequest is the body of /tap and /balance.
type UserRequest struct {
	User *ledger.User `json:"user"`
}

// BuyRequest keeps amount raw: numbers and numeric strings are accepted,
// anything else falls back to the default pack.
type BuyRequest struct {
	User   *ledger.User    `json:"user"`
	Amount json.RawMessage `json:"amount"`
}

// ParseAmount returns the requested amount truncated toward zero, or 0 when
// it is missing or not numeric.
func ParseAmount(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		s = strings.TrimSpace(s)
	} else {
		s = string(raw)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	if f < 0 {
		return 0
	}
	return int(f)
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type TapResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	Balance   int    `json:"balance"`
	Jackpot   int    `json:"jackpot"`
}

type DrawResponse struct {
	Status         string             `json:"status"`
	WinningTime    int64              `json:"winningTime"`
	WinningTap     ledger.RankedTap   `json:"winningTap"`
	Results        []ledger.RankedTap `json:"results"`
	RoundStartTime int64              `json:"roundStartTime"`
	RoundEndTime   int64              `json:"roundEndTime"`
	Jackpot        int                `json:"jackpot"`
	WinnerBalance  int                `json:"winnerBalance"`
}

func NewDrawResponse(res ledger.DrawResult) DrawResponse {
	return DrawResponse{
		Status:         StatusOK,
		WinningTime:    res.WinningTime,
		WinningTap:     res.WinningTap,
		Results:        res.Results,
		RoundStartTime: res.Round.StartTime,
		RoundEndTime:   res.Round.EndTime,
		Jackpot:        res.Jackpot,
		WinnerBalance:  res.WinnerBalance,
	}
}

type BuyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Balance int    `json:"balance"`
}

type BalanceResponse struct {
	Status  string `json:"status"`
	Balance int    `json:"balance"`
}

type ResetResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	RoundStartTime int64  `json:"roundStartTime"`
	RoundEndTime   int64  `json:"roundEndTime"`
	Jackpot        int    `json:"jackpot"`
}

type RoundResponse struct {
	Status         string `json:"status"`
	RoundStartTime int64  `json:"roundStartTime"`
	RoundEndTime   int64  `json:"roundEndTime"`
	Now            int64  `json:"now"`
	RemainingMs    int64  `json:"remainingMs"`
	Open           bool   `json:"open"`
	Jackpot        int    `json:"jackpot"`
	Taps           int    `json:"taps"`
}

// Websocket messages.

type ClientMessage struct {
	Type string       `json:"type"` // "tap"
	User *ledger.User `json:"user,omitempty"`
}

type ServerMessage struct {
	Type    string            `json:"type"` // "snapshot" | "tap" | "error"
	Version int               `json:"version,omitempty"`
	Event   string            `json:"event,omitempty"`
	Round   *ledger.Round     `json:"round,omitempty"`
	Jackpot *int              `json:"jackpot,omitempty"`
	Taps    *int              `json:"taps,omitempty"`
	Winner  *ledger.RankedTap `json:"winner,omitempty"`
	Tap     *TapResponse      `json:"tap,omitempty"`
	Message string            `json:"message,omitempty"`
}

const (
	MsgTapRecorded        = "Tap recorded"
	MsgRoundClosed        = "Round over. Please wait for the next round."
	MsgInsufficient       = "Insufficient taps. Please buy taps to play."
	MsgRoundInProgress    = "Round still in progress."
	MsgNoTaps             = "No taps recorded this round."
	MsgRoundReset         = "Round reset."
	MsgTapsPurchased      = "Taps purchased."
	MsgOwnerPurchase      = "Owner taps are free; balance unchanged."
	MsgServiceUnavailable = "Service unavailable."
	MsgInternal           = "Internal error."
)

// ErrorFor maps a lobby or ledger error to the status and message clients
// see. ErrEmptyRound maps to 200; /draw overrides that when configured to.
func ErrorFor(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrRoundClosed):
		return http.StatusBadRequest, MsgRoundClosed
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusBadRequest, MsgInsufficient
	case errors.Is(err, ledger.ErrRoundInProgress):
		return http.StatusBadRequest, MsgRoundInProgress
	case errors.Is(err, ledger.ErrEmptyRound):
		return http.StatusOK, MsgNoTaps
	case errors.Is(err, lobby.ErrClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, MsgServiceUnavailable
	default:
		return http.StatusInternalServerError, MsgInternal
	}
}
