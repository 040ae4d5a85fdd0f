package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tap-to-win/internal/ledger"
	"github.com/DoyleJ11/tap-to-win/internal/lobby"
	"github.com/DoyleJ11/tap-to-win/internal/types"
)

const maxBodyBytes = 1 << 20

// decodeBody is permissive: an empty or malformed body leaves v untouched so
// the caller falls back to the anonymous user.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || len(body) == 0 {
		return
	}
	_ = json.Unmarshal(body, v)
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status, msg := types.ErrorFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, log, status, types.ErrorResponse{Status: types.StatusError, Message: msg})
}

func Tap(lb *lobby.Lobby, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.UserRequest
		decodeBody(w, r, &req)

		receipt, err := lb.Tap(r.Context(), ledger.OrAnonymous(req.User))
		if err != nil {
			writeError(w, log, err)
			return
		}

		writeJSON(w, log, http.StatusOK, types.TapResponse{
			Status:    types.StatusOK,
			Message:   types.MsgTapRecorded,
			Timestamp: receipt.Timestamp,
			Balance:   receipt.Balance,
			Jackpot:   receipt.Jackpot,
		})
	}
}

// Draw answers an empty round with emptyStatus, which is 200 unless the
// deployment asked for 400.
func Draw(lb *lobby.Lobby, log *zap.Logger, emptyStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := lb.Draw(r.Context())
		if errors.Is(err, ledger.ErrEmptyRound) {
			writeJSON(w, log, emptyStatus, types.ErrorResponse{Status: types.StatusError, Message: types.MsgNoTaps})
			return
		}
		if err != nil {
			writeError(w, log, err)
			return
		}

		writeJSON(w, log, http.StatusOK, types.NewDrawResponse(res))
	}
}

func Buy(lb *lobby.Lobby, ownerID ledger.UserID, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.BuyRequest
		decodeBody(w, r, &req)
		user := ledger.OrAnonymous(req.User)

		bal, err := lb.Buy(r.Context(), user, types.ParseAmount(req.Amount))
		if err != nil {
			writeError(w, log, err)
			return
		}

		msg := types.MsgTapsPurchased
		if user.ID == ownerID {
			msg = types.MsgOwnerPurchase
		}
		writeJSON(w, log, http.StatusOK, types.BuyResponse{Status: types.StatusOK, Message: msg, Balance: bal})
	}
}

func Balance(lb *lobby.Lobby, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.UserRequest
		decodeBody(w, r, &req)

		bal, err := lb.Balance(r.Context(), ledger.OrAnonymous(req.User))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, log, http.StatusOK, types.BalanceResponse{Status: types.StatusOK, Balance: bal})
	}
}

// Reset is unauthenticated; gate it at the proxy in real deployments.
func Reset(lb *lobby.Lobby, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		round, err := lb.Reset(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, log, http.StatusOK, types.ResetResponse{
			Status:         types.StatusOK,
			Message:        types.MsgRoundReset,
			RoundStartTime: round.StartTime,
			RoundEndTime:   round.EndTime,
			Jackpot:        0,
		})
	}
}

func Round(lb *lobby.Lobby, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := lb.State(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, log, http.StatusOK, types.RoundResponse{
			Status:         types.StatusOK,
			RoundStartTime: v.Round.StartTime,
			RoundEndTime:   v.Round.EndTime,
			Now:            v.Now,
			RemainingMs:    v.Round.Remaining(v.Now),
			Open:           v.Round.Accepts(v.Now),
			Jackpot:        v.Jackpot,
			Taps:           v.Taps,
		})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
