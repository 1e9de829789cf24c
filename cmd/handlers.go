package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"casino/gateway"
	"casino/service"

	"github.com/google/uuid"
)

type errResp struct {
	Err string `json:"err"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errResp{Err: err.Error()})
}

// statusFor maps service errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInsufficientFunds):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrGatewayFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// callbackHandler accepts asynchronous payment confirmations from the
// gateway. The gateway retries on non-200 responses, so parse failures
// return 400 while processing failures return 500.
func callbackHandler(payments service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := gateway.ParseCallback(r.Body)
		if err != nil {
			log.Printf("Rejected malformed callback: %v", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if err := payments.HandleCallback(r.Context(), result); err != nil {
			log.Printf("Callback processing failed for %s: %v", result.CheckoutRequestID, err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"ResultCode": 0,
			"ResultDesc": "Accepted",
		})
	}
}

// paymentRequest is the body shared by deposit and withdrawal initiation.
// Amount is in cents.
type paymentRequest struct {
	UserID      uuid.UUID `json:"user_id"`
	PhoneNumber string    `json:"phone_number"`
	Amount      int64     `json:"amount"`
}

// depositHandler starts an STK push deposit. The transaction stays
// pending until the gateway callback confirms it.
func depositHandler(payments service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body paymentRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if body.UserID == uuid.Nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("user_id is required"))
			return
		}

		tx, err := payments.Deposit(r.Context(), body.UserID, body.PhoneNumber, body.Amount)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusAccepted, tx)
	}
}

// withdrawHandler debits the balance and queues a withdrawal for
// operator approval.
func withdrawHandler(payments service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body paymentRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if body.UserID == uuid.Nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("user_id is required"))
			return
		}

		tx, err := payments.Withdraw(r.Context(), body.UserID, body.PhoneNumber, body.Amount)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusAccepted, tx)
	}
}

// profileHandler bootstraps a profile from an authenticated identity
func profileHandler(profiles service.ProfileService) http.HandlerFunc {
	type req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body req
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if body.Email == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("email is required"))
			return
		}

		profile, err := profiles.GetOrCreateProfile(r.Context(), body.Email, body.Username)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

// withdrawalDecisionHandler approves or rejects a pending withdrawal
func withdrawalDecisionHandler(admin service.AdminService, approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid transaction id: %w", err))
			return
		}

		if approve {
			err = admin.ApproveWithdrawal(r.Context(), id)
		} else {
			err = admin.RejectWithdrawal(r.Context(), id)
		}
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// setBalanceHandler force-sets a user's real balance
func setBalanceHandler(admin service.AdminService) http.HandlerFunc {
	type req struct {
		Amount int64 `json:"amount"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid user id: %w", err))
			return
		}
		var body req
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if err := admin.SetBalance(r.Context(), id, body.Amount); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// setSuspendedHandler suspends or reinstates a user
func setSuspendedHandler(admin service.AdminService) http.HandlerFunc {
	type req struct {
		Suspended bool `json:"suspended"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid user id: %w", err))
			return
		}
		var body req
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if err := admin.SetSuspended(r.Context(), id, body.Suspended); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
