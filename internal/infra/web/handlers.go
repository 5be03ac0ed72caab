package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"telegram-channel-subscription/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if s.adminPass == "" || subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.adminPass)) != 1 {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "Failed to mint session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleRecoveryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Recovery(r.Context())
	if err != nil {
		http.Error(w, "Failed to get recovery stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleFailedDeliveries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.stats.FailedDeliveries(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to list failed deliveries", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data  interface{} `json:"data"`
		Total int         `json:"total"`
	}{Data: list, Total: len(list)})
}

func (s *Server) handleDeliveryAttempts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	attempts, err := s.stats.DeliveryAttempts(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Payment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to list delivery attempts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data  interface{} `json:"data"`
		Total int         `json:"total"`
	}{Data: attempts, Total: len(attempts)})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	rep, err := s.worker.RunOnce(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrSweepInProgress) {
			http.Error(w, "A sweep is already in progress", http.StatusConflict)
			return
		}
		http.Error(w, "Sweep failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleRecoverPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.recovery.RecoverPayment(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "Payment not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrPaymentNotEligible):
			http.Error(w, "Payment is not eligible for delivery", http.StatusConflict)
		case p == nil:
			// Lookup-level fault before any delivery state was recorded.
			http.Error(w, "Recovery failed", http.StatusInternalServerError)
		default:
			// Delivery failed; the state recorded on the payment says why.
			writeJSON(w, http.StatusOK, struct {
				Delivered bool   `json:"delivered"`
				Status    string `json:"delivery_status"`
				Reason    string `json:"failure_reason"`
			}{Delivered: false, Status: string(p.Delivery.Status), Reason: p.Delivery.FailureReason})
		}
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Delivered bool `json:"delivered"`
		Attempts  int  `json:"delivery_attempts"`
	}{Delivered: p.Delivery.LinkDelivered, Attempts: p.Delivery.Attempts})
}

func (s *Server) handleRecoverBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentIDs []string `json:"payment_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.PaymentIDs) == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	rep, err := s.recovery.RecoverBatch(r.Context(), req.PaymentIDs)
	if err != nil {
		http.Error(w, "Batch recovery failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.payments.Confirm(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "Payment not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, "Payment is not pending", http.StatusConflict)
		default:
			http.Error(w, "Confirmation failed", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, struct {
		PaymentID     string `json:"payment_id"`
		InvoiceNumber int64  `json:"invoice_number"`
		Delivered     bool   `json:"link_delivered"`
		Status        string `json:"delivery_status"`
	}{
		PaymentID:     p.ID,
		InvoiceNumber: p.InvoiceNumber,
		Delivered:     p.Delivery.LinkDelivered,
		Status:        string(p.Delivery.Status),
	})
}
