package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	authapi "ecom/cmd/internal/auth/api"
	"ecom/cmd/internal/checkout"
)

type checkoutRequest struct {
	PaymentMethod string          `json:"paymentMethod"`
	Items         []checkout.Item `json:"items"`
}

// handleCheckout places an order for the authenticated principal. The
// session subsystem treats this as an ordinary protected route; all order
// semantics live in the checkout service.
func handleCheckout(svc *checkout.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := authapi.PrincipalFrom(r.Context())
		if !ok {
			httpJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if svc == nil {
			httpJSONError(w, http.StatusServiceUnavailable, "checkout unavailable")
			return
		}

		var req checkoutRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			httpJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		res, err := svc.Checkout(r.Context(), time.Now().UTC(), p.ID, req.PaymentMethod, req.Items)
		if err != nil {
			switch {
			case errors.Is(err, checkout.ErrInvalidInput):
				httpJSONError(w, http.StatusBadRequest, "invalid checkout request")
			case errors.Is(err, checkout.ErrInsufficientStock):
				httpJSONError(w, http.StatusConflict, "insufficient stock")
			default:
				log.Error("checkout.fail", "err", err, "user_id", p.ID)
				httpJSONError(w, http.StatusInternalServerError, "internal error")
			}
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(res)
	}
}

func httpJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
