package endpoints

import (
	"context"
	"net/http"
	"time"

	"github.com/hasad-erp/hasad/pkg/identity"
	"github.com/hasad-erp/hasad/pkg/ledger"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server"
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

type paidRequest struct {
	Reference string `json:"reference"`
}

// RegisterLedgerEndpoints registers payment order and debt routes
func RegisterLedgerEndpoints(s *server.Server) {
	svc := s.Ledger

	api := s.Router.PathPrefix("/api").Subrouter()
	api.Use(s.Bearer.Middleware)

	api.HandleFunc("/payment-orders", handleListPaymentOrders(svc)).Methods("GET")
	api.HandleFunc("/payment-orders", handleCreatePaymentOrder(svc)).Methods("POST")
	api.HandleFunc("/payment-orders/{id}", handleGetPaymentOrder(svc)).Methods("GET")
	api.HandleFunc("/payment-orders/{id}", handleUpdatePaymentOrder(svc)).Methods("PUT")
	api.HandleFunc("/payment-orders/{id}/submit", handleOrderTransition(svc.SubmitPaymentOrder)).Methods("POST")
	api.HandleFunc("/payment-orders/{id}/approve", handleOrderTransition(svc.ApprovePaymentOrder)).Methods("POST")
	api.HandleFunc("/payment-orders/{id}/cancel", handleOrderTransition(svc.CancelPaymentOrder)).Methods("POST")
	api.HandleFunc("/payment-orders/{id}/reject", handleRejectPaymentOrder(svc)).Methods("POST")
	api.HandleFunc("/payment-orders/{id}/pay", handlePayPaymentOrder(svc)).Methods("POST")

	// Fixed paths go before /debts/{id}
	api.HandleFunc("/debts/overdue", handleOverdueDebts(svc)).Methods("GET")
	api.HandleFunc("/debts/summary", handleDebtSummary(svc)).Methods("GET")
	api.HandleFunc("/debts", handleListDebts(svc)).Methods("GET")
	api.HandleFunc("/debts", handleCreateDebt(svc)).Methods("POST")
	api.HandleFunc("/debts/{id}", handleGetDebt(svc)).Methods("GET")
	api.HandleFunc("/debts/{id}/payments", handleRecordDebtPayment(svc)).Methods("POST")
	api.HandleFunc("/debts/{id}/write-off", handleWriteOffDebt(svc)).Methods("POST")
}

func handleListPaymentOrders(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		orders, err := svc.ListPaymentOrders(r.Context(), caller(r), ledger.OrderFilter{
			Status:    model.PaymentOrderStatus(q.Get("status")),
			CreatedBy: q.Get("created_by"),
			Limit:     queryInt(r, "limit", 0),
			Offset:    queryInt(r, "offset", 0),
		})
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, orders)
	}
}

func handleCreatePaymentOrder(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in ledger.OrderInput
		if !decodeJSON(w, r, &in) {
			return
		}
		order, err := svc.CreatePaymentOrder(r.Context(), caller(r), in)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, order)
	}
}

func handleGetPaymentOrder(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.GetPaymentOrder(r.Context(), caller(r), pathVar(r, "id"))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, order)
	}
}

func handleUpdatePaymentOrder(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in ledger.OrderInput
		if !decodeJSON(w, r, &in) {
			return
		}
		order, err := svc.UpdatePaymentOrder(r.Context(), caller(r), pathVar(r, "id"), in)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, order)
	}
}

// orderTransition is a payment order state change that needs no input
type orderTransition func(ctx context.Context, id *identity.Identity, orderID string) (*model.PaymentOrder, error)

func handleOrderTransition(fn orderTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := fn(r.Context(), caller(r), pathVar(r, "id"))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, order)
	}
}

func handleRejectPaymentOrder(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reasonRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		order, err := svc.RejectPaymentOrder(r.Context(), caller(r), pathVar(r, "id"), req.Reason)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, order)
	}
}

func handlePayPaymentOrder(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paidRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		order, err := svc.MarkPaymentOrderPaid(r.Context(), caller(r), pathVar(r, "id"), req.Reference)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, order)
	}
}

func handleListDebts(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		debts, err := svc.ListDebts(r.Context(), caller(r), ledger.DebtFilter{
			Direction: model.DebtDirection(q.Get("direction")),
			Status:    model.DebtStatus(q.Get("status")),
			Party:     q.Get("party"),
			OpenOnly:  queryBool(r, "open"),
			Limit:     queryInt(r, "limit", 0),
			Offset:    queryInt(r, "offset", 0),
		})
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, debts)
	}
}

func handleCreateDebt(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in ledger.DebtInput
		if !decodeJSON(w, r, &in) {
			return
		}
		debt, err := svc.CreateDebt(r.Context(), caller(r), in)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, debt)
	}
}

func handleGetDebt(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		debt, payments, err := svc.GetDebt(r.Context(), caller(r), pathVar(r, "id"))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"debt":     debt,
			"payments": payments,
		})
	}
}

func handleRecordDebtPayment(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in ledger.PaymentInput
		if !decodeJSON(w, r, &in) {
			return
		}
		debt, payment, err := svc.RecordDebtPayment(r.Context(), caller(r), pathVar(r, "id"), in)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, map[string]interface{}{
			"debt":    debt,
			"payment": payment,
		})
	}
}

func handleWriteOffDebt(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reasonRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		debt, err := svc.WriteOffDebt(r.Context(), caller(r), pathVar(r, "id"), req.Reason)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, debt)
	}
}

func handleOverdueDebts(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		debts, err := svc.OverdueDebts(r.Context(), caller(r), time.Now())
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, debts)
	}
}

func handleDebtSummary(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		balances, err := svc.DebtSummary(r.Context(), caller(r))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, balances)
	}
}
