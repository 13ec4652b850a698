package http

import (
	"net/http"
	"strings"
	"time"

	"contas/internal/core"
)

type reserveRequest struct {
	Name     string `json:"name"`
	Target   string `json:"target"`
	Deadline string `json:"deadline"`
}

type reserveTransactionResponse struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	AmountCents int64  `json:"amount_cents"`
	Kind        string `json:"kind"`
}

type reserveResponse struct {
	ID           string                       `json:"id"`
	Name         string                       `json:"name"`
	TargetCents  int64                        `json:"target_cents"`
	CurrentCents int64                        `json:"current_cents"`
	Deadline     string                       `json:"deadline"`
	History      []reserveTransactionResponse `json:"history"`
}

func toReserveResponse(res core.Reserve) reserveResponse {
	history := make([]reserveTransactionResponse, 0, len(res.History))
	for _, tx := range res.History {
		history = append(history, reserveTransactionResponse{
			ID:          tx.ID,
			Date:        tx.Date.Format(time.RFC3339),
			AmountCents: tx.Amount.Cents,
			Kind:        string(tx.Kind),
		})
	}
	return reserveResponse{
		ID:           res.ID,
		Name:         res.Name,
		TargetCents:  res.Target.Cents,
		CurrentCents: res.Current.Cents,
		Deadline:     res.Deadline.String(),
		History:      history,
	}
}

func (s *Server) handleListReserves(w http.ResponseWriter, r *http.Request) {
	reserves, err := s.reserves.ListReserves(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]reserveResponse, 0, len(reserves))
	for _, res := range reserves {
		out = append(out, toReserveResponse(res))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleGetReserve(w http.ResponseWriter, r *http.Request) {
	reserve, err := s.reserves.GetReserve(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toReserveResponse(reserve))
}

func (s *Server) handleCreateReserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, r, "malformed request body")
		return
	}
	targetCents, err := core.ParsePositiveDecimalToCents(req.Target)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	deadline, err := core.ParseDate(req.Deadline)
	if err != nil {
		writeBadRequest(w, r, "invalid deadline")
		return
	}

	created, err := s.reserves.CreateReserve(r.Context(), core.Reserve{
		Name:     sanitizeInput(req.Name),
		Target:   core.Money{Cents: targetCents},
		Deadline: deadline,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toReserveResponse(created))
}

func (s *Server) handleDeleteReserve(w http.ResponseWriter, r *http.Request) {
	if err := s.reserves.DeleteReserve(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

type reserveTransactionRequest struct {
	Amount string `json:"amount"`
	Kind   string `json:"kind"`
}

func (s *Server) handleReserveTransaction(w http.ResponseWriter, r *http.Request) {
	var req reserveTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, r, "malformed request body")
		return
	}
	cents, err := core.ParsePositiveDecimalToCents(req.Amount)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	kind := core.TransactionKind(strings.ToUpper(strings.TrimSpace(req.Kind)))

	updated, err := s.reserves.ApplyTransaction(r.Context(), r.PathValue("id"), core.Money{Cents: cents}, kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toReserveResponse(updated))
}

type planResponse struct {
	MonthlyCents    int64 `json:"monthly_cents"`
	MonthsRemaining int   `json:"months_remaining"`
	Late            bool  `json:"late"`
}

func (s *Server) handleReservePlan(w http.ResponseWriter, r *http.Request) {
	today, err := queryDate(r, "date", s.today())
	if err != nil {
		writeBadRequest(w, r, "invalid date parameter")
		return
	}
	plan, err := s.reserves.Plan(r.Context(), r.PathValue("id"), today)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, planResponse{
		MonthlyCents:    plan.Monthly.Cents,
		MonthsRemaining: plan.MonthsRemaining,
		Late:            plan.Late,
	})
}
