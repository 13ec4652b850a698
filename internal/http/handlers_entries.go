package http

import (
	"net/http"
	"time"

	"contas/internal/core"
	"contas/internal/log"
)

type entryRequest struct {
	CategoryID  string `json:"category_id"`
	CardID      string `json:"card_id,omitempty"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
}

type entryResponse struct {
	ID          string `json:"id"`
	CategoryID  string `json:"category_id"`
	CardID      string `json:"card_id,omitempty"`
	RuleID      string `json:"rule_id,omitempty"`
	AmountCents int64  `json:"amount_cents"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

func toEntryResponse(e core.LedgerEntry) entryResponse {
	return entryResponse{
		ID:          e.ID,
		CategoryID:  e.CategoryID,
		CardID:      e.CardID,
		RuleID:      e.RuleID,
		AmountCents: e.Amount.Cents,
		Date:        e.Date.String(),
		Description: e.Description,
		Status:      string(e.Status),
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}

// toEntry converts the wire form, parsing the decimal amount string into
// cents so callers never send floats.
func (req entryRequest) toEntry() (core.LedgerEntry, error) {
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	return core.LedgerEntry{
		CategoryID:  sanitizeInput(req.CategoryID),
		CardID:      sanitizeInput(req.CardID),
		Amount:      core.Money{Cents: cents},
		Date:        date,
		Description: sanitizeInput(req.Description),
		Status:      core.EntryStatus(req.Status),
	}, nil
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledger.ListEntries(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.ledger.GetEntry(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toEntryResponse(entry))
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, r, "malformed request body")
		return
	}
	entry, err := req.toEntry()
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	created, err := s.ledger.CreateEntry(r.Context(), entry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	events := log.NewStructuredLogger(log.FromContext(r.Context()))
	events.LogEntryCreated(r.Context(), created.ID, created.Amount.Cents, created.Date.String(), string(created.Status))
	writeJSON(w, r, http.StatusCreated, toEntryResponse(created))
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, r, "malformed request body")
		return
	}
	entry, err := req.toEntry()
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	entry.ID = r.PathValue("id")

	// Preserve fields the wire form does not carry.
	existing, err := s.ledger.GetEntry(r.Context(), entry.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entry.RuleID = existing.RuleID
	entry.CreatedAt = existing.CreatedAt
	if entry.Status == "" {
		entry.Status = existing.Status
	}

	updated, err := s.ledger.UpdateEntry(r.Context(), entry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toEntryResponse(updated))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteEntry(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

type projectionPoint struct {
	Date         string `json:"date"`
	BalanceCents int64  `json:"balance_cents"`
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 0)
	if err != nil || days < 0 {
		writeBadRequest(w, r, "invalid days parameter")
		return
	}
	today, err := queryDate(r, "date", s.today())
	if err != nil {
		writeBadRequest(w, r, "invalid date parameter")
		return
	}

	points, err := s.ledger.Projection(r.Context(), today, days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]projectionPoint, 0, len(points))
	for _, p := range points {
		out = append(out, projectionPoint{Date: p.Date.String(), BalanceCents: p.Balance.Cents})
	}
	writeJSON(w, r, http.StatusOK, out)
}
