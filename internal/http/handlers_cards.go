package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"contas/internal/core"
	"contas/internal/services"
)

// defaultFutureCycles bounds the forward simulation when the client does
// not ask for a specific count.
const defaultFutureCycles = 12

type cardRequest struct {
	Name       string `json:"name"`
	Limit      string `json:"limit"`
	ClosingDay int    `json:"closing_day"`
	DueDay     int    `json:"due_day"`
	Color      string `json:"color,omitempty"`
	Icon       string `json:"icon,omitempty"`
}

type cardResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	LimitCents int64  `json:"limit_cents"`
	ClosingDay int    `json:"closing_day"`
	DueDay     int    `json:"due_day"`
	Active     bool   `json:"active"`
	Color      string `json:"color,omitempty"`
	Icon       string `json:"icon,omitempty"`
}

func toCardResponse(c core.CreditCard) cardResponse {
	return cardResponse{
		ID:         c.ID,
		Name:       c.Name,
		LimitCents: c.Limit.Cents,
		ClosingDay: c.ClosingDay,
		DueDay:     c.DueDay,
		Active:     c.Active,
		Color:      c.Color,
		Icon:       c.Icon,
	}
}

type periodResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type statementResponse struct {
	Card                 cardResponse   `json:"card"`
	Period               periodResponse `json:"period"`
	TotalCents           int64          `json:"total_cents"`
	Status               string         `json:"status"`
	DueDate              string         `json:"due_date"`
	AvailableCreditCents int64          `json:"available_credit_cents"`
}

func toStatementResponse(v services.StatementView) statementResponse {
	return statementResponse{
		Card:                 toCardResponse(v.Card),
		Period:               periodResponse{Start: v.Period.Start.String(), End: v.Period.End.String()},
		TotalCents:           v.Total.Cents,
		Status:               string(v.Status),
		DueDate:              v.DueDate.String(),
		AvailableCreditCents: v.AvailableCredit.Cents,
	}
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.repo.ListCards(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]cardResponse, 0, len(cards))
	for _, c := range cards {
		out = append(out, toCardResponse(c))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, r, "malformed request body")
		return
	}
	limitCents, err := core.ParsePositiveDecimalToCents(req.Limit)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	card := core.CreditCard{
		ID:         uuid.NewString(),
		Name:       sanitizeInput(req.Name),
		Limit:      core.Money{Cents: limitCents},
		ClosingDay: req.ClosingDay,
		DueDay:     req.DueDay,
		Active:     true,
		Color:      sanitizeInput(req.Color),
		Icon:       sanitizeInput(req.Icon),
	}
	if err := card.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.repo.CreateCard(r.Context(), card); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toCardResponse(card))
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	today, err := queryDate(r, "date", s.today())
	if err != nil {
		writeBadRequest(w, r, "invalid date parameter")
		return
	}
	view, err := s.statements.Statement(r.Context(), r.PathValue("id"), today)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toStatementResponse(view))
}

func (s *Server) handlePayInvoice(w http.ResponseWriter, r *http.Request) {
	var (
		total core.Money
		err   error
	)
	// ?month=YYYY-MM names a cycle by its closing month, so a statement
	// that closed yesterday can be settled without back-dating the request.
	if month := r.URL.Query().Get("month"); month != "" {
		closing, perr := time.Parse("2006-01", month)
		if perr != nil {
			writeBadRequest(w, r, "invalid month parameter")
			return
		}
		total, err = s.statements.PayStatement(r.Context(), r.PathValue("id"), closing.Year(), closing.Month())
	} else {
		today, derr := queryDate(r, "date", s.today())
		if derr != nil {
			writeBadRequest(w, r, "invalid date parameter")
			return
		}
		total, err = s.statements.PayInvoice(r.Context(), r.PathValue("id"), today)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int64{"settled_cents": total.Cents})
}

type futureCycleResponse struct {
	Label      string         `json:"label"`
	Period     periodResponse `json:"period"`
	TotalCents int64          `json:"total_cents"`
	Virtual    bool           `json:"virtual"`
}

func (s *Server) handleFutureCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := queryInt(r, "cycles", defaultFutureCycles)
	if err != nil {
		writeBadRequest(w, r, "invalid cycles parameter")
		return
	}
	from, err := queryDate(r, "date", s.today())
	if err != nil {
		writeBadRequest(w, r, "invalid date parameter")
		return
	}

	projected, err := s.statements.FutureCycles(r.Context(), r.PathValue("id"), from, cycles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]futureCycleResponse, 0, len(projected))
	for _, p := range projected {
		out = append(out, futureCycleResponse{
			Label:      p.Label,
			Period:     periodResponse{Start: p.Period.Start.String(), End: p.Period.End.String()},
			TotalCents: p.Total.Cents,
			Virtual:    p.Virtual,
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}
