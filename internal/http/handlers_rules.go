package http

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"contas/internal/core"
)

type ruleRequest struct {
	CategoryID  string `json:"category_id"`
	CardID      string `json:"card_id,omitempty"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	DayOfMonth  int    `json:"day_of_month"`
	Active      *bool  `json:"active,omitempty"`
	AutoCreate  bool   `json:"auto_create"`
}

type ruleResponse struct {
	ID          string `json:"id"`
	CategoryID  string `json:"category_id"`
	CardID      string `json:"card_id,omitempty"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
	DayOfMonth  int    `json:"day_of_month"`
	Active      bool   `json:"active"`
	AutoCreate  bool   `json:"auto_create"`
}

func toRuleResponse(rule core.RecurringRule) ruleResponse {
	return ruleResponse{
		ID:          rule.ID,
		CategoryID:  rule.CategoryID,
		CardID:      rule.CardID,
		AmountCents: rule.Amount.Cents,
		Description: rule.Description,
		DayOfMonth:  rule.Recurrence.DayOfMonth,
		Active:      rule.Active,
		AutoCreate:  rule.AutoCreate,
	}
}

func (req ruleRequest) toRule() (core.RecurringRule, error) {
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.RecurringRule{}, err
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return core.RecurringRule{
		CategoryID:  sanitizeInput(req.CategoryID),
		CardID:      sanitizeInput(req.CardID),
		Amount:      core.Money{Cents: cents},
		Description: sanitizeInput(req.Description),
		Recurrence:  core.Recurrence{Every: core.Monthly, DayOfMonth: req.DayOfMonth},
		Active:      active,
		AutoCreate:  req.AutoCreate,
	}, nil
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.repo.ListRules(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleResponse(rule))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, r, "malformed request body")
		return
	}
	rule, err := req.toRule()
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	rule.ID = uuid.NewString()
	if err := rule.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.repo.CreateRule(r.Context(), rule); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toRuleResponse(rule))
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, r, "malformed request body")
		return
	}
	rule, err := req.toRule()
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	rule.ID = r.PathValue("id")
	if err := rule.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.repo.UpdateRule(r.Context(), rule); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toRuleResponse(rule))
}

type categoryRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	IsFixed bool   `json:"is_fixed"`
	Color   string `json:"color,omitempty"`
	Icon    string `json:"icon,omitempty"`
}

type categoryResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	IsFixed bool   `json:"is_fixed"`
	Color   string `json:"color,omitempty"`
	Icon    string `json:"icon,omitempty"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{
		ID:      c.ID,
		Name:    c.Name,
		Type:    string(c.Type),
		IsFixed: c.IsFixed,
		Color:   c.Color,
		Icon:    c.Icon,
	}
}

func (req categoryRequest) toCategory() (core.Category, error) {
	name := sanitizeInput(req.Name)
	if name == "" {
		return core.Category{}, core.ErrEmptyName
	}
	kind := core.CategoryType(strings.ToUpper(strings.TrimSpace(req.Type)))
	if kind != core.CategoryIncome && kind != core.CategoryExpense {
		return core.Category{}, core.ErrInvalidArgument
	}
	return core.Category{
		Name:    name,
		Type:    kind,
		IsFixed: req.IsFixed,
		Color:   sanitizeInput(req.Color),
		Icon:    sanitizeInput(req.Icon),
	}, nil
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.repo.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryResponse(c))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, r, "malformed request body")
		return
	}
	category, err := req.toCategory()
	if err != nil {
		writeError(w, r, err)
		return
	}
	category.ID = uuid.NewString()
	if err := s.repo.CreateCategory(r.Context(), category); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toCategoryResponse(category))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, r, "malformed request body")
		return
	}
	category, err := req.toCategory()
	if err != nil {
		writeError(w, r, err)
		return
	}
	category.ID = r.PathValue("id")
	if err := s.repo.UpdateCategory(r.Context(), category); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCategoryResponse(category))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteCategory(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}
