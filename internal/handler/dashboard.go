package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dvaldes/gradgala/internal/repository"
)

// DashboardHandler serves the authenticated graduate's profile and the
// dashboard aggregate that drives the step-by-step UI.
type DashboardHandler struct {
	Graduates *repository.GraduateRepo
	Events    *repository.EventRepo
	Tickets   *repository.TicketRepo
	Payments  *repository.PaymentRepo
}

func NewDashboardHandler(graduates *repository.GraduateRepo, events *repository.EventRepo, tickets *repository.TicketRepo, payments *repository.PaymentRepo) *DashboardHandler {
	if graduates == nil || events == nil || tickets == nil || payments == nil {
		panic("nil repository passed to NewDashboardHandler")
	}
	return &DashboardHandler{Graduates: graduates, Events: events, Tickets: tickets, Payments: payments}
}

// Profile handles GET /v1/graduates/me.
func (h *DashboardHandler) Profile(c echo.Context) error {
	graduateID, err := getGraduateID(c)
	if err != nil {
		return unauthorized(c)
	}
	g, err := h.Graduates.GetByID(c.Request().Context(), graduateID)
	if err != nil {
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":         g.ID,
		"event_id":   g.EventID,
		"full_name":  g.FullName,
		"email":      g.Email,
		"phone":      g.Phone,
		"career":     g.Career,
		"generation": g.Generation,
		"group_name": g.GroupName,
		"status":     g.Status,
		"progress": echo.Map{
			"tickets_step":  g.TicketsStep,
			"layout_step":   g.LayoutStep,
			"meals_step":    g.MealsStep,
			"payments_step": g.PaymentsStep,
			"thermo_step":   g.ThermoStep,
		},
		"created_at": g.CreatedAt.Format(time.RFC3339),
	})
}

// Dashboard handles GET /v1/graduates/me/dashboard: event info, the ordered
// step list, payment progress and the thermo unlock state in one response.
func (h *DashboardHandler) Dashboard(c echo.Context) error {
	graduateID, err := getGraduateID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx := c.Request().Context()

	g, err := h.Graduates.GetByID(ctx, graduateID)
	if err != nil {
		return internalError(c)
	}
	event, err := h.Events.GetByID(ctx, g.EventID)
	if err != nil {
		return internalError(c)
	}

	totalAmount := uint64(0)
	if order, err := h.Tickets.GetByGraduate(ctx, graduateID); err == nil {
		totalAmount = order.TotalAmountCents
	} else if !errors.Is(err, sql.ErrNoRows) {
		return internalError(c)
	}
	totalPaid, err := h.Payments.SumPaidByGraduate(ctx, graduateID)
	if err != nil {
		return internalError(c)
	}

	pending := int64(totalAmount) - int64(totalPaid)
	if pending < 0 {
		pending = 0
	}
	percent := 0
	if totalAmount > 0 {
		percent = int((totalPaid*100 + totalAmount/2) / totalAmount)
	}

	type step struct {
		Key    string `json:"key"`
		Label  string `json:"label"`
		Status string `json:"status"`
	}

	return c.JSON(http.StatusOK, echo.Map{
		"graduate": echo.Map{
			"id":        g.ID,
			"full_name": g.FullName,
			"status":    g.Status,
		},
		"event": echo.Map{
			"id":    event.ID,
			"name":  event.Name,
			"date":  event.Date.Format(time.RFC3339),
			"venue": event.Venue,
		},
		"steps": []step{
			{Key: "tickets", Label: "Boletos", Status: g.TicketsStep},
			{Key: "layout", Label: "Mesa", Status: g.LayoutStep},
			{Key: "meals", Label: "Platillos", Status: g.MealsStep},
			{Key: "payments", Label: "Pagos", Status: g.PaymentsStep},
			{Key: "thermo", Label: "Termo", Status: g.ThermoStep},
			{Key: "summary", Label: "Resumen", Status: "available"},
		},
		"payment_progress": echo.Map{
			"total_amount":     totalAmount,
			"paid_amount":      totalPaid,
			"pending_amount":   pending,
			"progress_percent": percent,
		},
		"thermo": echo.Map{
			"unlocked":         percent >= int(event.ThermoThreshold),
			"required_percent": event.ThermoThreshold,
			"status":           g.ThermoStep,
		},
	})
}
