package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/dvaldes/gradgala/internal/model"
	"github.com/dvaldes/gradgala/internal/repository"
)

// thermoPrefixes are the honorifics offered for engraving.  The empty string
// means no prefix.
var thermoPrefixes = map[string]bool{
	"": true, "Lic.": true, "Ing.": true, "Arq.": true,
	"Dr.": true, "Mtro.": true, "Mtra.": true, "C.": true,
}

// ThermoHandler serves the personalized thermo gift: its unlock state, which
// depends on payment progress, and the one-time customization.
type ThermoHandler struct {
	Graduates *repository.GraduateRepo
	Events    *repository.EventRepo
	Tickets   *repository.TicketRepo
	Payments  *repository.PaymentRepo
}

func NewThermoHandler(graduates *repository.GraduateRepo, events *repository.EventRepo, tickets *repository.TicketRepo, payments *repository.PaymentRepo) *ThermoHandler {
	if graduates == nil || events == nil || tickets == nil || payments == nil {
		panic("nil repository passed to NewThermoHandler")
	}
	return &ThermoHandler{Graduates: graduates, Events: events, Tickets: tickets, Payments: payments}
}

// progressPercent returns the rounded share of the ticket total already paid.
func (h *ThermoHandler) progressPercent(c echo.Context, graduateID uint64) (int, error) {
	ctx := c.Request().Context()
	total := uint64(0)
	if order, err := h.Tickets.GetByGraduate(ctx, graduateID); err == nil {
		total = order.TotalAmountCents
	} else if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	paid, err := h.Payments.SumPaidByGraduate(ctx, graduateID)
	if err != nil {
		return 0, err
	}
	return int((paid*100 + total/2) / total), nil
}

// Status handles GET /v1/graduates/me/thermo.
func (h *ThermoHandler) Status(c echo.Context) error {
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
	percent, err := h.progressPercent(c, graduateID)
	if err != nil {
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"is_unlocked":      percent >= int(event.ThermoThreshold),
		"has_customized":   g.ThermoStep == model.StepCompleted,
		"thermo_step":      g.ThermoStep,
		"progress_percent": percent,
		"threshold":        event.ThermoThreshold,
		"thermo_prefix":    g.ThermoPrefix,
		"thermo_name":      g.ThermoName,
	})
}

type customizeThermoRequest struct {
	Prefix string `json:"prefix"`
	Name   string `json:"name" validate:"required"`
}

// Customize handles POST /v1/graduates/me/thermo.  Rejected until payment
// progress reaches the event threshold; the engraved name is capped at 14
// characters so it fits the thermo.
func (h *ThermoHandler) Customize(c echo.Context) error {
	graduateID, err := getGraduateID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req customizeThermoRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "name is required")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "name is required")
	}
	if utf8.RuneCountInString(req.Name) > 14 {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "name cannot exceed 14 characters")
	}
	if !thermoPrefixes[req.Prefix] {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid prefix")
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
	percent, err := h.progressPercent(c, graduateID)
	if err != nil {
		return internalError(c)
	}
	if percent < int(event.ThermoThreshold) {
		return apiError(c, http.StatusBadRequest, kindPreconditionFailed,
			fmt.Sprintf("thermo is locked, reach %d%% payment progress to unlock", event.ThermoThreshold))
	}

	if err := h.Graduates.SetThermo(ctx, graduateID, req.Prefix, req.Name); err != nil {
		return internalError(c)
	}

	fullText := req.Name
	if req.Prefix != "" {
		fullText = req.Prefix + " " + req.Name
	}
	return c.JSON(http.StatusOK, echo.Map{
		"thermo_prefix": req.Prefix,
		"thermo_name":   req.Name,
		"full_text":     fullText,
	})
}
