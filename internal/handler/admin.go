package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dvaldes/gradgala/internal/model"
	"github.com/dvaldes/gradgala/internal/repository"
)

// AdminHandler serves event and table administration.  All routes behind it
// require the ADMIN role.
type AdminHandler struct {
	Events     *repository.EventRepo
	Tables     *repository.TableRepo
	Selections *repository.SelectionRepo
}

func NewAdminHandler(events *repository.EventRepo, tables *repository.TableRepo, selections *repository.SelectionRepo) *AdminHandler {
	if events == nil || tables == nil || selections == nil {
		panic("nil repository passed to NewAdminHandler")
	}
	return &AdminHandler{Events: events, Tables: tables, Selections: selections}
}

type createEventRequest struct {
	Name                string `json:"name" validate:"required,min=2,max=160"`
	Date                string `json:"date" validate:"required"`
	Venue               string `json:"venue" validate:"required,max=160"`
	Capacity            uint32 `json:"capacity" validate:"required,min=1"`
	TicketPriceCents    uint64 `json:"ticket_price_cents" validate:"required,min=1"`
	InitialPaymentCents uint64 `json:"initial_payment_cents" validate:"required,min=1"`
	MonthsDuration      uint32 `json:"months_duration" validate:"required,min=1,max=36"`
	ThermoThreshold     uint32 `json:"thermo_threshold" validate:"required,min=1,max=100"`
	MealsDeadline       string `json:"meals_deadline" validate:"required"`
}

// CreateEvent handles POST /v1/admin/events.
func (h *AdminHandler) CreateEvent(c echo.Context) error {
	var req createEventRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, err.Error())
	}
	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "date must be RFC3339")
	}
	deadline, err := time.Parse(time.RFC3339, req.MealsDeadline)
	if err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "meals_deadline must be RFC3339")
	}
	if req.InitialPaymentCents > req.TicketPriceCents {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "initial payment cannot exceed the ticket price")
	}

	event := &model.Event{
		Name:                req.Name,
		Date:                date.UTC(),
		Venue:               req.Venue,
		Capacity:            req.Capacity,
		TicketPriceCents:    req.TicketPriceCents,
		InitialPaymentCents: req.InitialPaymentCents,
		MonthsDuration:      req.MonthsDuration,
		ThermoThreshold:     req.ThermoThreshold,
		MealsDeadline:       deadline.UTC(),
		Status:              "active",
	}
	if err := h.Events.Create(c.Request().Context(), event); err != nil {
		return internalError(c)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": event.ID, "name": event.Name})
}

type createTablesRequest struct {
	Count    uint32 `json:"count" validate:"required,min=1,max=200"`
	Capacity uint32 `json:"capacity" validate:"required,min=1,max=20"`
	PerRow   uint32 `json:"per_row" validate:"omitempty,min=1,max=50"`
}

// CreateTables handles POST /v1/admin/events/:id/tables.  Tables are created
// as a grid: sequential "Mesa N" labels, positions spaced on a fixed pitch so
// the layout canvas renders without manual placement.
func (h *AdminHandler) CreateTables(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid event id")
	}
	var req createTablesRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, err.Error())
	}
	perRow := req.PerRow
	if perRow == 0 {
		perRow = 10
	}

	ctx := c.Request().Context()
	if _, err := h.Events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return apiError(c, http.StatusNotFound, kindNotFound, "event not found")
		}
		return internalError(c)
	}

	const pitch = 120 // px between table centers on the layout canvas
	tables := make([]model.Table, 0, req.Count)
	for i := uint32(0); i < req.Count; i++ {
		tables = append(tables, model.Table{
			EventID:   eventID,
			Label:     fmt.Sprintf("Mesa %d", i+1),
			Capacity:  req.Capacity,
			Status:    model.TableAvailable,
			PositionX: int32((i % perRow) * pitch),
			PositionY: int32((i / perRow) * pitch),
		})
	}
	if err := h.Tables.CreateBulk(ctx, tables); err != nil {
		return internalError(c)
	}
	return c.JSON(http.StatusCreated, echo.Map{"created": req.Count, "capacity": req.Capacity})
}

type updateTableStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=available blocked"`
}

// UpdateTableStatus handles PATCH /v1/admin/tables/:id/status, the only way
// a table's status changes.  Blocking a table keeps existing selections in
// place but rejects new ones.
func (h *AdminHandler) UpdateTableStatus(c echo.Context) error {
	tableID, err := pathID(c, "id")
	if err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid table id")
	}
	var req updateTableStatusRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "status must be available or blocked")
	}
	if err := h.Tables.UpdateStatus(c.Request().Context(), tableID, req.Status); err != nil {
		if errors.Is(err, repository.ErrTableNotFound) {
			return apiError(c, http.StatusNotFound, kindNotFound, "table not found")
		}
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": tableID, "status": req.Status})
}

// Roster handles GET /v1/admin/events/:id/selections: who sits where, with
// each party's seat requirement.
func (h *AdminHandler) Roster(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid event id")
	}
	ctx := c.Request().Context()
	if _, err := h.Events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return apiError(c, http.StatusNotFound, kindNotFound, "event not found")
		}
		return internalError(c)
	}
	entries, err := h.Selections.ListRosterByEvent(ctx, eventID)
	if err != nil {
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{"selections": entries})
}
