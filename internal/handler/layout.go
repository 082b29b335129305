package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dvaldes/gradgala/internal/model"
	"github.com/dvaldes/gradgala/internal/queue"
	"github.com/dvaldes/gradgala/internal/repository"
	queue_publisher "github.com/dvaldes/gradgala/internal/service"
)

// LayoutHandler serves the venue layout overview and table selection.
// Selection is the one capacity-sensitive write in the system: it runs in a
// single transaction holding a row lock on the target table so concurrent
// claims on the same table serialize and the occupancy check stays valid
// through the insert.
type LayoutHandler struct {
	Tables     *repository.TableRepo
	Selections *repository.SelectionRepo
	Tickets    *repository.TicketRepo
	Graduates  *repository.GraduateRepo
	Events     *repository.EventRepo
}

func NewLayoutHandler(tables *repository.TableRepo, selections *repository.SelectionRepo, tickets *repository.TicketRepo, graduates *repository.GraduateRepo, events *repository.EventRepo) *LayoutHandler {
	if tables == nil || selections == nil || tickets == nil || graduates == nil || events == nil {
		panic("nil repository passed to NewLayoutHandler")
	}
	return &LayoutHandler{Tables: tables, Selections: selections, Tickets: tickets, Graduates: graduates, Events: events}
}

// Overview handles GET /v1/events/:id/layout.  Every table is returned with
// its derived occupancy and a status of available, full or blocked.  When the
// caller is authenticated their own table is flagged and their current
// selection is echoed back.
func (h *LayoutHandler) Overview(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid event id")
	}

	// Viewer is optional: zero never matches a graduate_id.
	viewerID, _ := getGraduateID(c)

	ctx := c.Request().Context()
	if _, err := h.Events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return apiError(c, http.StatusNotFound, kindNotFound, "event not found")
		}
		return internalError(c)
	}

	rows, err := h.Tables.ListOverviewByEvent(ctx, eventID, viewerID)
	if err != nil {
		return internalError(c)
	}

	type tableView struct {
		ID             uint64 `json:"id"`
		Label          string `json:"label"`
		Capacity       uint32 `json:"capacity"`
		OccupiedSeats  uint32 `json:"occupied_seats"`
		AvailableSeats uint32 `json:"available_seats"`
		Status         string `json:"status"`
		PositionX      int32  `json:"position_x"`
		PositionY      int32  `json:"position_y"`
		SelectedByMe   bool   `json:"is_selected_by_me"`
	}

	tables := make([]tableView, 0, len(rows))
	for _, r := range rows {
		v := tableView{
			ID:            r.ID,
			Label:         r.Label,
			Capacity:      r.Capacity,
			OccupiedSeats: r.OccupiedSeats,
			Status:        r.Status,
			PositionX:     r.PositionX,
			PositionY:     r.PositionY,
			SelectedByMe:  r.SelectedByMe,
		}
		if r.OccupiedSeats < r.Capacity {
			v.AvailableSeats = r.Capacity - r.OccupiedSeats
		}
		// Blocked wins over occupancy; a full table reports as full.
		switch {
		case r.Status == model.TableBlocked:
			v.Status = "blocked"
		case v.AvailableSeats == 0:
			v.Status = "full"
		default:
			v.Status = "available"
		}
		tables = append(tables, v)
	}

	resp := echo.Map{"tables": tables}
	if viewerID != 0 {
		sel, err := h.Selections.GetByGraduate(ctx, viewerID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return internalError(c)
		}
		if sel != nil {
			resp["my_selection"] = sel
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// MySelection handles GET /v1/graduates/me/layout/selection.
func (h *LayoutHandler) MySelection(c echo.Context) error {
	graduateID, err := getGraduateID(c)
	if err != nil {
		return unauthorized(c)
	}
	sel, err := h.Selections.GetByGraduate(c.Request().Context(), graduateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apiError(c, http.StatusNotFound, kindNotFound, "no table selected")
		}
		return internalError(c)
	}
	return c.JSON(http.StatusOK, sel)
}

type selectTableRequest struct {
	TableID uint64 `json:"table_id" validate:"required,min=1"`
}

// SelectTable handles POST /v1/graduates/me/layout/selection.  It claims
// seats at a table for the graduate's whole party, moving any previous claim
// atomically.  Re-selecting the currently held table succeeds and leaves the
// ledger unchanged.
//
// The whole check-then-act sequence runs under a FOR UPDATE lock on the
// table row.  A concurrent selection for the same table blocks on the lock
// and re-reads occupancy after the winner commits, so capacity can never be
// oversubscribed by a race.
func (h *LayoutHandler) SelectTable(c echo.Context) error {
	graduateID, err := getGraduateID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req selectTableRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "table_id is required")
	}

	ctx := c.Request().Context()
	tx, err := h.Tables.DB().BeginTx(ctx, nil)
	if err != nil {
		return internalError(c)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Seats required by this graduate's party.  No purchase means no claim.
	required, err := h.Tickets.RequiredSeatsTx(ctx, tx, graduateID)
	if err != nil {
		return internalError(c)
	}
	if required == 0 {
		return apiError(c, http.StatusBadRequest, kindPreconditionFailed, "you must buy tickets before selecting a table")
	}

	// Lock the table row for the rest of the transaction.
	table, err := h.Tables.GetForUpdateTx(ctx, tx, req.TableID)
	if err != nil {
		if errors.Is(err, repository.ErrTableNotFound) {
			return apiError(c, http.StatusNotFound, kindNotFound, "table not found")
		}
		return internalError(c)
	}
	if table.Status == model.TableBlocked {
		return apiError(c, http.StatusConflict, kindConflict, "this table is blocked")
	}

	// Occupancy by other graduates.  Excluding the caller makes re-selecting
	// the held table idempotent instead of self-colliding.
	occupied, err := h.Selections.OccupiedSeatsTx(ctx, tx, req.TableID, graduateID)
	if err != nil {
		return internalError(c)
	}
	available := uint32(0)
	if occupied < table.Capacity {
		available = table.Capacity - occupied
	}
	if available < required {
		return apiError(c, http.StatusConflict, kindConflict,
			fmt.Sprintf("not enough seats at this table: %d available, %d required", available, required))
	}

	// Release any previous claim, then take the new one.
	if err := h.Selections.DeleteByGraduateTx(ctx, tx, graduateID); err != nil {
		return internalError(c)
	}
	if err := h.Selections.CreateTx(ctx, tx, graduateID, req.TableID); err != nil {
		return internalError(c)
	}
	if err := h.Graduates.MarkLayoutCompletedTx(ctx, tx, graduateID); err != nil {
		return internalError(c)
	}
	if err := tx.Commit(); err != nil {
		return internalError(c)
	}
	committed = true

	// Broker failures only cost the activity log entry.
	if g, err := h.Graduates.GetByID(ctx, graduateID); err == nil {
		_ = queue_publisher.PublishTableSelected(ctx, queue.TableSelectedEvent{
			GraduateID:    graduateID,
			GraduateName:  g.FullName,
			EventID:       table.EventID,
			TableID:       table.ID,
			TableLabel:    table.Label,
			SeatsTaken:    required,
			SeatsCapacity: table.Capacity,
			SelectedAt:    time.Now().UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"table": echo.Map{
			"id":       table.ID,
			"label":    table.Label,
			"capacity": table.Capacity,
		},
		"message": "table selected",
	})
}
