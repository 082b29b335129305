package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dvaldes/gradgala/internal/model"
	"github.com/dvaldes/gradgala/internal/repository"
)

// TicketsHandler serves the ticket purchase flow: creating the order, listing
// and editing guests, adding guests later, and resetting the whole flow.
type TicketsHandler struct {
	Tickets    *repository.TicketRepo
	Guests     *repository.GuestRepo
	Graduates  *repository.GraduateRepo
	Events     *repository.EventRepo
	Payments   *repository.PaymentRepo
	Selections *repository.SelectionRepo
}

func NewTicketsHandler(tickets *repository.TicketRepo, guests *repository.GuestRepo, graduates *repository.GraduateRepo, events *repository.EventRepo, payments *repository.PaymentRepo, selections *repository.SelectionRepo) *TicketsHandler {
	if tickets == nil || guests == nil || graduates == nil || events == nil || payments == nil || selections == nil {
		panic("nil repository passed to NewTicketsHandler")
	}
	return &TicketsHandler{Tickets: tickets, Guests: guests, Graduates: graduates, Events: events, Payments: payments, Selections: selections}
}

type createTicketsRequest struct {
	TicketsCount uint32 `json:"tickets_count" validate:"required,min=1,max=20"`
}

// Create handles POST /v1/graduates/me/tickets.  The count covers the
// graduate plus their guests; one guest row per seat is created up front, the
// first being the graduate themselves.  An existing order cannot be replaced,
// only grown through AddGuests or wiped through Reset.
func (h *TicketsHandler) Create(c echo.Context) error {
	graduateID, err := getGraduateID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req createTicketsRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "tickets_count must be between 1 and 20")
	}

	ctx := c.Request().Context()
	g, err := h.Graduates.GetByID(ctx, graduateID)
	if err != nil {
		return internalError(c)
	}
	if _, err := h.Tickets.GetByGraduate(ctx, graduateID); err == nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "tickets already created, add guests instead")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return internalError(c)
	}
	event, err := h.Events.GetByID(ctx, g.EventID)
	if err != nil {
		return internalError(c)
	}

	totalAmount := event.TicketPriceCents * uint64(req.TicketsCount)
	remaining := int64(totalAmount) - int64(event.InitialPaymentCents)
	if remaining < 0 {
		remaining = 0
	}
	monthly := ceilDiv(uint64(remaining), uint64(event.MonthsDuration))

	order := &model.TicketOrder{
		GraduateID:       graduateID,
		TicketsCount:     req.TicketsCount,
		BasePriceCents:   event.TicketPriceCents,
		TotalAmountCents: totalAmount,
	}
	if err := h.Tickets.Create(ctx, order); err != nil {
		return internalError(c)
	}

	guests := make([]model.Guest, 0, req.TicketsCount)
	for i := uint32(0); i < req.TicketsCount; i++ {
		guest := model.Guest{
			GraduateID: graduateID,
			Type:       model.GuestTypeGuest,
			FullName:   fmt.Sprintf("Invitado %d", i),
			MealType:   model.MealTraditional,
		}
		if i == 0 {
			guest.Type = model.GuestTypeGraduate
			guest.FullName = g.FullName
		}
		guests = append(guests, guest)
	}
	if err := h.Guests.CreateBulk(ctx, guests); err != nil {
		return internalError(c)
	}

	if err := h.Graduates.SetTicketsCompleted(ctx, graduateID); err != nil {
		return internalError(c)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"tickets_count":         req.TicketsCount,
		"base_price_per_ticket": event.TicketPriceCents,
		"total_amount":          totalAmount,
		"payment_plan": echo.Map{
			"months":          event.MonthsDuration,
			"initial_payment": event.InitialPaymentCents,
			"monthly_payment": monthly,
		},
	})
}

// ListGuests handles GET /v1/graduates/me/guests.
func (h *TicketsHandler) ListGuests(c echo.Context) error {
	graduateID, err := getGraduateID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx := c.Request().Context()

	ticketsCount := uint32(0)
	if order, err := h.Tickets.GetByGraduate(ctx, graduateID); err == nil {
		ticketsCount = order.TicketsCount
	} else if !errors.Is(err, sql.ErrNoRows) {
		return internalError(c)
	}

	guests, err := h.Guests.ListByGraduate(ctx, graduateID)
	if err != nil {
		return internalError(c)
	}

	type guestView struct {
		ID         uint64  `json:"id"`
		Type       string  `json:"type"`
		FullName   string  `json:"full_name"`
		SeatNumber *uint32 `json:"seat_number"`
		MealType   string  `json:"meal_type"`
	}
	views := make([]guestView, 0, len(guests))
	for _, g := range guests {
		views = append(views, guestView{ID: g.ID, Type: g.Type, FullName: g.FullName, SeatNumber: g.SeatNumber, MealType: g.MealType})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"tickets_count": ticketsCount,
		"guests":        views,
	})
}

type addGuestsRequest struct {
	AdditionalGuests uint32 `json:"additional_guests" validate:"required,min=1,max=10"`
}

// AddGuests handles POST /v1/graduates/me/guests.  Growing the party after
// installments have started creates one pending retroactive payment covering
// the months the new guests missed.  The held table is not re-validated here;
// the enlarged party only has to fit when the graduate next changes tables.
func (h *TicketsHandler) AddGuests(c echo.Context) error {
	graduateID, err := getGraduateID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req addGuestsRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "additional_guests must be between 1 and 10")
	}

	ctx := c.Request().Context()
	g, err := h.Graduates.GetByID(ctx, graduateID)
	if err != nil {
		return internalError(c)
	}
	order, err := h.Tickets.GetByGraduate(ctx, graduateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apiError(c, http.StatusBadRequest, kindPreconditionFailed, "no tickets found, create tickets first")
		}
		return internalError(c)
	}
	event, err := h.Events.GetByID(ctx, g.EventID)
	if err != nil {
		return internalError(c)
	}

	_, paidMonthly, err := h.Payments.CountPaidByGraduate(ctx, graduateID)
	if err != nil {
		return internalError(c)
	}

	// Months already collected are charged retroactively per added guest.
	retroPerGuest := ceilDiv(event.TicketPriceCents*uint64(paidMonthly), uint64(event.MonthsDuration))
	totalRetro := retroPerGuest * uint64(req.AdditionalGuests)

	newCount := order.TicketsCount + req.AdditionalGuests
	extraAmount := event.TicketPriceCents * uint64(req.AdditionalGuests)
	newTotal := order.TotalAmountCents + extraAmount

	totalPaid, err := h.Payments.SumPaidByGraduate(ctx, graduateID)
	if err != nil {
		return internalError(c)
	}
	remaining := int64(newTotal) - int64(totalPaid)
	if remaining < 0 {
		remaining = 0
	}
	remainingMonths := int64(event.MonthsDuration) - int64(paidMonthly)
	updatedMonthly := uint64(0)
	if remainingMonths > 0 {
		updatedMonthly = ceilDiv(uint64(remaining), uint64(remainingMonths))
	}

	if err := h.Tickets.UpdateCounts(ctx, order.ID, newCount, newTotal); err != nil {
		return internalError(c)
	}

	existing, err := h.Guests.CountByGraduate(ctx, graduateID)
	if err != nil {
		return internalError(c)
	}
	newGuests := make([]model.Guest, 0, req.AdditionalGuests)
	for i := uint32(0); i < req.AdditionalGuests; i++ {
		newGuests = append(newGuests, model.Guest{
			GraduateID: graduateID,
			Type:       model.GuestTypeGuest,
			FullName:   fmt.Sprintf("Invitado %d", existing+int(i)),
			MealType:   model.MealTraditional,
		})
	}
	if err := h.Guests.CreateBulk(ctx, newGuests); err != nil {
		return internalError(c)
	}

	if totalRetro > 0 {
		retro := &model.Payment{
			GraduateID:  graduateID,
			AmountCents: totalRetro,
			Type:        model.PaymentRetroactive,
			Status:      model.PaymentPending,
		}
		if err := h.Payments.Create(ctx, retro); err != nil {
			return internalError(c)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"added_guests_count": req.AdditionalGuests,
		"financial_impact": echo.Map{
			"new_tickets_count":       req.AdditionalGuests,
			"extra_total_amount":      extraAmount,
			"retroactive_months":      paidMonthly,
			"retroactive_amount":      totalRetro,
			"updated_total_amount":    newTotal,
			"updated_monthly_payment": updatedMonthly,
		},
	})
}

type updateGuestRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=120"`
	MealType *string `json:"meal_type" validate:"omitempty,oneof=traditional vegan"`
}

// UpdateGuest handles PATCH /v1/graduates/me/guests/:id.  Ownership is
// enforced; a graduate can only touch their own guests.
func (h *TicketsHandler) UpdateGuest(c echo.Context) error {
	graduateID, err := getGraduateID(c)
	if err != nil {
		return unauthorized(c)
	}
	guestID, err := pathID(c, "id")
	if err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid guest id")
	}
	var req updateGuestRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, err.Error())
	}
	if req.FullName == nil && req.MealType == nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "nothing to update")
	}

	ctx := c.Request().Context()
	if _, err := h.Guests.GetForGraduate(ctx, guestID, graduateID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apiError(c, http.StatusNotFound, kindNotFound, "guest not found")
		}
		return internalError(c)
	}
	if err := h.Guests.Update(ctx, guestID, req.FullName, req.MealType); err != nil {
		return internalError(c)
	}
	updated, err := h.Guests.GetForGraduate(ctx, guestID, graduateID)
	if err != nil {
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":        updated.ID,
		"full_name": updated.FullName,
		"meal_type": updated.MealType,
	})
}

// Reset handles DELETE /v1/graduates/me/tickets.  Guests, the order and any
// table selection are dropped, and the step flags rewind so the graduate can
// start over.  Paid payments stay on record.
func (h *TicketsHandler) Reset(c echo.Context) error {
	graduateID, err := getGraduateID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx := c.Request().Context()

	if err := h.Selections.DeleteByGraduate(ctx, graduateID); err != nil {
		return internalError(c)
	}
	if err := h.Guests.DeleteByGraduate(ctx, graduateID); err != nil {
		return internalError(c)
	}
	if err := h.Tickets.DeleteByGraduate(ctx, graduateID); err != nil {
		return internalError(c)
	}
	if err := h.Graduates.ResetTicketFlow(ctx, graduateID); err != nil {
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "tickets reset, you can select tickets again"})
}

// ceilDiv rounds the quotient up.  A zero divisor yields zero rather than
// panicking; events are always configured with at least one month.
func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
