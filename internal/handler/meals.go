package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dvaldes/gradgala/internal/repository"
)

// MealsHandler serves meal selection for a graduate's party.  Choices freeze
// at the event's meals deadline so the caterer gets a final count.
type MealsHandler struct {
	Guests    *repository.GuestRepo
	Graduates *repository.GraduateRepo
	Events    *repository.EventRepo
}

func NewMealsHandler(guests *repository.GuestRepo, graduates *repository.GraduateRepo, events *repository.EventRepo) *MealsHandler {
	if guests == nil || graduates == nil || events == nil {
		panic("nil repository passed to NewMealsHandler")
	}
	return &MealsHandler{Guests: guests, Graduates: graduates, Events: events}
}

// Overview handles GET /v1/graduates/me/meals: the guest list with current
// choices, per-type counts, and whether the deadline still allows edits.
func (h *MealsHandler) Overview(c echo.Context) error {
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
	guests, err := h.Guests.ListByGraduate(ctx, graduateID)
	if err != nil {
		return internalError(c)
	}
	traditional, vegan, err := h.Guests.CountMealsByGraduate(ctx, graduateID)
	if err != nil {
		return internalError(c)
	}

	deadlinePassed := time.Now().UTC().After(event.MealsDeadline)

	type guestView struct {
		ID       uint64 `json:"id"`
		FullName string `json:"full_name"`
		Type     string `json:"type"`
		MealType string `json:"meal_type"`
	}
	views := make([]guestView, 0, len(guests))
	for _, gu := range guests {
		views = append(views, guestView{ID: gu.ID, FullName: gu.FullName, Type: gu.Type, MealType: gu.MealType})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"guests": views,
		"meal_counts": echo.Map{
			"traditional": traditional,
			"vegan":       vegan,
		},
		"deadline":           event.MealsDeadline.Format(time.RFC3339),
		"is_deadline_passed": deadlinePassed,
		"can_edit":           !deadlinePassed,
	})
}

type updateMealRequest struct {
	MealType string `json:"meal_type" validate:"required,oneof=traditional vegan"`
}

// UpdateMeal handles PATCH /v1/graduates/me/meals/:id, changing one guest's
// meal choice.  The first successful change marks the meals step completed.
func (h *MealsHandler) UpdateMeal(c echo.Context) error {
	graduateID, err := getGraduateID(c)
	if err != nil {
		return unauthorized(c)
	}
	guestID, err := pathID(c, "id")
	if err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid guest id")
	}
	var req updateMealRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "meal_type must be traditional or vegan")
	}

	ctx := c.Request().Context()
	if _, err := h.Guests.GetForGraduate(ctx, guestID, graduateID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apiError(c, http.StatusNotFound, kindNotFound, "guest not found")
		}
		return internalError(c)
	}

	g, err := h.Graduates.GetByID(ctx, graduateID)
	if err != nil {
		return internalError(c)
	}
	event, err := h.Events.GetByID(ctx, g.EventID)
	if err != nil {
		return internalError(c)
	}
	if time.Now().UTC().After(event.MealsDeadline) {
		return apiError(c, http.StatusBadRequest, kindPreconditionFailed, "deadline for meal selection has passed")
	}

	if err := h.Guests.Update(ctx, guestID, nil, &req.MealType); err != nil {
		return internalError(c)
	}
	if err := h.Graduates.SetMealsCompleted(ctx, graduateID); err != nil {
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
