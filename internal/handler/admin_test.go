package handler

import (
	"database/sql"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvaldes/gradgala/internal/repository"
)

func newAdminHandler(t *testing.T) (*AdminHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	h := NewAdminHandler(
		repository.NewEventRepo(db),
		repository.NewTableRepo(db),
		repository.NewSelectionRepo(db),
	)
	return h, mock, func() { db.Close() }
}

func TestCreateEventRejectsInitialAbovePrice(t *testing.T) {
	h, _, done := newAdminHandler(t)
	defer done()

	body := `{"name":"Gala 2026","date":"2026-12-12T20:00:00Z","venue":"Salon Diamante",` +
		`"capacity":500,"ticket_price_cents":250000,"initial_payment_cents":300000,` +
		`"months_duration":10,"thermo_threshold":60,"meals_deadline":"2026-11-12T00:00:00Z"}`
	c, rec := jsonRequest(http.MethodPost, "/v1/admin/events", body, 1)
	require.NoError(t, h.CreateEvent(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "initial payment cannot exceed")
}

func TestCreateEventPersists(t *testing.T) {
	h, mock, done := newAdminHandler(t)
	defer done()

	mock.ExpectExec("INSERT INTO events").
		WillReturnResult(sqlmock.NewResult(3, 1))

	body := `{"name":"Gala 2026","date":"2026-12-12T20:00:00Z","venue":"Salon Diamante",` +
		`"capacity":500,"ticket_price_cents":250000,"initial_payment_cents":50000,` +
		`"months_duration":10,"thermo_threshold":60,"meals_deadline":"2026-11-12T00:00:00Z"}`
	c, rec := jsonRequest(http.MethodPost, "/v1/admin/events", body, 1)
	require.NoError(t, h.CreateEvent(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":3`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTablesBuildsGrid(t *testing.T) {
	h, mock, done := newAdminHandler(t)
	defer done()

	mock.ExpectQuery("FROM events WHERE id = \\?").
		WithArgs(uint64(1)).
		WillReturnRows(eventRows(1))
	// 3 tables, 2 per row: (0,0), (120,0), (0,120).
	mock.ExpectExec("INSERT INTO venue_tables").
		WithArgs(
			uint64(1), "Mesa 1", uint32(10), "available", int32(0), int32(0),
			uint64(1), "Mesa 2", uint32(10), "available", int32(120), int32(0),
			uint64(1), "Mesa 3", uint32(10), "available", int32(0), int32(120),
		).
		WillReturnResult(sqlmock.NewResult(1, 3))

	c, rec := jsonRequest(http.MethodPost, "/v1/admin/events/1/tables",
		`{"count":3,"capacity":10,"per_row":2}`, 1)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.CreateTables(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"created":3`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTableStatusUnknownTable(t *testing.T) {
	h, mock, done := newAdminHandler(t)
	defer done()

	mock.ExpectExec("UPDATE venue_tables SET status = \\?").
		WithArgs("blocked", uint64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM venue_tables WHERE id = \\?").
		WithArgs(uint64(99)).
		WillReturnError(sql.ErrNoRows)

	c, rec := jsonRequest(http.MethodPatch, "/v1/admin/tables/99/status", `{"status":"blocked"}`, 1)
	c.SetParamNames("id")
	c.SetParamValues("99")
	require.NoError(t, h.UpdateTableStatus(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTableStatusNoopWhenUnchanged(t *testing.T) {
	h, mock, done := newAdminHandler(t)
	defer done()

	mock.ExpectExec("UPDATE venue_tables SET status = \\?").
		WithArgs("blocked", uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM venue_tables WHERE id = \\?").
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	c, rec := jsonRequest(http.MethodPatch, "/v1/admin/tables/5/status", `{"status":"blocked"}`, 1)
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.UpdateTableStatus(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTableStatusRejectsUnknownValue(t *testing.T) {
	h, _, done := newAdminHandler(t)
	defer done()

	c, rec := jsonRequest(http.MethodPatch, "/v1/admin/tables/5/status", `{"status":"retired"}`, 1)
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.UpdateTableStatus(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "available or blocked")
}
