package handler

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvaldes/gradgala/internal/repository"
)

func newThermoHandler(t *testing.T) (*ThermoHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	h := NewThermoHandler(
		repository.NewGraduateRepo(db),
		repository.NewEventRepo(db),
		repository.NewTicketRepo(db),
		repository.NewPaymentRepo(db),
	)
	return h, mock, func() { db.Close() }
}

func expectThermoProgress(mock sqlmock.Sqlmock, graduateID uint64, total, paid uint64) {
	mock.ExpectQuery("FROM graduates WHERE id = \\?").
		WithArgs(graduateID).
		WillReturnRows(graduateRows(graduateID, 1))
	mock.ExpectQuery("FROM events WHERE id = \\?").
		WithArgs(uint64(1)).
		WillReturnRows(eventRows(1))
	mock.ExpectQuery("FROM ticket_orders WHERE graduate_id = \\?").
		WithArgs(graduateID).
		WillReturnRows(ticketOrderRows(21, graduateID, 4, 250000, total))
	mock.ExpectQuery("COALESCE\\(SUM\\(amount_cents\\), 0\\)").
		WithArgs(graduateID).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(paid))
}

func TestThermoStatusLockedBelowThreshold(t *testing.T) {
	h, mock, done := newThermoHandler(t)
	defer done()

	// 30% paid against a 60% threshold.
	expectThermoProgress(mock, 7, 1000000, 300000)

	c, rec := jsonRequest(http.MethodGet, "/v1/graduates/me/thermo", "", 7)
	require.NoError(t, h.Status(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"is_unlocked":false`)
	assert.Contains(t, body, `"progress_percent":30`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomizeLockedBelowThreshold(t *testing.T) {
	h, mock, done := newThermoHandler(t)
	defer done()

	expectThermoProgress(mock, 7, 1000000, 300000)

	c, rec := jsonRequest(http.MethodPost, "/v1/graduates/me/thermo", `{"prefix":"Ing.","name":"Ana"}`, 7)
	require.NoError(t, h.Customize(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "precondition_failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomizeAtThreshold(t *testing.T) {
	h, mock, done := newThermoHandler(t)
	defer done()

	// Exactly 60% paid meets the threshold.
	expectThermoProgress(mock, 7, 1000000, 600000)
	mock.ExpectExec("UPDATE graduates SET thermo_prefix = \\?, thermo_name = \\?").
		WithArgs("Ing.", "Ana", "completed", uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, rec := jsonRequest(http.MethodPost, "/v1/graduates/me/thermo", `{"prefix":"Ing.","name":"Ana"}`, 7)
	require.NoError(t, h.Customize(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"full_text":"Ing. Ana"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomizeRejectsLongName(t *testing.T) {
	h, _, done := newThermoHandler(t)
	defer done()

	c, rec := jsonRequest(http.MethodPost, "/v1/graduates/me/thermo",
		`{"name":"Maximiliano Aguirre"}`, 7)
	require.NoError(t, h.Customize(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "14 characters")
}

func TestCustomizeRejectsUnknownPrefix(t *testing.T) {
	h, _, done := newThermoHandler(t)
	defer done()

	c, rec := jsonRequest(http.MethodPost, "/v1/graduates/me/thermo",
		`{"prefix":"Prof.","name":"Ana"}`, 7)
	require.NoError(t, h.Customize(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid prefix")
}

func TestCustomizeAccentedNameCountsRunes(t *testing.T) {
	h, mock, done := newThermoHandler(t)
	defer done()

	expectThermoProgress(mock, 7, 1000000, 1000000)
	// 14 runes exactly, more than 14 bytes.
	mock.ExpectExec("UPDATE graduates SET thermo_prefix = \\?, thermo_name = \\?").
		WithArgs("", "María Martínez", "completed", uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, rec := jsonRequest(http.MethodPost, "/v1/graduates/me/thermo", `{"name":"María Martínez"}`, 7)
	require.NoError(t, h.Customize(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
