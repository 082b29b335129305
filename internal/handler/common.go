// Package handler contains the HTTP handlers.  Handlers bind and validate
// request bodies, own transaction boundaries for multi-step writes, and
// translate repository sentinel errors into the JSON error taxonomy
// {"error": <kind>, "message": <text>}.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// validate is the shared validator instance for request DTOs.  validator.New
// caches struct metadata, so one instance serves every handler.
var validate = validator.New()

// getGraduateID extracts the authenticated graduate's id from the context.
// JWT numeric claims decode as float64, so several representations are
// accepted.
func getGraduateID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses a numeric path parameter, rejecting zero.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// Error kinds of the JSON error taxonomy.
const (
	kindBadRequest         = "bad_request"
	kindUnauthorized       = "unauthorized"
	kindForbidden          = "forbidden"
	kindNotFound           = "not_found"
	kindConflict           = "conflict"
	kindPreconditionFailed = "precondition_failed"
	kindInternal           = "internal"
)

func apiError(c echo.Context, status int, kind, message string) error {
	return c.JSON(status, echo.Map{"error": kind, "message": message})
}

func internalError(c echo.Context) error {
	return apiError(c, http.StatusInternalServerError, kindInternal, "database error")
}

func unauthorized(c echo.Context) error {
	return apiError(c, http.StatusUnauthorized, kindUnauthorized, "unauthorized")
}
