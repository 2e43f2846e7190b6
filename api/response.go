package api

import (
	"github.com/labstack/echo/v4"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	Type    string `json:"type,omitempty"`
}

// errorEnvelope has no data member.
type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func respondTyped(c echo.Context, status int, message, typ string, data any) error {
	return c.JSON(status, envelope{Success: true, Message: message, Data: data, Type: typ})
}

func respondError(c echo.Context, status int, message string) error {
	return c.JSON(status, errorEnvelope{Error: true, Message: message})
}
