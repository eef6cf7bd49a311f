package utils

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// userIDHeader carries the authenticated actor's identity, set by the
// upstream gateway. The pipeline itself does not authenticate.
const userIDHeader = "X-User-ID"

func GetRequestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

func GetIPAddress(c echo.Context) string {
	return c.Request().RemoteAddr
}

// GetUserIDFromRequest parses the gateway-supplied actor id.
func GetUserIDFromRequest(c echo.Context) (uuid.UUID, error) {
	raw := c.Request().Header.Get(userIDHeader)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("missing %s header", userIDHeader)
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s header: %w", userIDHeader, err)
	}
	return userID, nil
}
