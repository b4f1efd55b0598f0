package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"boardsync/stream"
)

// boardSnapshot is the first event on every stream: the full task listing
// plus the recent activity window, so clients start from authoritative
// state before applying live events.
type boardSnapshot struct {
	Type       string `json:"type"`
	Tasks      any    `json:"tasks"`
	Activities any    `json:"activities"`
}

func streamBoard(b Board, auth Authenticator, hub *stream.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		// EventSource cannot set headers, so the token may ride on the
		// query string instead.
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			if token := c.QueryParam("token"); token != "" {
				authHeader = "Bearer " + token
			}
		}
		if _, err := auth.UserIDFromAuthHeader(authHeader); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		clientID := c.QueryParam("clientId")
		if clientID == "" {
			clientID = uuid.NewString()
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		ctx := c.Request().Context()

		// Subscribe before assembling the snapshot: commits that land
		// during the storage reads queue on the subscriber buffer and
		// drain right after the snapshot, so none are lost.
		sub := hub.Subscribe(clientID)
		defer hub.Unsubscribe(sub)

		tasks, err := b.ListTasks(ctx)
		if err != nil {
			c.Logger().Error(err)
			return err
		}
		acts, err := b.LatestActivities(ctx)
		if err != nil {
			c.Logger().Error(err)
			return err
		}
		snapshot, err := json.Marshal(boardSnapshot{Type: "board-snapshot", Tasks: tasks, Activities: acts})
		if err != nil {
			c.Logger().Error(err)
			return err
		}
		if err := writeSSE(c, snapshot); err != nil {
			return nil
		}
		flusher.Flush()

		for {
			select {
			case <-ctx.Done():
				return nil
			case data := <-sub.Events():
				if err := writeSSE(c, data); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

func writeSSE(c echo.Context, data []byte) error {
	if _, err := c.Response().Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := c.Response().Write(data); err != nil {
		return err
	}
	_, err := c.Response().Write([]byte("\n\n"))
	return err
}
