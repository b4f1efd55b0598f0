package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"boardsync/domain"
)

const syncMaxBodySize = 64 * 1024 // 64 KiB

// clientIDHeader carries the caller's stream identity so conflict events
// can be routed back to the connection that raised them.
const clientIDHeader = "X-Client-ID"

// Message types accepted on the sync endpoint.
const (
	msgUpdateTask      = "update-task"
	msgStatusChange    = "status-change"
	msgDeleteTask      = "delete-task"
	msgResolveConflict = "resolve-conflict"
)

type syncMessage struct {
	Type       string             `json:"type"`
	ClientID   string             `json:"clientId,omitempty"`
	TaskID     string             `json:"taskId"`
	Updates    *domain.TaskUpdate `json:"updates,omitempty"`
	Version    int64              `json:"version,omitempty"`
	NewStatus  domain.Status      `json:"newStatus,omitempty"`
	Resolution string             `json:"resolution,omitempty"`
}

// postSync is the version-aware mutation path mirroring the messages
// clients used to send over the socket: update-task carries the client's
// version and can come back as a conflict; status-change and delete-task
// are last-write-wins; resolve-conflict applies a pending decision.
func postSync(b Board, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newSyncMetrics(logger)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		lr := io.LimitReader(c.Request().Body, syncMaxBodySize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()
		var msg syncMessage
		if decodeErr := dec.Decode(&msg); decodeErr != nil {
			metrics.SetErrorStage("decode")
			err = c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
			return err
		}
		if msg.TaskID == "" {
			metrics.SetErrorStage("validate")
			err = c.JSON(http.StatusBadRequest, echo.Map{"message": "taskId is required"})
			return err
		}
		clientID := c.Request().Header.Get(clientIDHeader)
		if clientID == "" {
			clientID = msg.ClientID
		}
		metrics.SetMessageType(msg.Type)

		ctx := c.Request().Context()
		commitStart := time.Now()
		defer func() {
			metrics.ObserveCommit(time.Since(commitStart))
		}()

		switch msg.Type {
		case msgUpdateTask:
			if msg.Updates == nil {
				metrics.SetErrorStage("validate")
				err = c.JSON(http.StatusBadRequest, echo.Map{"message": "updates are required"})
				return err
			}
			t, updErr := b.SyncUpdate(ctx, userID, clientID, msg.TaskID, *msg.Updates, msg.Version)
			var conflict *domain.VersionConflictError
			if errors.As(updErr, &conflict) {
				metrics.SetConflict(true)
				err = c.JSON(http.StatusConflict, domain.ConflictPayload{
					TaskID:        msg.TaskID,
					ServerVersion: conflict.ServerVersion,
					ClientVersion: msg.Version,
					ServerTask:    conflict.ServerTask,
					ClientUpdates: *msg.Updates,
				})
				return err
			}
			if updErr != nil {
				err = writeError(c, updErr)
				return err
			}
			err = c.JSON(http.StatusOK, t)
			return err

		case msgStatusChange:
			t, moveErr := b.MoveTask(ctx, userID, msg.TaskID, msg.NewStatus)
			if moveErr != nil {
				err = writeError(c, moveErr)
				return err
			}
			err = c.JSON(http.StatusOK, t)
			return err

		case msgDeleteTask:
			if delErr := b.DeleteTask(ctx, userID, msg.TaskID); delErr != nil {
				err = writeError(c, delErr)
				return err
			}
			err = c.JSON(http.StatusOK, echo.Map{"message": "Task deleted successfully"})
			return err

		case msgResolveConflict:
			t, resErr := b.ResolveConflict(ctx, userID, msg.TaskID, msg.Resolution, msg.Updates)
			if resErr != nil {
				err = writeError(c, resErr)
				return err
			}
			if t == nil {
				err = c.JSON(http.StatusOK, echo.Map{"message": "Kept current version"})
				return err
			}
			err = c.JSON(http.StatusOK, t)
			return err

		default:
			metrics.SetErrorStage("unknown_type")
			err = c.JSON(http.StatusBadRequest, echo.Map{"message": "unknown message type"})
			return err
		}
	}
}
