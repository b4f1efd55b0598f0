package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"boardsync/board"
	"boardsync/domain"
	"boardsync/stream"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, b Board, auth Authenticator, hub *stream.Hub, logger *log.Logger) {
	e.Use(GzipRequestMiddleware())

	e.GET("/api/tasks", getTasks(b, auth))
	e.POST("/api/tasks", createTask(b, auth))
	e.PUT("/api/tasks/:id", updateTask(b, auth))
	e.DELETE("/api/tasks/:id", deleteTask(b, auth))
	e.POST("/api/tasks/:id/smart-assign", smartAssign(b, auth))
	e.GET("/api/activities", getActivities(b, auth))
	e.POST("/api/sync", postSync(b, auth, logger))
	e.GET("/api/stream", streamBoard(b, auth, hub))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getTasks(b Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		tasks, err := b.ListTasks(c.Request().Context())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, tasks)
	}
}

func getActivities(b Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		acts, err := b.LatestActivities(c.Request().Context())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, acts)
	}
}

type createTaskRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    domain.Priority `json:"priority"`
	Status      domain.Status   `json:"status"`
}

func createTask(b Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req createTaskRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
		}
		t, err := b.CreateTask(c.Request().Context(), userID, board.CreateTaskInput{
			Title:       req.Title,
			Description: req.Description,
			Priority:    req.Priority,
			Status:      req.Status,
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, t)
	}
}

func updateTask(b Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var upd domain.TaskUpdate
		if err := c.Bind(&upd); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
		}
		t, err := b.UpdateTask(c.Request().Context(), userID, c.Param("id"), upd)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

func deleteTask(b Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		if err := b.DeleteTask(c.Request().Context(), userID, c.Param("id")); err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "Task deleted successfully"})
	}
}

func smartAssign(b Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		t, err := b.SmartAssign(c.Request().Context(), userID, c.Param("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses. Version
// conflicts are handled by the sync handler; anything unrecognized is a
// generic 500 so store internals never leak to clients.
func writeError(c echo.Context, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Task not found"})
	}
	if errors.Is(err, domain.ErrNoEligibleUser) {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "No users available for assignment"})
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": ve.Msg})
	}
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Server error"})
}
