package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Hasinur3813/task-manager-server/domain"
)

const healthzTimeout = 2 * time.Second

var (
	errTaskNotFound  = echo.NewHTTPError(http.StatusNotFound, "task not found")
	errInvalidTaskID = echo.NewHTTPError(http.StatusBadRequest, "invalid task id")
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, guard LoginGuard, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	e.GET("/", home)
	e.GET("/healthz", healthz(store))
	e.POST("/auth/login", login(store, guard, logger))
	e.POST("/add-task", addTask(store, logger))
	e.GET("/tasks/:email", listTasks(store, logger))
	e.DELETE("/tasks/delete/:id", deleteTask(store, logger))
	e.PUT("/tasks/update/:id", updateTask(store, logger))
	e.PUT("/tasks/dnd/:_id", moveTask(store, logger))
	e.GET("/tasks/single-task/:id", getTask(store, logger))
}

func home(c echo.Context) error {
	return c.String(http.StatusOK, "Task manager homepage")
}

func healthz(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthzTimeout)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			c.Logger().Warnf("healthz: %v", err)
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	}
}

func login(store Storage, guard LoginGuard, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var user domain.User
		if err := decodeBody(c, &user); err != nil {
			return err
		}
		if user.Email == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "email is required")
		}
		user.ID = primitive.NilObjectID

		ctx := c.Request().Context()
		release, err := lockLogin(ctx, guard, user.Email)
		if err != nil {
			logger.WithError(err).WithField("email", user.Email).Warn("login lock unavailable; proceeding without it")
		}
		if release != nil {
			defer release()
		}

		existing, err := store.FindUserByEmail(ctx, user.Email)
		if err != nil {
			return storeFailure(c, logger, err, "Failed to login user")
		}
		if existing != nil {
			return respondTyped(c, http.StatusOK, "User added successfully", "existing", existing)
		}

		res, err := store.InsertUser(ctx, user)
		if err != nil {
			return storeFailure(c, logger, err, "Failed to login user")
		}
		return respondTyped(c, http.StatusCreated, "User added successfully", "new", res)
	}
}

func addTask(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in domain.TaskInput
		if err := decodeBody(c, &in); err != nil {
			return err
		}
		res, err := store.InsertTask(c.Request().Context(), in)
		if err != nil {
			return storeFailure(c, logger, err, "Failed to add task")
		}
		return respond(c, http.StatusCreated, "Task added successfully", res)
	}
}

func listTasks(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		parent := otel.GetTextMapPropagator().Extract(c.Request().Context(),
			propagation.HeaderCarrier(c.Request().Header))
		metrics, ctx := newListRequestMetrics(parent, logger)
		c.SetRequest(c.Request().WithContext(ctx))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		email := c.Param("email")
		if unescaped, uerr := url.PathUnescape(email); uerr == nil {
			email = unescaped
		}

		fetchStart := time.Now()
		groups, fetchErr := store.FetchTaskGroups(ctx, email)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			err = storeFailure(c, logger, fetchErr, "Failed to retrieve tasks")
			return err
		}

		board, dropped := domain.Board(groups)
		if dropped > 0 {
			logger.WithFields(log.Fields{"email": email, "dropped": dropped}).
				Warn("tasks outside board categories left out of listing")
		}
		returned := 0
		for _, g := range board {
			returned += len(g.Tasks)
		}
		metrics.SetTasksReturned(returned)
		metrics.SetTasksDropped(dropped)

		encodeStart := time.Now()
		err = respond(c, http.StatusOK, "Tasks retrieved successfully", board)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func deleteTask(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskID(c.Param("id"))
		if err != nil {
			return err
		}
		res, err := store.DeleteTask(c.Request().Context(), id)
		if err != nil {
			return storeFailure(c, logger, err, "Failed to delete task")
		}
		return respond(c, http.StatusOK, "Task deleted successfully", res)
	}
}

func updateTask(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := c.Param("id")
		if raw == "" {
			return errTaskNotFound
		}
		var in domain.TaskInput
		if err := decodeBody(c, &in); err != nil {
			return err
		}
		if in.Empty() {
			return errTaskNotFound
		}
		id, err := taskID(raw)
		if err != nil {
			return err
		}
		task, err := store.UpdateTask(c.Request().Context(), id, in)
		if err != nil {
			return storeFailure(c, logger, err, "Failed to update task")
		}
		return respond(c, http.StatusCreated, "Successfully updated the task", taskData(task))
	}
}

func moveTask(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := c.Param("_id")
		if raw == "" {
			return errTaskNotFound
		}
		var in domain.TaskInput
		if err := decodeBody(c, &in); err != nil {
			return err
		}
		if in.Empty() {
			return errTaskNotFound
		}
		if !in.HasCategory || in.Category == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "category is required")
		}
		id, err := taskID(raw)
		if err != nil {
			return err
		}
		task, err := store.MoveTask(c.Request().Context(), id, in.Category)
		if err != nil {
			return storeFailure(c, logger, err, "Failed to update task")
		}
		return respond(c, http.StatusCreated, "Successfully updated the task", taskData(task))
	}
}

func getTask(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := c.Param("id")
		if raw == "" {
			return errTaskNotFound
		}
		id, err := taskID(raw)
		if err != nil {
			return err
		}
		task, err := store.FetchTask(c.Request().Context(), id)
		if err != nil {
			return storeFailure(c, logger, err, "Failed to get task")
		}
		return respond(c, http.StatusCreated, "Successfully got the task", taskData(task))
	}
}

// taskID parses a path id. Empty ids are reported as a missing task.
func taskID(raw string) (primitive.ObjectID, error) {
	if raw == "" {
		return primitive.NilObjectID, errTaskNotFound
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, errInvalidTaskID
	}
	return id, nil
}

// taskData keeps a missing task rendering as JSON null.
func taskData(task *domain.Task) any {
	if task == nil {
		return nil
	}
	return task
}

// decodeBody decodes the request body into v through the server's JSON
// serializer.
func decodeBody(c echo.Context, v json.Unmarshaler) error {
	return c.Echo().JSONSerializer.Deserialize(c, v)
}

func storeFailure(c echo.Context, logger *log.Logger, err error, message string) error {
	logger.WithError(err).WithFields(log.Fields{
		"route":      c.Path(),
		"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
	}).Error(message)
	return respondError(c, http.StatusInternalServerError, message)
}
