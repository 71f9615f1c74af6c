package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/forecast-digest/internal/forecast"
	"github.com/i474232898/forecast-digest/internal/store"
)

var validate = validator.New()

// Service is what the HTTP layer needs from the pipeline.
type Service interface {
	Run(ctx context.Context) forecast.Outcome
	PrimarySource() forecast.SourceID
	Tracker() *forecast.Tracker
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service Service, history forecast.HistoryStore, runTimeout time.Duration) {
	v1 := app.Group("/api/v1")

	v1.Get("/status", func(c *fiber.Ctx) error {
		marker, err := service.Tracker().Stored(c.UserContext(), service.PrimarySource())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load stored marker")
		}

		latest, err := history.LatestRun(c.UserContext())
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no runs recorded yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load run history")
		}

		return c.JSON(fiber.Map{
			"source":    service.PrimarySource(),
			"marker":    marker,
			"latestRun": latest,
		})
	})

	v1.Get("/runs", func(c *fiber.Ctx) error {
		var req rangeQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		runs, err := history.RunsBetween(c.UserContext(), req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no runs for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch run history")
		}

		return c.JSON(fiber.Map{
			"from": req.From,
			"to":   req.To,
			"runs": runs,
		})
	})

	v1.Post("/runs", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		out := service.Run(ctx)
		if errors.Is(out.Err, forecast.ErrRunInProgress) {
			return fiber.NewError(fiber.StatusConflict, out.Err.Error())
		}

		return c.JSON(out.Record())
	})
}

// rangeQuery holds query parameters for the history endpoint.
type rangeQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (q *rangeQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	q.From = from
	q.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
