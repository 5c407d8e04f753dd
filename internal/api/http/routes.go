package httpapi

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/klimakarte/station-map/internal/directory"
	"github.com/klimakarte/station-map/internal/search"
	"github.com/klimakarte/station-map/internal/selection"
	"github.com/klimakarte/station-map/internal/stations"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, svc *stations.Service, dir *directory.Directory, coord *selection.Coordinator) {
	v1 := app.Group("/api/v1")

	v1.Get("/stations", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"generation": dir.Generation(),
			"stations":   dir.All(),
		})
	})

	v1.Get("/stations/search", func(c *fiber.Ctx) error {
		req, err := parseSearchQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		results := search.Rank(req.Query, dir.All())
		return c.JSON(fiber.Map{
			"query":   req.Query,
			"results": results,
		})
	})

	v1.Get("/stations/:id", func(c *fiber.Ctx) error {
		record, ok := dir.GetByID(c.Params("id"))
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no station for id")
		}
		return c.JSON(record)
	})

	v1.Get("/cities", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"cities": svc.Cities(),
		})
	})

	// Markers are the common projection the map overlays consume; the
	// stations layer and the cities layer stay distinct entities behind
	// the shared Locatable capability.
	v1.Get("/markers", func(c *fiber.Ctx) error {
		layer := c.Query("layer", "stations")

		var items []stations.Locatable
		switch layer {
		case "stations":
			for _, r := range dir.All() {
				items = append(items, r)
			}
		case "cities":
			for _, city := range svc.Cities() {
				items = append(items, city)
			}
		default:
			return fiber.NewError(fiber.StatusBadRequest, "layer must be stations or cities")
		}

		return c.JSON(fiber.Map{
			"layer":   layer,
			"markers": markersFrom(items),
		})
	})

	v1.Get("/selection", func(c *fiber.Ctx) error {
		record, ok := coord.Current()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no station selected")
		}
		return c.JSON(fiber.Map{
			"station": record,
			// Pre-rendered panel text; absent readings show as N/A.
			"summary": record.ReadingsSummary(),
		})
	})

	v1.Put("/selection", func(c *fiber.Ctx) error {
		var req selectRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		record, err := coord.Select(req.StationID)
		if err != nil {
			if errors.Is(err, selection.ErrStaleSelection) {
				return fiber.NewError(fiber.StatusConflict, "station id not in current directory generation")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to select station")
		}

		return c.JSON(record)
	})

	v1.Delete("/selection", func(c *fiber.Ctx) error {
		coord.Clear()
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/selection/events", func(c *fiber.Ctx) error {
		return streamSelectionEvents(c, coord)
	})

	v1.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"stations":   dir.Len(),
			"generation": dir.Generation(),
			"last_error": svc.LastError(),
		})
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		if err := svc.LoadSnapshot(c.Context()); err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(fiber.Map{
			"stations":   dir.Len(),
			"generation": dir.Generation(),
		})
	})
}

// searchQuery holds query parameters for the search endpoint.
type searchQuery struct {
	Query string `validate:"required,max=100"`
}

func parseSearchQuery(c *fiber.Ctx) (searchQuery, error) {
	q := searchQuery{Query: c.Query("q")}

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	if strings.TrimSpace(q.Query) == "" {
		return q, errors.New("q must not be blank")
	}

	return q, nil
}

// selectRequest is the PUT /selection body.
type selectRequest struct {
	StationID string `json:"station_id" validate:"required"`
}

// marker is the minimal map-marker projection of a Locatable.
type marker struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func markersFrom(items []stations.Locatable) []marker {
	markers := make([]marker, 0, len(items))
	for _, item := range items {
		lat, lon := item.Coordinates()
		markers = append(markers, marker{
			ID:        item.ID(),
			Name:      item.DisplayName(),
			Latitude:  lat,
			Longitude: lon,
		})
	}
	return markers
}

// streamSelectionEvents serves selection changes as server-sent events. The
// current selection is emitted immediately so a client does not have to
// wait for the next change to synchronize.
func streamSelectionEvents(c *fiber.Ctx, coord *selection.Coordinator) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	subscriberID := fmt.Sprintf("%s-%d", c.IP(), time.Now().UnixNano())
	events := coord.Subscribe(subscriberID)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer coord.Unsubscribe(subscriberID)

		var initial selection.Event
		if record, ok := coord.Current(); ok {
			initial.Selected = &record
		}
		if err := writeEvent(w, initial); err != nil {
			return
		}

		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := writeEvent(w, ev); err != nil {
					return
				}
			case <-keepalive.C:
				// Comment line keeps the connection alive and
				// detects a gone client.
				if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

func writeEvent(w *bufio.Writer, ev selection.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}
