package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/opendata-tw/roadwatch/internal/aggregate"
	"github.com/opendata-tw/roadwatch/internal/pager"
	"github.com/opendata-tw/roadwatch/internal/present"
	"github.com/opendata-tw/roadwatch/models"
)

// ownerHeader identifies the calling user. The core has no notion of
// chat-platform identity; whatever sits in front supplies an opaque ID.
const ownerHeader = "X-Owner-ID"

// Handler serves the camera search and session navigation endpoints.
type Handler struct {
	Agg      *aggregate.Aggregator
	Store    pager.Store
	PageSize int
	TTL      time.Duration
}

// Register mounts the API routes.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/cameras", h.search)
	g.GET("/sessions/:id", h.show)
	g.POST("/sessions/:id/next", h.navigate((*pager.PageState).NextPage))
	g.POST("/sessions/:id/prev", h.navigate((*pager.PageState).PrevPage))
	g.POST("/sessions/:id/random", h.random)
	g.POST("/sessions/:id/refresh", h.refresh)
	g.DELETE("/sessions/:id", h.end)
}

type pageResponse struct {
	SessionID   string          `json:"session_id"`
	Cards       []models.Card   `json:"cards"`
	Meta        models.PageMeta `json:"meta"`
	Unavailable []string        `json:"unavailable,omitempty"`
}

func owner(c echo.Context) (string, error) {
	id := c.Request().Header.Get(ownerHeader)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "missing "+ownerHeader+" header")
	}
	return id, nil
}

func (h *Handler) search(c echo.Context) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}
	q := models.Query{
		FreeText:  c.QueryParam("q"),
		County:    c.QueryParam("county"),
		Type:      c.QueryParam("type"),
		Source:    c.QueryParam("source"),
		Selection: models.SelectMerge,
	}
	if q.Source != "" {
		q.Selection = models.SelectSingle
	}

	res, err := h.Agg.Run(c.Request().Context(), q)
	if err != nil {
		return err
	}
	state := pager.New(ownerID, q, res.Records, h.PageSize, h.TTL)
	if err := h.Store.Save(c.Request().Context(), state); err != nil {
		return err
	}
	records, meta, err := state.Page(ownerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pageResponse{
		SessionID:   state.ID,
		Cards:       present.Cards(records, time.Now()),
		Meta:        meta,
		Unavailable: res.Unavailable,
	})
}

func (h *Handler) show(c echo.Context) error {
	ownerID, state, err := h.load(c)
	if err != nil {
		return err
	}
	records, meta, err := state.Page(ownerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pageResponse{SessionID: state.ID, Cards: present.Cards(records, time.Now()), Meta: meta})
}

// navigate wraps the clamped page moves, persisting the new position.
func (h *Handler) navigate(op func(*pager.PageState, string) ([]models.Record, models.PageMeta, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		ownerID, state, err := h.load(c)
		if err != nil {
			return err
		}
		records, meta, err := op(state, ownerID)
		if err != nil {
			return err
		}
		if err := h.Store.Save(c.Request().Context(), state); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, pageResponse{SessionID: state.ID, Cards: present.Cards(records, time.Now()), Meta: meta})
	}
}

func (h *Handler) random(c echo.Context) error {
	ownerID, state, err := h.load(c)
	if err != nil {
		return err
	}
	record, err := state.PickRandom(ownerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, present.Card(record, time.Now()))
}

func (h *Handler) refresh(c echo.Context) error {
	ownerID, state, err := h.load(c)
	if err != nil {
		return err
	}
	run := func(ctx context.Context, q models.Query) ([]models.Record, error) {
		res, err := h.Agg.Run(ctx, q)
		if err != nil {
			return nil, err
		}
		return res.Records, nil
	}
	if err := state.Refresh(c.Request().Context(), ownerID, run); err != nil {
		return err
	}
	if err := h.Store.Save(c.Request().Context(), state); err != nil {
		return err
	}
	records, meta, err := state.Page(ownerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pageResponse{SessionID: state.ID, Cards: present.Cards(records, time.Now()), Meta: meta})
}

func (h *Handler) end(c echo.Context) error {
	ownerID, state, err := h.load(c)
	if err != nil {
		return err
	}
	if state.OwnerID != ownerID {
		return &pager.NotOwnerError{OwnerID: state.OwnerID, ActorID: ownerID}
	}
	if err := h.Store.Delete(c.Request().Context(), state.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) load(c echo.Context) (string, *pager.PageState, error) {
	ownerID, err := owner(c)
	if err != nil {
		return "", nil, err
	}
	state, err := h.Store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return "", nil, err
	}
	return ownerID, state, nil
}
