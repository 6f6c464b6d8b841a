package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tutor-marketplace/internal/model"
)

// PointsAPI is implemented by *service.PointsService.
type PointsAPI interface {
	Balance(ctx context.Context, userID uint64) (model.PointsBalance, error)
	LevelStats(ctx context.Context) (map[string]int, error)
	Leaderboard(ctx context.Context, page, limit int) ([]model.PointsBalance, error)
}

type PointsHandler struct {
	Points PointsAPI
}

func NewPointsHandler(p PointsAPI) *PointsHandler {
	return &PointsHandler{Points: p}
}

func (h *PointsHandler) Mine(c echo.Context) error {
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	bal, err := h.Points.Balance(ctx, caller(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bal)
}

// LevelStats counts users per level; levels nobody reached report 0.
func (h *PointsHandler) LevelStats(c echo.Context) error {
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	counts, err := h.Points.LevelStats(ctx)
	if err != nil {
		return err
	}
	out := make(map[string]int, len(model.Levels))
	for _, lvl := range model.Levels {
		out[lvl] = counts[lvl]
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PointsHandler) AllUsers(c echo.Context) error {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	items, err := h.Points.Leaderboard(ctx, page, limit)
	if err != nil {
		return err
	}
	if items == nil {
		items = []model.PointsBalance{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "page": page})
}
