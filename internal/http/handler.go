package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Feddakalkun/chess-platform/internal/domain"
	"github.com/Feddakalkun/chess-platform/internal/hub"
	"github.com/Feddakalkun/chess-platform/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	hub     *hub.Hub
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service, h *hub.Hub) *Handler {
	return &Handler{service: svc, hub: h}
}

// RegisterPublicRoutes registers the routes served next to the websocket
// endpoint.
func (h *Handler) RegisterPublicRoutes(e *echo.Echo) {
	e.GET("/v1/games/:game_id", h.GetGame)
	e.GET("/v1/games/:game_id/pgn", h.GetGamePGN)
	e.GET("/v1/games/:game_id/fen", h.GetGameFEN)
	e.GET("/v1/games/:game_id/moves", h.GetLegalMoves)
	e.GET("/v1/time-controls", h.ListTimeControls)

	e.GET("/health", h.Health)
}

// RegisterInternalRoutes registers the operator routes.
func (h *Handler) RegisterInternalRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/internal/stats", h.Stats)
	e.DELETE("/internal/games/:game_id", h.DeleteGame)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"connections": h.hub.GetConnectionCount(),
	})
}

// GetGame returns the snapshot of a game.
func (h *Handler) GetGame(c echo.Context) error {
	snap, err := h.service.Snapshot(c.Request().Context(), c.Param("game_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// GetGamePGN exports a game as PGN.
func (h *Handler) GetGamePGN(c echo.Context) error {
	pgn, err := h.service.ExportPGN(c.Request().Context(), c.Param("game_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="game-`+c.Param("game_id")+`.pgn"`)
	return c.Blob(http.StatusOK, "application/x-chess-pgn", []byte(pgn))
}

// GetGameFEN returns the current position of a game.
func (h *Handler) GetGameFEN(c echo.Context) error {
	fen, err := h.service.ExportFEN(c.Request().Context(), c.Param("game_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"fen": fen})
}

// GetLegalMoves lists the legal moves of the side to move, filtered by the
// optional from query parameter.
func (h *Handler) GetLegalMoves(c echo.Context) error {
	moves, err := h.service.LegalMoves(c.Request().Context(), c.Param("game_id"), c.QueryParam("from"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"moves": moves})
}

// ListTimeControls returns the time-control presets.
func (h *Handler) ListTimeControls(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"time_controls": domain.TimeControls})
}

// Stats returns game and connection counts.
func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"games":       h.service.Stats(c.Request().Context()),
		"connections": h.hub.GetConnectionCount(),
	})
}

// DeleteGame removes a game regardless of its phase.
func (h *Handler) DeleteGame(c echo.Context) error {
	if err := h.service.RemoveGame(c.Request().Context(), c.Param("game_id")); err != nil {
		return errorJSON(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func errorJSON(c echo.Context, err error) error {
	code := domain.CodeOf(err)
	message := err.Error()
	if code == domain.CodeInternal {
		message = "internal error"
	}
	return c.JSON(statusOf(err), map[string]string{"code": string(code), "error": message})
}

func statusOf(err error) int {
	var de *domain.Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}
	switch de.Code {
	case domain.CodeGameNotFound:
		return http.StatusNotFound
	case domain.CodeRoomCodeRequired, domain.CodeInvalidConfig, domain.CodeInvalidMessage:
		return http.StatusBadRequest
	case domain.CodePolicyDenied:
		return http.StatusForbidden
	case domain.CodeNoCapacity:
		return http.StatusServiceUnavailable
	}
	return http.StatusConflict
}
