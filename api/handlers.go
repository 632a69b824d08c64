// Package api exposes the board CRUD surface over HTTP. It drives the same
// mutation operations as the socket layer, without the fan-out step.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/board"
	"taskboard-api/domain"
)

const requestBodyMaxSize = 64 * 1024 // 64 KiB

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, boards BoardService, auth Authenticator, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	e.Use(GzipRequestMiddleware())

	h := &handlers{boards: boards, auth: auth, log: logger}

	e.GET("/healthz", h.healthz)
	e.GET("/api/board", h.listBoards)
	e.GET("/api/board/:boardId", h.getBoard)
	e.POST("/api/board", h.createBoard)
	e.PUT("/api/board/:boardId", h.updateBoard)
	e.DELETE("/api/board/:boardId", h.deleteBoard)
	e.POST("/api/board/:boardId/group", h.addGroup)
	e.PUT("/api/board/:boardId/group/:groupId", h.updateGroup)
	e.DELETE("/api/board/:boardId/group/:groupId", h.deleteGroup)
	e.PUT("/api/board/:boardId/group-move", h.moveGroup)
	e.POST("/api/board/:boardId/group/:groupId/task", h.addTask)
	e.PUT("/api/board/:boardId/task/:taskId", h.updateTask)
	e.DELETE("/api/board/:boardId/group/:groupId/task/:taskId", h.deleteTask)
	e.PUT("/api/board/:boardId/move-task", h.moveTask)
	e.POST("/api/board/:boardId/activity", h.addActivity)
}

type handlers struct {
	boards BoardService
	auth   Authenticator
	log    *log.Logger
}

// identityCtx authenticates the request and returns a context carrying the
// acting identity.
func (h *handlers) identityCtx(c echo.Context) (context.Context, error) {
	identity, err := h.auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return nil, err
	}
	return domain.WithIdentity(c.Request().Context(), identity), nil
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// respondError maps service errors onto HTTP statuses without leaking
// internals.
func (h *handlers) respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, board.ErrBoardNotFound):
		return c.String(http.StatusNotFound, "board not found")
	case errors.Is(err, board.ErrGroupNotFound):
		return c.String(http.StatusNotFound, "group not found")
	case errors.Is(err, board.ErrTaskNotFound):
		return c.String(http.StatusNotFound, "task not found")
	case errors.Is(err, board.ErrIndexOutOfRange):
		return c.String(http.StatusBadRequest, "index out of range")
	default:
		h.log.WithField("path", c.Path()).Errorf("request failed: %v", err)
		return c.String(http.StatusInternalServerError, "internal error")
	}
}

func (h *handlers) healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (h *handlers) listBoards(c echo.Context) error {
	ctx, err := h.identityCtx(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	boards, err := h.boards.List(ctx)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, boards)
}

func (h *handlers) getBoard(c echo.Context) error {
	ctx, err := h.identityCtx(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	b, err := h.boards.Get(ctx, c.Param("boardId"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *handlers) createBoard(c echo.Context) error {
	ctx, err := h.identityCtx(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var draft domain.Board
	if err := decodeBody(c, &draft); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	b, err := h.boards.Create(ctx, draft)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *handlers) updateBoard(c echo.Context) error {
	ctx, err := h.identityCtx(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var patch domain.BoardPatch
	if err := decodeBody(c, &patch); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	b, err := h.boards.Update(ctx, c.Param("boardId"), patch)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *handlers) deleteBoard(c echo.Context) error {
	ctx, err := h.identityCtx(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	if err := h.boards.Delete(ctx, c.Param("boardId")); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) addGroup(c echo.Context) error {
	ctx, err := h.identityCtx(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var draft domain.Group
	if err := decodeBody(c, &draft); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	b, _, err := h.boards.AddGroup(ctx, c.Param("boardId"), draft)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *handlers) updateGroup(c echo.Context) error {
	ctx, err := h.identityCtx(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var patch domain.GroupPatch
	if err := decodeBody(c, &patch); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	b, _, err := h.boards.UpdateGroup(ctx, c.Param("boardId"), c.Param("groupId"), patch)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *handlers) deleteGroup(c echo.Context) error {
	ctx, err := h.identityCtx(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	b, err := h.boards.DeleteGroup(ctx, c.Param("boardId"), c.Param("groupId"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

type groupMoveRequest struct {
	SourceIndex int `json:"sourceIndex"`
	TargetIndex int `json:"targetIndex"`
}

func (h *handlers) moveGroup(c echo.Context) error {
	ctx, err := h.identityCtx(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var req groupMoveRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	b, err := h.boards.MoveGroup(ctx, c.Param("boardId"), req.SourceIndex, req.TargetIndex)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *handlers) addTask(c echo.Context) error {
	ctx, err := h.identityCtx(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var draft domain.Task
	if err := decodeBody(c, &draft); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	b, _, err := h.boards.AddTask(ctx, c.Param("boardId"), c.Param("groupId"), draft)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *handlers) updateTask(c echo.Context) error {
	ctx, err := h.identityCtx(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var patch domain.TaskPatch
	if err := decodeBody(c, &patch); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	b, _, err := h.boards.UpdateTask(ctx, c.Param("boardId"), c.Param("taskId"), patch)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *handlers) deleteTask(c echo.Context) error {
	ctx, err := h.identityCtx(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	b, err := h.boards.DeleteTask(ctx, c.Param("boardId"), c.Param("groupId"), c.Param("taskId"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

type taskMoveRequest struct {
	FromGroupID string `json:"fromGroupId"`
	ToGroupID   string `json:"toGroupId"`
	TaskID      string `json:"taskId"`
}

func (h *handlers) moveTask(c echo.Context) error {
	ctx, err := h.identityCtx(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var req taskMoveRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	b, err := h.boards.MoveTask(ctx, c.Param("boardId"), req.FromGroupID, req.TaskID, req.ToGroupID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *handlers) addActivity(c echo.Context) error {
	ctx, err := h.identityCtx(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var draft domain.Activity
	if err := decodeBody(c, &draft); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	b, _, err := h.boards.AddActivity(ctx, c.Param("boardId"), draft)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}
