package handlers

import (
	"context"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/proquint-registry/backend/internal/http/dto"
	"github.com/proquint-registry/backend/internal/models"
	"github.com/proquint-registry/backend/internal/services"
	"go.uber.org/zap"
)

// NameReader is the read side served by services.NameService.
type NameReader interface {
	Lookup(ctx context.Context, input string) (*services.NameView, error)
	Quote(input string, years int) (*services.QuoteView, error)
	PredictInbox(ctx context.Context, receiver common.Address) (*services.InboxPrediction, error)
	RefundQuote(ctx context.Context, input string, role services.RefundRole) (*services.RefundView, error)
	Stats(ctx context.Context) (*services.RegistryStats, error)
}

// NameActions builds unsigned transactions, see services.ActionService.
type NameActions interface {
	Renew(ctx context.Context, input string, years int) (*services.ActionResult, error)
	AcceptInbox(ctx context.Context, input string, caller common.Address) (*services.ActionResult, error)
	RejectInbox(ctx context.Context, input string, caller common.Address) (*services.ActionResult, error)
	CleanInbox(ctx context.Context, input string) (*services.ActionResult, error)
	Shelve(ctx context.Context, input string, caller common.Address) (*services.ActionResult, error)
	Transfer(ctx context.Context, input string, from, to common.Address) (*services.ActionResult, error)
}

// EventReader serves indexed history, see services.IndexerService.
type EventReader interface {
	Events(ctx context.Context, addr string, limit int) ([]models.ChainEvent, error)
	NameEvents(ctx context.Context, input string, limit int) ([]models.ChainEvent, error)
}

type NameHandler struct {
	names   NameReader
	actions NameActions
	events  EventReader
	log     *zap.Logger
}

func NewNameHandler(names NameReader, actions NameActions, events EventReader, log *zap.Logger) *NameHandler {
	return &NameHandler{names: names, actions: actions, events: events, log: log}
}

func (h *NameHandler) GetName(c *fiber.Ctx) error {
	view, err := h.names.Lookup(c.Context(), c.Params("name"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: view})
}

func (h *NameHandler) GetQuote(c *fiber.Ctx) error {
	years, err := strconv.Atoi(c.Query("years", "1"))
	if err != nil {
		return badRequest(c, "years must be a number")
	}
	q, err := h.names.Quote(c.Params("name"), years)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: q})
}

func (h *NameHandler) GetRefund(c *fiber.Ctx) error {
	role := services.RefundRole(c.Query("as", string(services.RoleReceiver)))
	r, err := h.names.RefundQuote(c.Context(), c.Params("name"), role)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: r})
}

func (h *NameHandler) GetNameEvents(c *fiber.Ctx) error {
	evs, err := h.events.NameEvents(c.Context(), c.Params("name"), queryLimit(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: evs})
}

func (h *NameHandler) GetInboxPrediction(c *fiber.Ctx) error {
	addr, err := services.ParseAddress(c.Params("address"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	p, err := h.names.PredictInbox(c.Context(), addr)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: p})
}

func (h *NameHandler) GetAccountEvents(c *fiber.Ctx) error {
	evs, err := h.events.Events(c.Context(), c.Params("address"), queryLimit(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: evs})
}

func (h *NameHandler) GetStats(c *fiber.Ctx) error {
	st, err := h.names.Stats(c.Context())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: st})
}

// Transaction builders

func (h *NameHandler) Renew(c *fiber.Ctx) error {
	var req dto.RenewRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	return h.respondTx(c, func() (*services.ActionResult, error) {
		return h.actions.Renew(c.Context(), c.Params("name"), req.Years)
	})
}

func (h *NameHandler) AcceptInbox(c *fiber.Ctx) error {
	return h.callerAction(c, h.actions.AcceptInbox)
}

func (h *NameHandler) RejectInbox(c *fiber.Ctx) error {
	return h.callerAction(c, h.actions.RejectInbox)
}

func (h *NameHandler) Shelve(c *fiber.Ctx) error {
	return h.callerAction(c, h.actions.Shelve)
}

func (h *NameHandler) CleanInbox(c *fiber.Ctx) error {
	return h.respondTx(c, func() (*services.ActionResult, error) {
		return h.actions.CleanInbox(c.Context(), c.Params("name"))
	})
}

func (h *NameHandler) Transfer(c *fiber.Ctx) error {
	var req dto.TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	from, err := services.ParseAddress(req.From)
	if err != nil {
		return writeError(c, h.log, err)
	}
	to, err := services.ParseAddress(req.To)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return h.respondTx(c, func() (*services.ActionResult, error) {
		return h.actions.Transfer(c.Context(), c.Params("name"), from, to)
	})
}

type callerFn func(ctx context.Context, input string, caller common.Address) (*services.ActionResult, error)

func (h *NameHandler) callerAction(c *fiber.Ctx, fn callerFn) error {
	var req dto.CallerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	caller, err := services.ParseAddress(req.Caller)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return h.respondTx(c, func() (*services.ActionResult, error) {
		return fn(c.Context(), c.Params("name"), caller)
	})
}

func (h *NameHandler) respondTx(c *fiber.Ctx, build func() (*services.ActionResult, error)) error {
	res, err := build()
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}

func queryLimit(c *fiber.Ctx) int {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}
	return limit
}
