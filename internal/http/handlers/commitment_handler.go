package handlers

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/proquint-registry/backend/internal/http/dto"
	"github.com/proquint-registry/backend/internal/models"
	"github.com/proquint-registry/backend/internal/services"
	"go.uber.org/zap"
)

// Commitments is the commit-reveal flow served by services.CommitmentService.
type Commitments interface {
	Prepare(ctx context.Context, req services.PrepareRequest) (*services.PrepareResult, error)
	Status(ctx context.Context, hash string) (*services.CommitmentStatusView, error)
	Reveal(ctx context.Context, hash string) (*services.RevealResult, error)
	ListByCaller(ctx context.Context, caller common.Address, limit int) ([]models.Commitment, error)
}

type CommitmentHandler struct {
	commitments Commitments
	log         *zap.Logger
}

func NewCommitmentHandler(commitments Commitments, log *zap.Logger) *CommitmentHandler {
	return &CommitmentHandler{commitments: commitments, log: log}
}

func (h *CommitmentHandler) Prepare(c *fiber.Ctx) error {
	var req dto.PrepareCommitmentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.Name == "" {
		return badRequest(c, "name is required")
	}

	caller, err := services.ParseAddress(req.Caller)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var receiver common.Address
	if req.Receiver != "" {
		if receiver, err = services.ParseAddress(req.Receiver); err != nil {
			return writeError(c, h.log, err)
		}
	}

	res, err := h.commitments.Prepare(c.Context(), services.PrepareRequest{
		Name:     req.Name,
		Years:    req.Years,
		Caller:   caller,
		Receiver: receiver,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: res})
}

func (h *CommitmentHandler) GetStatus(c *fiber.Ctx) error {
	st, err := h.commitments.Status(c.Context(), c.Params("hash"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: st})
}

func (h *CommitmentHandler) Reveal(c *fiber.Ctx) error {
	res, err := h.commitments.Reveal(c.Context(), c.Params("hash"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}

func (h *CommitmentHandler) ListByCaller(c *fiber.Ctx) error {
	caller, err := services.ParseAddress(c.Params("address"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	list, err := h.commitments.ListByCaller(c.Context(), caller, queryLimit(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: list})
}
