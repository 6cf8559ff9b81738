package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/proquint-registry/backend/internal/commitment"
	"github.com/proquint-registry/backend/internal/config"
	"github.com/proquint-registry/backend/internal/http/dto"
	"github.com/proquint-registry/backend/internal/lifecycle"
	"github.com/proquint-registry/backend/internal/pricing"
)

type MetaHandler struct {
	constants dto.ConstantsResponse
}

func NewMetaHandler(cfg *config.Config) *MetaHandler {
	secs := func(d time.Duration) int64 { return int64(d / time.Second) }
	return &MetaHandler{constants: dto.ConstantsResponse{
		ChainID:              cfg.ChainID,
		Contract:             cfg.ContractAddress.Hex(),
		ExplorerURL:          cfg.ExplorerURL,
		ContractURL:          cfg.AddressURL(cfg.ContractAddress.Hex()),
		TxURLTemplate:        cfg.TxURL("{hash}"),
		MinYears:             pricing.MinYears,
		MaxYears:             pricing.MaxYears,
		PricePerYearWei:      pricing.PricePerYear.String(),
		PricePerMonthWei:     pricing.PricePerMonth.String(),
		MaxRefundWei:         pricing.MaxRefund.String(),
		PalindromeMultiplier: pricing.PalindromeMultiplier,
		MinCommitmentAge:     secs(commitment.MinAge),
		MaxCommitmentAge:     secs(commitment.MaxAge),
		GracePeriod:          secs(lifecycle.GracePeriod),
		PremiumPeriod:        secs(lifecycle.PremiumPeriod),
		AnyonePeriod:         secs(lifecycle.AnyonePeriod),
		TransferPenalty:      secs(lifecycle.TransferPenalty),
		BasePendingPeriod:    secs(lifecycle.BasePendingPeriod),
		MinPendingPeriod:     secs(lifecycle.MinPendingPeriod),
		MaxInbox:             lifecycle.MaxInbox,
	}}
}

func (h *MetaHandler) GetConstants(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.constants})
}
