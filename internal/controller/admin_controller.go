package controller

import (
	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/serverutils"
	"docchat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAdminController interface {
	RegisterRoutes(r fiber.Router)
	ClearCache(ctx *fiber.Ctx) error
	InvalidateDocument(ctx *fiber.Ctx) error
	CacheStats(ctx *fiber.Ctx) error
	BreakerStatus(ctx *fiber.Ctx) error
	GetLogs(ctx *fiber.Ctx) error
}

type adminController struct {
	service service.IAdminService
}

func NewAdminController(service service.IAdminService) IAdminController {
	return &adminController{service: service}
}

func (c *adminController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/admin")
	h.Delete("/cache", c.ClearCache)
	h.Delete("/cache/documents/:documentId", c.InvalidateDocument)
	h.Get("/cache/stats", c.CacheStats)
	h.Get("/breaker", c.BreakerStatus)
	h.Get("/logs", c.GetLogs)
}

func (c *adminController) ClearCache(ctx *fiber.Ctx) error {
	removed := c.service.ClearCache(ctx.Context())
	return ctx.JSON(serverutils.SuccessResponse("Cache cleared", dto.CacheClearResponse{Removed: removed}))
}

func (c *adminController) InvalidateDocument(ctx *fiber.Ctx) error {
	documentID := ctx.Params("documentId")
	if documentID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "documentId is required")
	}
	removed := c.service.InvalidateDocument(ctx.Context(), documentID)
	return ctx.JSON(serverutils.SuccessResponse("Document invalidated", dto.CacheClearResponse{Removed: removed}))
}

func (c *adminController) CacheStats(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Cache stats", c.service.CacheStats(ctx.Context())))
}

func (c *adminController) BreakerStatus(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Breaker status", c.service.BreakerStatus(ctx.Context())))
}

func (c *adminController) GetLogs(ctx *fiber.Ctx) error {
	req := dto.LogQueryRequest{Limit: 50}
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query parameters")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	logs, err := c.service.GetLogs(ctx.Context(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get logs", logs))
}
