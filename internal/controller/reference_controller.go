package controller

import (
	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/serverutils"
	"ai-tutor-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IReferenceController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Ingest(ctx *fiber.Ctx) error
}

type referenceController struct {
	service service.IReferenceService
}

func NewReferenceController(service service.IReferenceService) IReferenceController {
	return &referenceController{service: service}
}

func (c *referenceController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/reference/v1")
	h.Post("", auth, c.Ingest)
}

func (c *referenceController) Ingest(ctx *fiber.Ctx) error {
	var req dto.IngestReferenceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Ingest(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Reference queued for ingestion", res))
}
