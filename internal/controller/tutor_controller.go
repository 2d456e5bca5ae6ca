package controller

import (
	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/serverutils"
	"ai-tutor-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ITutorController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Invoke(ctx *fiber.Ctx) error
}

type tutorController struct {
	service service.ITutorService
}

func NewTutorController(service service.ITutorService) ITutorController {
	return &tutorController{service: service}
}

func (c *tutorController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/tutor/v1")
	h.Post("invoke", auth, c.Invoke)
}

// Invoke answers with the bare {"result": ...} body.
func (c *tutorController) Invoke(ctx *fiber.Ctx) error {
	var req dto.InvokeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	req.UserId = serverutils.UserID(ctx, req.UserId)

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Invoke(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}
