package controller

import (
	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/serverutils"
	"ai-tutor-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IConversationController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Create(ctx *fiber.Ctx) error
	GetAll(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	Archive(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type conversationController struct {
	service service.IConversationService
}

func NewConversationController(service service.IConversationService) IConversationController {
	return &conversationController{service: service}
}

func (c *conversationController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/tutor/v1/conversations")
	h.Get("", auth, c.GetAll)
	h.Post("", auth, c.Create)
	h.Get(":id", auth, c.Show)
	h.Get(":id/history", auth, c.History)
	h.Put(":id/archive", auth, c.Archive)
	h.Delete(":id", auth, c.Delete)
}

func (c *conversationController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateConversationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	req.UserId = serverutils.UserID(ctx, req.UserId)

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create conversation", res))
}

func (c *conversationController) GetAll(ctx *fiber.Ctx) error {
	var query dto.ListConversationsQuery
	if err := ctx.QueryParser(&query); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query")
	}
	query.UserId = serverutils.UserID(ctx, query.UserId)

	if err := serverutils.ValidateRequest(query); err != nil {
		return err
	}

	res, err := c.service.GetAll(ctx.UserContext(), &query)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all conversation", res))
}

func (c *conversationController) Show(ctx *fiber.Ctx) error {
	userId := serverutils.UserID(ctx, ctx.Query("user_id"))

	res, err := c.service.Show(ctx.UserContext(), userId, ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show conversation", res))
}

func (c *conversationController) History(ctx *fiber.Ctx) error {
	userId := serverutils.UserID(ctx, ctx.Query("user_id"))

	res, err := c.service.History(ctx.UserContext(), userId, ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get conversation history", res))
}

func (c *conversationController) Archive(ctx *fiber.Ctx) error {
	userId := serverutils.UserID(ctx, ctx.Query("user_id"))

	if err := c.service.Archive(ctx.UserContext(), userId, ctx.Params("id")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success archive conversation", nil))
}

func (c *conversationController) Delete(ctx *fiber.Ctx) error {
	userId := serverutils.UserID(ctx, ctx.Query("user_id"))

	if err := c.service.Delete(ctx.UserContext(), userId, ctx.Params("id")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete conversation", nil))
}
