package controller

import (
	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/serverutils"
	"ai-tutor-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IQuizController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Start(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Next(ctx *fiber.Ctx) error
	Answer(ctx *fiber.Ctx) error
}

type quizController struct {
	service service.IQuizService
}

func NewQuizController(service service.IQuizService) IQuizController {
	return &quizController{service: service}
}

func (c *quizController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/tutor/v1/conversations/:id/quiz")
	h.Post("", auth, c.Start)
	h.Get("", auth, c.Show)
	h.Post("next", auth, c.Next)
	h.Post("answer", auth, c.Answer)
}

func (c *quizController) Start(ctx *fiber.Ctx) error {
	var req dto.StartQuizRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	req.UserId = serverutils.UserID(ctx, req.UserId)

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Start(ctx.UserContext(), ctx.Params("id"), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success start quiz", res))
}

func (c *quizController) Show(ctx *fiber.Ctx) error {
	userId := serverutils.UserID(ctx, ctx.Query("user_id"))

	res, err := c.service.Show(ctx.UserContext(), userId, ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show quiz", res))
}

func (c *quizController) Next(ctx *fiber.Ctx) error {
	userId := serverutils.UserID(ctx, ctx.Query("user_id"))

	res, err := c.service.Next(ctx.UserContext(), userId, ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get next question", res))
}

func (c *quizController) Answer(ctx *fiber.Ctx) error {
	var req dto.AnswerQuizRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	userId := serverutils.UserID(ctx, ctx.Query("user_id"))
	res, err := c.service.Answer(ctx.UserContext(), userId, ctx.Params("id"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success answer quiz", res))
}
