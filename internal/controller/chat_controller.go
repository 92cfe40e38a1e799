package controller

import (
	"kb-chat-be/internal/dto"
	"kb-chat-be/internal/pkg/serverutils"
	"kb-chat-be/internal/service"
	"kb-chat-be/pkg/chat/session"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	SendMessage(ctx *fiber.Ctx) error
	GetActiveSession(ctx *fiber.Ctx) error
	StartSession(ctx *fiber.Ctx) error
	GetAllSessions(ctx *fiber.Ctx) error
	GetSessionMessages(ctx *fiber.Ctx) error
	RenameSession(ctx *fiber.Ctx) error
	ArchiveSession(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
}

func NewChatController(chatService service.IChatService) IChatController {
	return &chatController{
		chatService: chatService,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("message", c.SendMessage)
	// "session/active" is registered before the ":id" routes so it never
	// matches as a parameter.
	h.Get("session/active", c.GetActiveSession)
	h.Post("session", c.StartSession)
	h.Get("session", c.GetAllSessions)
	h.Get("session/:id/messages", c.GetSessionMessages)
	h.Patch("session/:id/title", c.RenameSession)
	h.Put("session/:id/archive", c.ArchiveSession)
	h.Delete("session/:id", c.DeleteSession)
}

func callerIdentity(ctx *fiber.Ctx) (uuid.UUID, uuid.UUID) {
	userIdStr := ctx.Locals("user_id").(string)
	orgIdStr := ctx.Locals("organization_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	orgId, _ := uuid.Parse(orgIdStr)
	return userId, orgId
}

func sessionIdParam(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, session.ErrSessionNotFound
	}
	return id, nil
}

func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	userId, orgId := callerIdentity(ctx)

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.SendMessage(ctx.Context(), userId, orgId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send message", res))
}

func (c *chatController) GetActiveSession(ctx *fiber.Ctx) error {
	userId, orgId := callerIdentity(ctx)

	res, err := c.chatService.GetActiveSession(ctx.Context(), userId, orgId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get active session", res))
}

func (c *chatController) StartSession(ctx *fiber.Ctx) error {
	userId, orgId := callerIdentity(ctx)

	res, err := c.chatService.StartSession(ctx.Context(), userId, orgId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success start session", res))
}

func (c *chatController) GetAllSessions(ctx *fiber.Ctx) error {
	userId, orgId := callerIdentity(ctx)

	var req dto.GetAllSessionsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.GetAllSessions(ctx.Context(), userId, orgId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get sessions", res))
}

func (c *chatController) GetSessionMessages(ctx *fiber.Ctx) error {
	userId, orgId := callerIdentity(ctx)
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	var req dto.GetSessionMessagesRequest
	if err := ctx.QueryParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.GetSessionMessages(ctx.Context(), userId, orgId, id, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session messages", res))
}

func (c *chatController) RenameSession(ctx *fiber.Ctx) error {
	userId, orgId := callerIdentity(ctx)
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	var req dto.RenameSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.chatService.RenameSession(ctx.Context(), userId, orgId, id, &req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success rename session", nil))
}

func (c *chatController) ArchiveSession(ctx *fiber.Ctx) error {
	userId, orgId := callerIdentity(ctx)
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	if err := c.chatService.ArchiveSession(ctx.Context(), userId, orgId, id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success archive session", nil))
}

func (c *chatController) DeleteSession(ctx *fiber.Ctx) error {
	userId, orgId := callerIdentity(ctx)
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	if err := c.chatService.DeleteSession(ctx.Context(), userId, orgId, id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete session", nil))
}
