package controller

import (
	"fmt"

	"bchat-be/internal/dto"
	"bchat-be/internal/pkg/apperror"
	"bchat-be/internal/pkg/serverutils"
	"bchat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RoomBroadcaster pushes REST-originated changes to subscribed sockets.
type RoomBroadcaster interface {
	MessageCreated(msg *dto.MessageResponse)
	ReactionUpdated(update *dto.ReactionUpdatedResponse)
}

type IMessageController interface {
	RegisterRoutes(r fiber.Router)
	History(ctx *fiber.Ctx) error
	Upload(ctx *fiber.Ctx) error
	React(ctx *fiber.Ctx) error
}

type messageController struct {
	rooms          service.IRoomService
	messages       service.IMessageService
	broadcaster    RoomBroadcaster
	auth           fiber.Handler
	maxUploadBytes int64
}

func NewMessageController(rooms service.IRoomService, messages service.IMessageService, broadcaster RoomBroadcaster, auth fiber.Handler, maxUploadBytes int64) IMessageController {
	return &messageController{
		rooms:          rooms,
		messages:       messages,
		broadcaster:    broadcaster,
		auth:           auth,
		maxUploadBytes: maxUploadBytes,
	}
}

func (c *messageController) RegisterRoutes(r fiber.Router) {
	r.Get("/rooms/:roomId/messages", c.auth, c.History)
	r.Post("/rooms/:roomId/upload", c.auth, c.Upload)
	r.Post("/rooms/message/:messageId/react", c.auth, c.React)
}

func (c *messageController) member(ctx *fiber.Ctx) (*service.MembershipInfo, error) {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	return c.rooms.Authorize(ctx.UserContext(), userId, ctx.Params("roomId"))
}

func (c *messageController) History(ctx *fiber.Ctx) error {
	member, err := c.member(ctx)
	if err != nil {
		return err
	}

	res, err := c.messages.History(ctx.UserContext(), member, ctx.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get messages", res))
}

func (c *messageController) Upload(ctx *fiber.Ctx) error {
	member, err := c.member(ctx)
	if err != nil {
		return err
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return apperror.Validation("No file uploaded")
	}
	if c.maxUploadBytes > 0 && fh.Size > c.maxUploadBytes {
		return apperror.Validation(fmt.Sprintf("File exceeds the %d byte limit", c.maxUploadBytes))
	}

	f, err := fh.Open()
	if err != nil {
		return apperror.Internal("open upload", err)
	}
	defer f.Close()

	res, err := c.messages.UploadFile(ctx.UserContext(), member, &dto.UploadFileInput{
		FileName: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Content:  ctx.FormValue("content"),
		Reader:   f,
	})
	if err != nil {
		return err
	}

	if c.broadcaster != nil {
		c.broadcaster.MessageCreated(res)
	}
	return ctx.JSON(serverutils.SuccessResponse("File uploaded", res))
}

func (c *messageController) React(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	messageId, err := uuid.Parse(ctx.Params("messageId"))
	if err != nil {
		return apperror.Validation("Invalid message ID")
	}

	var req dto.ReactRequest
	if err := serverutils.ParseBody(ctx, &req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.messages.ToggleReaction(ctx.UserContext(), userId, messageId, req.Emoji)
	if err != nil {
		return err
	}

	if c.broadcaster != nil {
		c.broadcaster.ReactionUpdated(res)
	}
	return ctx.JSON(serverutils.SuccessResponse("Reaction updated", res))
}
