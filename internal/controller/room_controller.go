package controller

import (
	"bchat-be/internal/dto"
	"bchat-be/internal/pkg/apperror"
	"bchat-be/internal/pkg/serverutils"
	"bchat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IRoomController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Join(ctx *fiber.Ctx) error
	MyRooms(ctx *fiber.Ctx) error
	Details(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	RemoveMember(ctx *fiber.Ctx) error
	ExtendExpiry(ctx *fiber.Ctx) error
}

type roomController struct {
	service service.IRoomService
	auth    fiber.Handler
}

func NewRoomController(service service.IRoomService, auth fiber.Handler) IRoomController {
	return &roomController{service: service, auth: auth}
}

func (c *roomController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/rooms")
	h.Post("/create", c.auth, c.Create)
	h.Post("/join", c.auth, c.Join)
	h.Get("/my-rooms", c.auth, c.MyRooms)
	h.Get("/:roomId/details", c.auth, c.Details)
	h.Delete("/:roomId", c.auth, c.Delete)
	h.Delete("/:roomId/remove/:userId", c.auth, c.RemoveMember)
	h.Put("/:roomId/extend-expiry", c.auth, c.ExtendExpiry)
}

func (c *roomController) Create(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateRoomRequest
	if err := serverutils.ParseBody(ctx, &req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.CreateRoom(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.BaseResponse[*dto.CreateRoomResponse]{
		Success: true,
		Code:    fiber.StatusCreated,
		Message: "Room created successfully",
		Data:    res,
	})
}

func (c *roomController) Join(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	var req dto.JoinRoomRequest
	if err := serverutils.ParseBody(ctx, &req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.service.JoinRoom(ctx.UserContext(), userId, &req); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Joined room successfully", nil))
}

func (c *roomController) MyRooms(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetMyRooms(ctx.UserContext(), userId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get my rooms", res))
}

func (c *roomController) Details(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetRoomDetails(ctx.UserContext(), userId, ctx.Params("roomId"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get room details", res))
}

func (c *roomController) admin(ctx *fiber.Ctx) (*service.MembershipInfo, error) {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	return c.service.AuthorizeAdmin(ctx.UserContext(), userId, ctx.Params("roomId"))
}

func (c *roomController) Delete(ctx *fiber.Ctx) error {
	admin, err := c.admin(ctx)
	if err != nil {
		return err
	}

	if err := c.service.DeleteRoom(ctx.UserContext(), admin); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Room deleted successfully", nil))
}

func (c *roomController) RemoveMember(ctx *fiber.Ctx) error {
	admin, err := c.admin(ctx)
	if err != nil {
		return err
	}

	targetId, err := uuid.Parse(ctx.Params("userId"))
	if err != nil {
		return apperror.Validation("Invalid user ID")
	}

	if err := c.service.RemoveMember(ctx.UserContext(), admin, targetId); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Member removed successfully", nil))
}

func (c *roomController) ExtendExpiry(ctx *fiber.Ctx) error {
	admin, err := c.admin(ctx)
	if err != nil {
		return err
	}

	var req dto.ExtendExpiryRequest
	if err := serverutils.ParseBody(ctx, &req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.ExtendExpiry(ctx.UserContext(), admin, *req.ExpiresIn)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Room expiry updated successfully", res))
}
