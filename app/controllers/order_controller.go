package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PriceSync/internal/pkg/checkout"
)

// OrderController exposes checkout order creation, lookup and capture.
type OrderController struct {
	service *checkout.Service
}

func NewOrderController(service *checkout.Service) *OrderController {
	return &OrderController{service: service}
}

func (oc *OrderController) HandleCreateOrder(c *fiber.Ctx) error {
	var req checkout.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	out, err := oc.service.CreateOrder(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

func (oc *OrderController) HandleGetOrder(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "order id missing"})
	}
	out, err := oc.service.GetOrder(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(out)
}

// HandleCaptureOrder answers 200 for every capture the gateway accepted;
// a non-COMPLETED status is carried in the warning field.
func (oc *OrderController) HandleCaptureOrder(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "order id missing"})
	}
	out, err := oc.service.CaptureOrder(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(out)
}
