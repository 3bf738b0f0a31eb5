package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/iCCupCalico/bot/internal/api/dto"
	"github.com/iCCupCalico/bot/internal/repository"
	"github.com/iCCupCalico/bot/internal/service"
	apperrors "github.com/iCCupCalico/bot/pkg/util"
)

// AdminTicketsHandler serves the read-mostly admin panel over the same store
// instance the chat path uses, so panel mutations and bot mutations never
// race on the durable file.
type AdminTicketsHandler struct {
	store  *repository.TicketStore
	router *service.TicketRouter
}

// NewAdminTicketsHandler constructs the handler.
func NewAdminTicketsHandler(store *repository.TicketStore, router *service.TicketRouter) *AdminTicketsHandler {
	return &AdminTicketsHandler{store: store, router: router}
}

// ListTickets GET /admin/tickets.
func (h *AdminTicketsHandler) ListTickets(c *fiber.Ctx) error {
	tickets := h.store.List()
	items := make([]dto.TicketSummary, 0, len(tickets))
	for _, ticket := range tickets {
		if c.QueryBool("open_only") && ticket.Closed {
			continue
		}
		items = append(items, dto.Summarize(ticket))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /admin/tickets/:id.
func (h *AdminTicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.store.Get(ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.Detail(ticket)})
}

// ReplyTicket POST /admin/tickets/:id/reply.
func (h *AdminTicketsHandler) ReplyTicket(c *fiber.Ctx) error {
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	var req dto.ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Text) == "" {
		return apperrors.NewValidationError("text required", nil)
	}
	if err := h.router.ReplyToTicket(c.UserContext(), ticketID, req.Text); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"sent": true}})
}

// CloseTicket POST /admin/tickets/:id/close.
func (h *AdminTicketsHandler) CloseTicket(c *fiber.Ctx) error {
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.router.CloseTicket(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.Summarize(ticket)})
}

func parseTicketID(c *fiber.Ctx) (int64, error) {
	ticketID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError("ticket id must be an integer", nil)
	}
	return ticketID, nil
}
