package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-waitlist/internal/api/dto"
	"github.com/spec-kit/ticket-waitlist/internal/domain"
	"github.com/spec-kit/ticket-waitlist/internal/service"
	apperrors "github.com/spec-kit/ticket-waitlist/pkg/util/errorutil"
)

// EventsHandler manages event endpoints.
type EventsHandler struct {
	service *service.EventService
}

// NewEventsHandler constructs handler.
func NewEventsHandler(eventService *service.EventService) *EventsHandler {
	return &EventsHandler{service: eventService}
}

// CreateEvent POST /events.
func (h *EventsHandler) CreateEvent(c *fiber.Ctx) error {
	var req dto.CreateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Price.IsNegative() {
		return apperrors.NewValidationError("price cannot be negative", nil)
	}
	event := &domain.Event{
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Location:     req.Location,
		EventDate:    req.EventDate,
		Price:        req.Price,
		TotalTickets: req.TotalTickets,
	}
	if err := h.service.CreateEvent(c.UserContext(), event); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": eventResponse(event)})
}

// GetEvent GET /events/:eventId.
func (h *EventsHandler) GetEvent(c *fiber.Ctx) error {
	event, err := h.service.GetEvent(c.UserContext(), c.Params("eventId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": eventResponse(event)})
}

// UpdateEvent PATCH /events/:eventId.
func (h *EventsHandler) UpdateEvent(c *fiber.Ctx) error {
	eventID := c.Params("eventId")
	if eventID == "" {
		return paramError("eventId")
	}
	var req dto.UpdateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Price != nil && req.Price.IsNegative() {
		return apperrors.NewValidationError("price cannot be negative", nil)
	}
	event, err := h.service.UpdateEvent(c.UserContext(), eventID, domain.EventUpdate{
		Name:         req.Name,
		Description:  req.Description,
		Location:     req.Location,
		EventDate:    req.EventDate,
		Price:        req.Price,
		TotalTickets: req.TotalTickets,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": eventResponse(event)})
}

func eventResponse(e *domain.Event) dto.EventResponse {
	return dto.EventResponse{
		ID:           e.ID,
		Name:         e.Name,
		Description:  e.Description,
		Location:     e.Location,
		EventDate:    e.EventDate,
		Price:        e.Price,
		TotalTickets: e.TotalTickets,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}
