package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-waitlist/internal/api/dto"
	"github.com/spec-kit/ticket-waitlist/internal/auth"
	"github.com/spec-kit/ticket-waitlist/internal/domain"
	"github.com/spec-kit/ticket-waitlist/internal/service"
	apperrors "github.com/spec-kit/ticket-waitlist/pkg/util/errorutil"
)

// WaitlistHandler serves availability and waiting-list endpoints.
type WaitlistHandler struct {
	admission *service.AdmissionService
	purchases *service.PurchaseService
}

// NewWaitlistHandler constructs handler.
func NewWaitlistHandler(admission *service.AdmissionService, purchases *service.PurchaseService) *WaitlistHandler {
	return &WaitlistHandler{admission: admission, purchases: purchases}
}

// Availability GET /events/:eventId/availability.
func (h *WaitlistHandler) Availability(c *fiber.Ctx) error {
	availability, err := h.admission.CheckAvailability(c.UserContext(), c.Params("eventId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": availabilityResponse(availability)})
}

// Join POST /events/:eventId/waiting-list.
func (h *WaitlistHandler) Join(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	result, err := h.admission.JoinWaitingList(c.UserContext(), c.Params("eventId"), principal.UserID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.JoinResponse{
		EntryID:        result.EntryID,
		Status:         string(result.Status),
		Message:        result.Message,
		OfferExpiresAt: result.OfferExpiresAt,
	}})
}

// Position GET /events/:eventId/waiting-list/me.
func (h *WaitlistHandler) Position(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	pos, err := h.admission.GetQueuePosition(c.UserContext(), c.Params("eventId"), principal.UserID)
	if err != nil {
		return err
	}
	resp := entryResponse(&pos.Entry)
	resp.Position = pos.Position
	return c.JSON(fiber.Map{"data": resp})
}

// Purchase POST /waiting-list/:entryId/purchase.
func (h *WaitlistHandler) Purchase(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.purchases.CompletePurchase(c.UserContext(), c.Params("entryId"), principal.UserID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.TicketResponse{
		ID:                 ticket.ID,
		EventID:            ticket.EventID,
		WaitingListEntryID: ticket.WaitingListEntryID,
		Status:             string(ticket.Status),
		PurchasedAt:        ticket.PurchasedAt,
	}})
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.UserID == "" {
		return nil, apperrors.NewUnauthorized("user required")
	}
	return principal, nil
}

func availabilityResponse(a *domain.Availability) dto.AvailabilityResponse {
	return dto.AvailabilityResponse{
		EventID:        a.EventID,
		Available:      a.Available,
		AvailableSpots: a.AvailableSpots,
		TotalTickets:   a.TotalTickets,
		PurchasedCount: a.PurchasedCount,
		ActiveOffers:   a.ActiveOffers,
	}
}

func entryResponse(e *domain.WaitingListEntry) dto.EntryResponse {
	return dto.EntryResponse{
		ID:             e.ID,
		EventID:        e.EventID,
		Status:         string(e.Status),
		OfferExpiresAt: e.OfferExpiresAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func paramError(name string) error {
	return apperrors.NewValidationError(fmt.Sprintf("%s required", name), nil)
}
