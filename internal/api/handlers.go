package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/giriraj-roy-7723/wellnest-chat/internal/chat"
)

// Handler translates the uniform {success, message?, data?} envelope to and
// from the chat service.
type Handler struct {
	svc *chat.Service
	log *zap.SugaredLogger
}

func NewHandler(svc *chat.Service, log *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, log: log}
}

func ok(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func okMessage(c *fiber.Ctx, status int, message string, data interface{}) error {
	body := fiber.Map{"success": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	return c.Status(status).JSON(body)
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": message})
}

// respondError maps service errors to the observed status codes. Not-found
// and not-a-participant are deliberately the same 404 on appointment-keyed
// routes so outsiders cannot probe for a conversation's existence.
func (h *Handler) respondError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, chat.ErrInvalidID):
		return fail(c, fiber.StatusBadRequest, "Invalid ID format")
	case errors.Is(err, chat.ErrInvalidPagination):
		return fail(c, fiber.StatusBadRequest, "Invalid pagination parameters")
	case errors.Is(err, chat.ErrEmptyMessage):
		return fail(c, fiber.StatusBadRequest, "Message cannot be empty")
	case errors.Is(err, chat.ErrEmptySearchTerm):
		return fail(c, fiber.StatusBadRequest, "Search term is required")
	case errors.Is(err, chat.ErrForbidden):
		return fail(c, fiber.StatusForbidden, "Unauthorized")
	case errors.Is(err, chat.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "Chat not found or unauthorized")
	default:
		h.log.Errorw(fallback, "path", c.Path(), "err", err)
		return fail(c, fiber.StatusInternalServerError, fallback)
	}
}

type createChatReq struct {
	AppointmentID string `json:"appointmentId"`
	DoctorID      string `json:"doctorId"`
	PatientID     string `json:"patientId"`
}

// CreateChat is idempotent: an existing conversation comes back with 200
// instead of an error.
func (h *Handler) CreateChat(c *fiber.Ctx) error {
	var req createChatReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.AppointmentID == "" || req.DoctorID == "" || req.PatientID == "" {
		return fail(c, fiber.StatusBadRequest, "appointmentId, doctorId, and patientId are required")
	}

	chatDoc, created, err := h.svc.Create(c.Context(), identity(c), req.AppointmentID, req.DoctorID, req.PatientID)
	if err != nil {
		if errors.Is(err, chat.ErrForbidden) {
			return fail(c, fiber.StatusForbidden, "Unauthorized to create this chat")
		}
		return h.respondError(c, err, "Failed to create chat")
	}
	if !created {
		return okMessage(c, fiber.StatusOK, "Chat already exists", chatDoc)
	}
	return okMessage(c, fiber.StatusCreated, "Chat created successfully", chatDoc)
}

func (h *Handler) MyChats(c *fiber.Ctx) error {
	summaries, err := h.svc.ListForUser(c.Context(), identity(c))
	if err != nil {
		return h.respondError(c, err, "Failed to get chats")
	}
	return ok(c, summaries)
}

func (h *Handler) History(c *fiber.Ctx) error {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid pagination parameters")
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid pagination parameters")
	}

	result, err := h.svc.History(c.Context(), identity(c), c.Params("appointmentId"), page, limit)
	if err != nil {
		return h.respondError(c, err, "Failed to get chat history")
	}
	return ok(c, result)
}

type sendMessageReq struct {
	AppointmentID string `json:"appointmentId"`
	Message       string `json:"message"`
}

// SendMessage is the REST write path, equivalent to the gateway's
// send-message event; it also fans out to any live room members.
func (h *Handler) SendMessage(c *fiber.Ctx) error {
	var req sendMessageReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.AppointmentID == "" {
		return fail(c, fiber.StatusBadRequest, "appointmentId and message are required")
	}

	msg, total, err := h.svc.Send(c.Context(), identity(c), req.AppointmentID, req.Message)
	if err != nil {
		return h.respondError(c, err, "Failed to send message")
	}
	return okMessage(c, fiber.StatusCreated, "Message sent successfully", fiber.Map{
		"message":       msg,
		"totalMessages": total,
	})
}

func (h *Handler) GetChatByID(c *fiber.Ctx) error {
	detail, err := h.svc.GetByID(c.Context(), identity(c), c.Params("chatId"))
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrNotFound):
			return fail(c, fiber.StatusNotFound, "Chat not found")
		case errors.Is(err, chat.ErrForbidden):
			return fail(c, fiber.StatusForbidden, "Unauthorized to view this chat")
		}
		return h.respondError(c, err, "Failed to retrieve chat")
	}
	return okMessage(c, fiber.StatusOK, "Chat retrieved successfully", detail)
}

func (h *Handler) Search(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid pagination parameters")
	}
	result, err := h.svc.Search(c.Context(), identity(c), c.Params("appointmentId"), c.Query("q"), limit)
	if err != nil {
		return h.respondError(c, err, "Failed to search messages")
	}
	return ok(c, result)
}

func (h *Handler) MarkRead(c *fiber.Ctx) error {
	if err := h.svc.MarkRead(c.Context(), identity(c), c.Params("chatId")); err != nil {
		return h.respondError(c, err, "Failed to mark chat as read")
	}
	return okMessage(c, fiber.StatusOK, "Chat marked as read", nil)
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
