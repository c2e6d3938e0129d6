package controller

import (
	"bufio"
	"context"

	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/serverutils"
	"docchat-be/pkg/rag/orchestrator"

	"github.com/gofiber/fiber/v2"
)

// Chatter runs one chat turn and streams its events.
type Chatter interface {
	Handle(ctx context.Context, req orchestrator.Request, emit orchestrator.Emitter) *orchestrator.Result
}

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	SendMessage(ctx *fiber.Ctx) error
}

type chatController struct {
	chat Chatter
}

func NewChatController(chat Chatter) IChatController {
	return &chatController{chat: chat}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/sessions")
	h.Post(":id/messages", c.SendMessage)
}

// SendMessage answers with text/event-stream. Everything after body parsing,
// including input validation, is reported as stream events.
func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	turn := orchestrator.Request{
		SessionID: id.String(),
		Query:     req.Query,
		Focus:     req.FocusContext.ToStore(),
	}
	// the stream writer runs after this handler returns, outside the
	// request's lifetime
	parent := context.WithoutCancel(ctx.UserContext())

	serverutils.SetupSSEHeaders(ctx)
	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		streamCtx, cancel := context.WithCancel(parent)
		defer cancel()

		c.chat.Handle(streamCtx, turn, func(ev orchestrator.Event) error {
			return serverutils.WriteSSEEvent(w, ev.Type, ev.Data)
		})
	})
	return nil
}
