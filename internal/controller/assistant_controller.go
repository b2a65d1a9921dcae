package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/pkg/serverutils"
	"ai-assistant-be/internal/service"
	internalWS "ai-assistant-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type IAssistantController interface {
	RegisterRoutes(r fiber.Router)
	Chat(ctx *fiber.Ctx) error
	ChatSocket(ctx *fiber.Ctx) error
	Resolve(ctx *fiber.Ctx) error
	Search(ctx *fiber.Ctx) error
	AccessStatus(ctx *fiber.Ctx) error
	Checkpoint(ctx *fiber.Ctx) error
	RefreshIndex(ctx *fiber.Ctx) error
}

type assistantController struct {
	chatService      service.IChatService
	assistantService service.IAssistantService
	indexerService   service.IIndexerService
	hub              *internalWS.Hub
	jwtSecret        string
	logger           logger.ILogger
}

func NewAssistantController(
	chatService service.IChatService,
	assistantService service.IAssistantService,
	indexerService service.IIndexerService,
	hub *internalWS.Hub,
	jwtSecret string,
	log logger.ILogger,
) IAssistantController {
	return &assistantController{
		chatService:      chatService,
		assistantService: assistantService,
		indexerService:   indexerService,
		hub:              hub,
		jwtSecret:        jwtSecret,
		logger:           log,
	}
}

func (c *assistantController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/assistant/v1")
	h.Get("health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(serverutils.SuccessResponse("ok", fiber.Map{"status": "up"}))
	})

	h.Use(serverutils.OptionalJwtMiddleware(c.jwtSecret))
	h.Post("chat", c.Chat)
	h.Get("chat/ws", c.ChatSocket)
	h.Post("resolve", c.Resolve)
	h.Get("search", c.Search)
	h.Get("access/status", c.AccessStatus)
	h.Get("conversations/:id/checkpoint", c.Checkpoint)
	h.Post("index/refresh", c.RefreshIndex)
}

func (c *assistantController) accessState(ctx *fiber.Ctx) entity.UserAccessState {
	caller := serverutils.CallerFromCtx(ctx)
	return c.assistantService.AccessState(ctx.UserContext(), caller.UserId, caller.Tier)
}

func toChatTurn(req *dto.ChatRequest, state entity.UserAccessState) service.ChatTurn {
	return service.ChatTurn{
		Messages:       req.ToEntities(),
		ModelId:        req.ModelId,
		ConversationId: req.ConversationId,
		Context:        entity.ChatContext(req.Context),
		CurrentPath:    req.CurrentPath,
		Access:         state,
	}
}

// Chat streams one turn as server-sent events.
func (c *assistantController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	// fiber reuses ctx once the handler returns; the stream writer only
	// sees values captured here.
	turn := toChatTurn(&req, c.accessState(ctx))
	parent := context.WithoutCancel(ctx.UserContext())

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		sink := func(event dto.ChatEvent) error {
			data, err := json.Marshal(event.Data)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
				return err
			}
			return w.Flush()
		}
		if err := c.chatService.Run(parent, turn, sink); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("ChatController", "turn failed", map[string]interface{}{"error": err.Error()})
		}
	})
	return nil
}

// ChatSocket runs one turn over a websocket. The first frame is the
// request, every event is one JSON frame.
func (c *assistantController) ChatSocket(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}
	state := c.accessState(ctx)

	return websocket.New(func(conn *websocket.Conn) {
		c.hub.Serve(conn, state.UserId, func(turnCtx context.Context, raw []byte, send func(v interface{}) error) error {
			var req dto.ChatRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				return send(dto.ChatEvent{Type: dto.ChatEventError, Data: dto.ChatErrorPayload{Message: "Invalid request body"}})
			}
			if err := serverutils.ValidateRequest(req); err != nil {
				return send(dto.ChatEvent{Type: dto.ChatEventError, Data: dto.ChatErrorPayload{Message: err.Error()}})
			}
			return c.chatService.Run(turnCtx, toChatTurn(&req, state), func(event dto.ChatEvent) error {
				return send(event)
			})
		})
	})(ctx)
}

func (c *assistantController) Resolve(ctx *fiber.Ctx) error {
	var req dto.ResolveRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.assistantService.Resolve(ctx.UserContext(), c.accessState(ctx), &req)
	if err != nil {
		return mapServiceError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success resolve destination", res))
}

func (c *assistantController) Search(ctx *fiber.Ctx) error {
	res, err := c.assistantService.Search(ctx.UserContext(), ctx.Query("q"), ctx.QueryInt("limit", 0))
	if err != nil {
		return mapServiceError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success search knowledge", res))
}

func (c *assistantController) AccessStatus(ctx *fiber.Ctx) error {
	modelId := ctx.Query("model_id")
	if modelId == "" {
		return fiber.NewError(fiber.StatusBadRequest, "model_id is required")
	}

	res, err := c.assistantService.AccessStatus(ctx.UserContext(), c.accessState(ctx), modelId)
	if err != nil {
		return mapServiceError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get access status", res))
}

func (c *assistantController) Checkpoint(ctx *fiber.Ctx) error {
	conversationId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid conversation id")
	}

	caller := serverutils.CallerFromCtx(ctx)
	res, err := c.assistantService.Checkpoint(ctx.UserContext(), caller.UserId, conversationId)
	if err != nil {
		return mapServiceError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get checkpoint", res))
}

// RefreshIndex is limited to admins.
func (c *assistantController) RefreshIndex(ctx *fiber.Ctx) error {
	if c.accessState(ctx).Tier != entity.TierAdmin {
		return fiber.NewError(fiber.StatusForbidden, "Admin access required")
	}

	var req dto.RefreshIndexRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	if err := c.indexerService.RequestRefresh(ctx.UserContext(), service.ReindexRequest{Reason: "api", Full: req.Full}); err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Index refresh queued", fiber.Map{"full": req.Full}))
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, service.ErrConversationNotFound), errors.Is(err, service.ErrModelNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrEmptyQuery):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return err
}
