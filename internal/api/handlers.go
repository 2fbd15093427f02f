package api

import (
	"github.com/fathima-sithara/teamchat/internal/domain"
	"github.com/fathima-sithara/teamchat/internal/service"
	"github.com/gofiber/fiber/v2"
)

type nameReq struct {
	Name string `json:"name" validate:"required"`
}

type joinReq struct {
	JoinCode string `json:"join_code" validate:"required,len=6"`
}

type conversationReq struct {
	MemberID string `json:"member_id" validate:"required"`
}

type createMessageReq struct {
	WorkspaceID     string `json:"workspace_id" validate:"required"`
	ChannelID       string `json:"channel_id"`
	ConversationID  string `json:"conversation_id"`
	ParentMessageID string `json:"parent_message_id"`
	Body            string `json:"body"`
	Image           string `json:"image"`
}

type updateMessageReq struct {
	Body string `json:"body" validate:"required"`
}

type reactionReq struct {
	Value string `json:"value" validate:"required,max=64"`
}

// Users

func (s *Server) currentUser(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	u, err := s.svc.Users.Current(ctx, userID(c))
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, u)
}

// Workspaces

func (s *Server) listWorkspaces(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	list, err := s.svc.Workspaces.List(ctx, userID(c))
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, list)
}

func (s *Server) createWorkspace(c *fiber.Ctx) error {
	var req nameReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	w, err := s.svc.Workspaces.Create(ctx, userID(c), req.Name)
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusCreated, w)
}

func (s *Server) getWorkspace(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	w, err := s.svc.Workspaces.Get(ctx, userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, w)
}

func (s *Server) workspaceInfo(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	info, err := s.svc.Workspaces.Info(ctx, userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, info)
}

func (s *Server) renameWorkspace(c *fiber.Ctx) error {
	var req nameReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	w, err := s.svc.Workspaces.Rename(ctx, userID(c), c.Params("id"), req.Name)
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, w)
}

func (s *Server) removeWorkspace(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	id := c.Params("id")
	if err := s.svc.Workspaces.Remove(ctx, userID(c), id); err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, fiber.Map{"id": id})
}

func (s *Server) rotateJoinCode(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	w, err := s.svc.Workspaces.NewJoinCode(ctx, userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, w)
}

func (s *Server) joinWorkspace(c *fiber.Ctx) error {
	var req joinReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	w, err := s.svc.Workspaces.Join(ctx, userID(c), c.Params("id"), req.JoinCode)
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, fiber.Map{"id": w.ID})
}

func (s *Server) presence(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	ids, err := s.svc.Workspaces.Online(ctx, userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, ids)
}

// Members

func (s *Server) listMembers(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	list, err := s.svc.Members.List(ctx, userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, list)
}

func (s *Server) currentMember(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	m, err := s.svc.Members.Current(ctx, userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, m)
}

func (s *Server) getMember(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	m, err := s.svc.Members.Get(ctx, userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, m)
}

// Channels

func (s *Server) listChannels(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	list, err := s.svc.Channels.List(ctx, userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, list)
}

func (s *Server) createChannel(c *fiber.Ctx) error {
	var req nameReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	ch, err := s.svc.Channels.Create(ctx, userID(c), c.Params("id"), req.Name)
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusCreated, ch)
}

func (s *Server) getChannel(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	ch, err := s.svc.Channels.Get(ctx, userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, ch)
}

func (s *Server) renameChannel(c *fiber.Ctx) error {
	var req nameReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	ch, err := s.svc.Channels.Rename(ctx, userID(c), c.Params("id"), req.Name)
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, ch)
}

func (s *Server) removeChannel(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	id := c.Params("id")
	if err := s.svc.Channels.Remove(ctx, userID(c), id); err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, fiber.Map{"id": id})
}

// Conversations

func (s *Server) createOrGetConversation(c *fiber.Ctx) error {
	var req conversationReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	conv, err := s.svc.Conversations.CreateOrGet(ctx, userID(c), c.Params("id"), req.MemberID)
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, conv)
}

// Messages

func (s *Server) listMessages(c *fiber.Ctx) error {
	scope := domain.MessageScope{
		ChannelID:       c.Query("channel_id"),
		ConversationID:  c.Query("conversation_id"),
		ParentMessageID: c.Query("parent_message_id"),
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	page, err := s.svc.Messages.List(ctx, userID(c), scope, c.Query("cursor"), c.QueryInt("num_items", service.DefaultPageSize))
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, page)
}

func (s *Server) createMessage(c *fiber.Ctx) error {
	var req createMessageReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	m, err := s.svc.Messages.Create(ctx, userID(c), service.CreateMessageInput{
		WorkspaceID:     req.WorkspaceID,
		ChannelID:       req.ChannelID,
		ConversationID:  req.ConversationID,
		ParentMessageID: req.ParentMessageID,
		Body:            req.Body,
		Image:           req.Image,
	})
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusCreated, fiber.Map{"id": m.ID})
}

func (s *Server) getMessage(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	m, err := s.svc.Messages.Get(ctx, userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, m)
}

func (s *Server) updateMessage(c *fiber.Ctx) error {
	var req updateMessageReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	m, err := s.svc.Messages.Update(ctx, userID(c), c.Params("id"), req.Body)
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, fiber.Map{"id": m.ID})
}

func (s *Server) removeMessage(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	id := c.Params("id")
	if err := s.svc.Messages.Remove(ctx, userID(c), id); err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, fiber.Map{"id": id})
}

func (s *Server) toggleReaction(c *fiber.Ctx) error {
	var req reactionReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	on, err := s.svc.Reactions.Toggle(ctx, userID(c), c.Params("id"), req.Value)
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, fiber.Map{"id": c.Params("id"), "reacted": on})
}
