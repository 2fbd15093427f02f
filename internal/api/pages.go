package api

import (
	"github.com/gofiber/fiber/v2"
)

// Page routes only decide where the browser belongs. A page that may render
// answers {"page": name, ...}; everything else is a redirect.
func (s *Server) pageRoutes() {
	s.app.Get("/sign-in", s.guestOnly("sign-in"))
	s.app.Get("/sign-up", s.guestOnly("sign-up"))

	s.app.Get("/", s.pageAuth, s.homePage)
	s.app.Get("/workspace/:id", s.pageAuth, s.workspacePage)
	s.app.Get("/workspace/:id/channel/:channelId", s.pageAuth, s.channelPage)
	s.app.Get("/workspace/:id/member/:memberId", s.pageAuth, s.memberPage)
	s.app.Get("/join/:id", s.pageAuth, s.joinPage)
}

func (s *Server) guestOnly(page string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s.identify(c) != "" {
			return c.Redirect("/", fiber.StatusFound)
		}
		return JSONSuccess(c, fiber.StatusOK, fiber.Map{"page": page})
	}
}

func (s *Server) pageAuth(c *fiber.Ctx) error {
	uid := s.identify(c)
	if uid == "" {
		return c.Redirect("/sign-in", fiber.StatusFound)
	}
	c.Locals(localUserID, uid)
	return c.Next()
}

func (s *Server) homePage(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	list, err := s.svc.Workspaces.List(ctx, userID(c))
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return JSONSuccess(c, fiber.StatusOK, fiber.Map{"page": "home", "action": "create_workspace"})
	}
	return c.Redirect("/workspace/"+list[0].ID, fiber.StatusFound)
}

func (s *Server) workspacePage(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	id := c.Params("id")
	w, err := s.svc.Workspaces.Get(ctx, userID(c), id)
	if err != nil {
		return err
	}
	if w == nil {
		return JSONError(c, fiber.StatusNotFound, "workspace not found")
	}
	chans, err := s.svc.Channels.List(ctx, userID(c), id)
	if err != nil {
		return err
	}
	if len(chans) > 0 {
		return c.Redirect("/workspace/"+id+"/channel/"+chans[0].ID, fiber.StatusFound)
	}
	return JSONSuccess(c, fiber.StatusOK, fiber.Map{"page": "workspace", "workspace": w, "channels": chans})
}

func (s *Server) channelPage(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	ch, err := s.svc.Channels.Get(ctx, userID(c), c.Params("channelId"))
	if err != nil {
		return err
	}
	if ch == nil || ch.WorkspaceID != c.Params("id") {
		return JSONError(c, fiber.StatusNotFound, "channel not found")
	}
	return JSONSuccess(c, fiber.StatusOK, fiber.Map{"page": "channel", "channel": ch})
}

func (s *Server) memberPage(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	m, err := s.svc.Members.Get(ctx, userID(c), c.Params("memberId"))
	if err != nil {
		return err
	}
	if m == nil || m.WorkspaceID != c.Params("id") {
		return JSONError(c, fiber.StatusNotFound, "member not found")
	}
	conv, err := s.svc.Conversations.CreateOrGet(ctx, userID(c), m.WorkspaceID, m.ID)
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusOK, fiber.Map{"page": "conversation", "member": m, "conversation_id": conv.ID})
}

func (s *Server) joinPage(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	id := c.Params("id")
	info, err := s.svc.Workspaces.Info(ctx, userID(c), id)
	if err != nil {
		return err
	}
	if info == nil {
		return JSONError(c, fiber.StatusNotFound, "workspace not found")
	}
	if info.IsMember {
		return c.Redirect("/workspace/"+id, fiber.StatusFound)
	}
	return JSONSuccess(c, fiber.StatusOK, fiber.Map{"page": "join", "name": info.Name})
}
