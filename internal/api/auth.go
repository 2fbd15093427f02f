package api

import (
	"strings"
	"time"

	"github.com/fathima-sithara/teamchat/internal/service"
	"github.com/gofiber/fiber/v2"
)

type signUpReq struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=3"`
}

type signInReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (s *Server) setSession(c *fiber.Ctx, sess *service.Session) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    sess.Tokens.AccessToken,
		Path:     "/",
		Expires:  sess.Tokens.AccessExpiresAt,
		HTTPOnly: true,
		Secure:   strings.HasPrefix(s.baseURL, "https://"),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) authMethods(c *fiber.Ctx) error {
	return JSONSuccess(c, fiber.StatusOK, s.auth.Methods())
}

func (s *Server) signUp(c *fiber.Ctx) error {
	var req signUpReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	sess, err := s.auth.SignUp(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	s.setSession(c, sess)
	return JSONSuccess(c, fiber.StatusCreated, sess)
}

func (s *Server) signIn(c *fiber.Ctx) error {
	var req signInReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	sess, err := s.auth.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	s.setSession(c, sess)
	return JSONSuccess(c, fiber.StatusOK, sess)
}

func (s *Server) refresh(c *fiber.Ctx) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	sess, err := s.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	s.setSession(c, sess)
	return JSONSuccess(c, fiber.StatusOK, sess)
}

func (s *Server) signOut(c *fiber.Ctx) error {
	var req refreshReq
	_ = c.BodyParser(&req)
	ctx, cancel := s.ctx(c)
	defer cancel()
	if err := s.auth.SignOut(ctx, req.RefreshToken); err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{Name: sessionCookie, Value: "", Path: "/", Expires: time.Unix(0, 0), HTTPOnly: true})
	return JSONSuccess(c, fiber.StatusOK, nil)
}

func (s *Server) oauthBegin(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	url, err := s.auth.BeginOAuth(ctx, c.Params("provider"))
	if err != nil {
		return err
	}
	return c.Redirect(url, fiber.StatusFound)
}

// oauthCallback finishes the provider round trip and lands the browser on
// the home route with a session cookie.
func (s *Server) oauthCallback(c *fiber.Ctx) error {
	if e := c.Query("error"); e != "" {
		return fiber.NewError(fiber.StatusUnauthorized, "oauth: "+e)
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	sess, err := s.auth.CompleteOAuth(ctx, c.Params("provider"), c.Query("state"), c.Query("code"))
	if err != nil {
		return err
	}
	s.setSession(c, sess)
	return c.Redirect(s.baseURL+"/", fiber.StatusFound)
}
