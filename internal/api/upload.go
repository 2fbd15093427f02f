package api

import (
	"io"

	"github.com/fathima-sithara/teamchat/internal/apperr"
	"github.com/gofiber/fiber/v2"
)

// POST /api/v1/upload (multipart/form-data 'image')
func (s *Server) uploadImage(c *fiber.Ctx) error {
	if s.uploads == nil {
		return apperr.ErrServiceUnavailable
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "image missing")
	}
	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot open image")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot read image")
	}

	ctx, cancel := s.ctx(c)
	defer cancel()
	img, err := s.uploads.Upload(ctx, userID(c), fh.Filename, fh.Header.Get(fiber.HeaderContentType), data)
	if err != nil {
		return err
	}
	return JSONSuccess(c, fiber.StatusCreated, img)
}
