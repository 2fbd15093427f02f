package api

import (
	"errors"
	"fmt"

	"github.com/fathima-sithara/teamchat/internal/apperr"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

func JSONSuccess(c *fiber.Ctx, status int, payload interface{}) error {
	return c.Status(status).JSON(fiber.Map{"status": "ok", "data": payload})
}

func JSONError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"status": "error", "message": msg})
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

var validate = validator.New()

// FormatValidationErrors flattens validator output into client-facing entries.
func FormatValidationErrors(err error) []ValidationError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make([]ValidationError, len(ve))
	for i, fe := range ve {
		out[i] = ValidationError{Field: fe.Field(), Tag: fe.Tag()}
		switch fe.Tag() {
		case "required":
			out[i].Message = fmt.Sprintf("%s is required", fe.Field())
		case "email":
			out[i].Message = fmt.Sprintf("%s must be a valid email address", fe.Field())
		case "min":
			out[i].Message = fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
		case "max":
			out[i].Message = fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
		case "len":
			out[i].Message = fmt.Sprintf("%s must be exactly %s characters long", fe.Field(), fe.Param())
		default:
			out[i].Message = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
		}
	}
	return out
}

type validationFailure struct {
	fields []ValidationError
}

func (v *validationFailure) Error() string { return apperr.ErrValidation.Error() }
func (v *validationFailure) Unwrap() error { return apperr.ErrValidation }

// bind parses the JSON body into req and runs struct validation.
func bind(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return &validationFailure{fields: FormatValidationErrors(err)}
	}
	return nil
}

// errorHandler renders anything a handler returned as the JSON error envelope.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var vf *validationFailure
	if errors.As(err, &vf) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": vf.Error(),
			"errors":  vf.fields,
		})
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return JSONError(c, fe.Code, fe.Message)
	}
	status := apperr.Status(err)
	if status >= fiber.StatusInternalServerError {
		s.log.Errorw("request failed", "method", c.Method(), "path", c.Path(), "err", err)
	}
	return JSONError(c, status, apperr.Message(err))
}
