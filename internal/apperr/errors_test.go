package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, fiber.StatusOK},
		{"validation", fmt.Errorf("name too short: %w", ErrValidation), fiber.StatusBadRequest},
		{"join code", ErrInvalidJoinCode, fiber.StatusBadRequest},
		{"unauthorized", ErrUnauthorized, fiber.StatusUnauthorized},
		{"forbidden wrapped", fmt.Errorf("rename channel: %w", ErrForbidden), fiber.StatusForbidden},
		{"not found", ErrNotFound, fiber.StatusNotFound},
		{"already member", ErrAlreadyMember, fiber.StatusConflict},
		{"rate limited", ErrRateLimited, fiber.StatusTooManyRequests},
		{"unknown", errors.New("socket closed"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Status(tc.err))
		})
	}
}

func TestMessageHidesInternalErrors(t *testing.T) {
	assert.Equal(t, "internal error", Message(errors.New("connection refused 10.0.0.3:27017")))
	assert.Equal(t, "invalid join code", Message(ErrInvalidJoinCode))
}
