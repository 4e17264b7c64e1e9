package handler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/service"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{service.ErrInvalidScore, fiber.StatusBadRequest},
		{service.ErrUploadsDisabled, fiber.StatusBadRequest},
		{errInvalidID, fiber.StatusBadRequest},
		{service.ErrHomeworkLocked, fiber.StatusForbidden},
		{service.ErrNotEnrolled, fiber.StatusForbidden},
		{service.ErrSeedUnauthorized, fiber.StatusForbidden},
		{service.ErrHomeworkNotFound, fiber.StatusNotFound},
		{fmt.Errorf("load: %w", service.ErrGroupNotFound), fiber.StatusNotFound},
		{service.ErrAlreadySubmitted, fiber.StatusConflict},
		{service.ErrDuplicateSequence, fiber.StatusConflict},
		{service.ErrSubmissionDeadline, fiber.StatusUnprocessableEntity},
		{errors.New("disk full"), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		require.Equal(t, tc.status, statusFor(tc.err), tc.err.Error())
	}
}
