package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/cilantra/cilantra/internal/pkg/goerror"
	"github.com/cilantra/cilantra/internal/pkg/secret"
)

type LoginInput struct {
	Username string `validate:"required,max=100,identifier"`
	Code     string `validate:"required,max=8"`
}

// Login accepts a code that matches any of the user's verified devices,
// using the wide network-delay window. Unknown users and wrong codes are
// indistinguishable to the caller.
func (s *Usecase) Login(ctx context.Context, in LoginInput) error {
	ctx, span := s.startSpan(ctx, "Login")
	defer span.End()

	in.Username = strings.TrimSpace(in.Username)
	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	user, err := s.repoDB.GetUserByUsername(ctx, in.Username)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "login for unknown user", "username", in.Username)
		return goerror.NewBusiness("invalid username or code", goerror.CodeUnauthorized)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user", "username", in.Username, "error", err)
		return goerror.NewServer(err)
	}

	devices, err := s.repoDB.GetVerifiedDevices(ctx, user.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get verified devices", "user_id", user.ID, "error", err)
		return goerror.NewServer(err)
	}

	now := s.clock.Now()
	skew := s.loginSkew()

	for i := range devices {
		key, err := secret.Decode(devices[i].Secret)
		if err != nil {
			slog.ErrorContext(ctx, "stored secret is not valid base32",
				"device_id", devices[i].ID, "error", err)
			return goerror.NewServer(err)
		}

		if ok, offset := s.totp.Verify(in.Code, key, now, skew); ok {
			slog.InfoContext(ctx, "login succeeded",
				"username", in.Username, "device", devices[i].Name, "step_offset", offset)
			return nil
		}
	}

	slog.WarnContext(ctx, "login failed", "username", in.Username)
	return goerror.NewBusiness("invalid username or code", goerror.CodeUnauthorized)
}
