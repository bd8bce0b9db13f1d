package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/cilantra/cilantra/internal/pkg/goerror"
	"github.com/cilantra/cilantra/internal/pkg/secret"
)

type VerifyInput struct {
	Username   string `validate:"required,max=100,identifier"`
	DeviceName string `validate:"required,max=100,identifier"`
	Code       string `validate:"required,max=8"`
}

// Verify checks a code against the device's secret using the narrow
// window. The first success flips the device to verified; subsequent
// successes are state-neutral re-checks. A malformed code is an ordinary
// verification failure, not a distinct error.
func (s *Usecase) Verify(ctx context.Context, in VerifyInput) error {
	ctx, span := s.startSpan(ctx, "Verify")
	defer span.End()

	in.Username = strings.TrimSpace(in.Username)
	in.DeviceName = strings.TrimSpace(in.DeviceName)
	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	user, err := s.repoDB.GetUserByUsername(ctx, in.Username)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "verification for unknown user", "username", in.Username)
		return goerror.NewBusiness("user or device not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user", "username", in.Username, "error", err)
		return goerror.NewServer(err)
	}

	device, err := s.repoDB.GetDevice(ctx, user.ID, in.DeviceName)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "verification for unknown device",
			"username", in.Username, "device", in.DeviceName)
		return goerror.NewBusiness("user or device not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get device",
			"username", in.Username, "device", in.DeviceName, "error", err)
		return goerror.NewServer(err)
	}

	key, err := secret.Decode(device.Secret)
	if err != nil {
		slog.ErrorContext(ctx, "stored secret is not valid base32", "device_id", device.ID, "error", err)
		return goerror.NewServer(err)
	}

	ok, offset := s.totp.Verify(in.Code, key, s.clock.Now(), s.verifySkew())
	if !ok {
		slog.WarnContext(ctx, "verification failed", "username", in.Username, "device", in.DeviceName)
		return goerror.NewBusiness("invalid code", goerror.CodeUnauthorized)
	}

	slog.InfoContext(ctx, "verification succeeded",
		"username", in.Username, "device", in.DeviceName, "step_offset", offset)

	if device.Verified {
		return nil
	}

	if err := s.repoDB.MarkDeviceVerified(ctx, device.ID); err != nil {
		slog.ErrorContext(ctx, "failed to mark device verified", "device_id", device.ID, "error", err)
		return goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "device verified", "username", in.Username, "device", in.DeviceName)
	return nil
}
