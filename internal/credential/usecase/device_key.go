package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/cilantra/cilantra/internal/credential/entity"
	"github.com/cilantra/cilantra/internal/pkg/goerror"
	"github.com/cilantra/cilantra/internal/pkg/secret"
)

type DeviceKeyInput struct {
	Username   string `validate:"required,max=100,identifier"`
	DeviceName string `validate:"required,max=100,identifier"`
}

type DeviceKeyOutput struct {
	Secret string
	URI    string
}

// DeviceKey returns the shared secret for (username, device), creating
// the user and the device on first reference. The call is idempotent: an
// existing device always yields its original secret.
func (s *Usecase) DeviceKey(ctx context.Context, in DeviceKeyInput) (*DeviceKeyOutput, error) {
	ctx, span := s.startSpan(ctx, "DeviceKey")
	defer span.End()

	in.Username = strings.TrimSpace(in.Username)
	in.DeviceName = strings.TrimSpace(in.DeviceName)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	user, err := s.getOrCreateUser(ctx, in.Username)
	if err != nil {
		slog.ErrorContext(ctx, "failed to resolve user", "username", in.Username, "error", err)
		return nil, goerror.NewServer(err)
	}

	device, err := s.getOrCreateDevice(ctx, user.ID, in.DeviceName)
	if err != nil {
		slog.ErrorContext(ctx, "failed to resolve device",
			"username", in.Username, "device", in.DeviceName, "error", err)
		return nil, goerror.NewServer(err)
	}

	key, err := secret.Decode(device.Secret)
	if err != nil {
		slog.ErrorContext(ctx, "stored secret is not valid base32",
			"device_id", device.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	uri, err := s.totp.KeyURI(fmt.Sprintf("%s (%s)", in.Username, in.DeviceName), key)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build provisioning uri", "device_id", device.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &DeviceKeyOutput{
		Secret: device.Secret,
		URI:    uri,
	}, nil
}

// getOrCreateUser resolves a username to a user row. A concurrent create
// of the same username surfaces as ErrConflict, which is retried so the
// loser of the race reads the winner's row.
func (s *Usecase) getOrCreateUser(ctx context.Context, username string) (*entity.User, error) {
	var user *entity.User

	backoff := retry.WithMaxRetries(2, retry.NewConstant(10*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		existing, err := s.repoDB.GetUserByUsername(ctx, username)
		if err == nil {
			user = existing
			return nil
		}
		if !errors.Is(err, goerror.ErrNotFound) {
			return err
		}

		created := entity.User{
			ID:        s.uid.Generate(),
			Username:  username,
			CreatedAt: s.clock.Now(),
		}
		if err := s.repoDB.CreateUser(ctx, created); err != nil {
			if errors.Is(err, goerror.ErrConflict) {
				return retry.RetryableError(err)
			}
			return err
		}

		slog.InfoContext(ctx, "created user", "username", username, "user_id", created.ID)
		user = &created
		return nil
	})

	return user, err
}

func (s *Usecase) getOrCreateDevice(ctx context.Context, userID int64, name string) (*entity.Device, error) {
	var device *entity.Device

	backoff := retry.WithMaxRetries(2, retry.NewConstant(10*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		existing, err := s.repoDB.GetDevice(ctx, userID, name)
		if err == nil {
			device = existing
			return nil
		}
		if !errors.Is(err, goerror.ErrNotFound) {
			return err
		}

		key, err := secret.Generate()
		if err != nil {
			return err
		}

		created := entity.Device{
			ID:        s.uid.Generate(),
			UserID:    userID,
			Name:      name,
			Secret:    secret.Encode(key),
			CreatedAt: s.clock.Now(),
		}
		if err := s.repoDB.CreateDevice(ctx, created); err != nil {
			if errors.Is(err, goerror.ErrConflict) {
				return retry.RetryableError(err)
			}
			return err
		}

		slog.InfoContext(ctx, "created device", "user_id", userID, "device", name, "device_id", created.ID)
		device = &created
		return nil
	})

	return device, err
}
