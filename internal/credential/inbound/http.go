package inbound

import (
	"context"

	"github.com/cilantra/cilantra/internal/credential/usecase"
	"github.com/cilantra/cilantra/internal/pkg/router"
)

type uc interface {
	DeviceKey(ctx context.Context, in usecase.DeviceKeyInput) (*usecase.DeviceKeyOutput, error)
	Verify(ctx context.Context, in usecase.VerifyInput) error
	Login(ctx context.Context, in usecase.LoginInput) error
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	// Enrollment & verification
	r.GET("/api/v1/totp/:username/:device/key", end.DeviceKey)
	r.POST("/api/v1/totp/:username/:device/verify", end.Verify)

	// Login
	r.POST("/api/v1/login", end.Login)
}
