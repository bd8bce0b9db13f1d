package inbound

import (
	"github.com/cilantra/cilantra/internal/credential/usecase"
	"github.com/cilantra/cilantra/internal/pkg/router"
)

// HTTPEndpoint exposes HTTP handlers for TOTP enrollment, verification
// and login.
type HTTPEndpoint struct {
	uc uc
}

// DeviceKey returns the device's shared secret, creating the user and
// the device on first reference. Repeat calls return the same secret.
func (h *HTTPEndpoint) DeviceKey(r *router.Request) (any, error) {
	resp, err := h.uc.DeviceKey(r.Context(), usecase.DeviceKeyInput{
		Username:   r.GetParam("username"),
		DeviceName: r.GetParam("device"),
	})
	if err != nil {
		return nil, err
	}

	return DeviceKeyResponse{
		Secret: resp.Secret,
		URI:    resp.URI,
	}, nil
}

// Verify checks a code against the device's secret and marks the device
// verified on the first success.
func (h *HTTPEndpoint) Verify(r *router.Request) (any, error) {
	var req VerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.Verify(r.Context(), usecase.VerifyInput{
		Username:   r.GetParam("username"),
		DeviceName: r.GetParam("device"),
		Code:       req.Code,
	}); err != nil {
		return nil, err
	}

	return VerifyResponse{}, nil
}

// Login accepts a code matching any of the user's verified devices.
func (h *HTTPEndpoint) Login(r *router.Request) (any, error) {
	var req LoginRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.Login(r.Context(), usecase.LoginInput{
		Username: req.Username,
		Code:     req.Code,
	}); err != nil {
		return nil, err
	}

	return LoginResponse{}, nil
}
