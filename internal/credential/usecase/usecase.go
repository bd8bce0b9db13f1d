package usecase

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/cilantra/cilantra/internal/credential/entity"
	"github.com/cilantra/cilantra/internal/pkg/clock"
	"github.com/cilantra/cilantra/internal/pkg/config"
	"github.com/cilantra/cilantra/internal/pkg/instrument"
	"github.com/cilantra/cilantra/internal/pkg/otp"
	"github.com/cilantra/cilantra/internal/pkg/uid"
	"github.com/cilantra/cilantra/internal/pkg/validator"
)

type repoDB interface {
	GetUserByUsername(ctx context.Context, username string) (*entity.User, error)
	GetDevice(ctx context.Context, userID int64, name string) (*entity.Device, error)
	GetVerifiedDevices(ctx context.Context, userID int64) ([]entity.Device, error)

	CreateUser(ctx context.Context, user entity.User) error
	CreateDevice(ctx context.Context, device entity.Device) error

	MarkDeviceVerified(ctx context.Context, deviceID int64) error
}

type Usecase struct {
	repoDB    repoDB
	validator validator.Validator
	cfg       config.Config
	uid       uid.NumberID
	totp      otp.OTP
	clock     clock.Clocker
	ins       instrument.Instrumentation
}

type Dependency struct {
	RepoDB     repoDB
	Validator  validator.Validator
	Config     config.Config
	UID        uid.NumberID
	Totp       otp.OTP
	Clock      clock.Clocker
	Instrument instrument.Instrumentation
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:    dep.RepoDB,
		validator: dep.Validator,
		cfg:       dep.Config,
		uid:       dep.UID,
		totp:      dep.Totp,
		clock:     dep.Clock,
		ins:       dep.Instrument,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("credential.usecase").Start(ctx, name)
}

// verifySkew is the narrow window used when confirming an enrollment.
func (s *Usecase) verifySkew() uint {
	if v := s.cfg.GetUint("totp.skew"); v > 0 {
		return v
	}

	return otp.DefaultSkew
}

// loginSkew is the wider window used at login, where network delay adds
// to clock drift.
func (s *Usecase) loginSkew() uint {
	if v := s.cfg.GetUint("totp.login_skew"); v > 0 {
		return v
	}

	return otp.NetworkDelaySkew
}
