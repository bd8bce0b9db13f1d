package credential

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cilantra/cilantra/internal/credential/inbound"
	"github.com/cilantra/cilantra/internal/credential/outbound/db"
	"github.com/cilantra/cilantra/internal/credential/usecase"
	"github.com/cilantra/cilantra/internal/pkg/clock"
	"github.com/cilantra/cilantra/internal/pkg/config"
	"github.com/cilantra/cilantra/internal/pkg/instrument"
	"github.com/cilantra/cilantra/internal/pkg/otp"
	"github.com/cilantra/cilantra/internal/pkg/router"
	"github.com/cilantra/cilantra/internal/pkg/uid"
	"github.com/cilantra/cilantra/internal/pkg/validator"
)

type Dependency struct {
	Ctx        context.Context            `validate:"required"`
	DBConn     *pgxpool.Pool              `validate:"required"`
	Router     *router.Router             `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	Totp       otp.OTP                    `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	repo := db.NewDB(dep.DBConn, dep.Instrument)

	if dep.Config.GetBool("database.auto_migrate") {
		if err := repo.EnsureSchema(dep.Ctx); err != nil {
			return err
		}
	}

	uc := usecase.New(usecase.Dependency{
		RepoDB:     repo,
		Validator:  dep.Validator,
		Config:     dep.Config,
		UID:        dep.UID,
		Totp:       dep.Totp,
		Clock:      dep.Clock,
		Instrument: dep.Instrument,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}
