package app

import (
	"log/slog"
	"os"

	"github.com/cilantra/cilantra/internal/credential"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.credential.enabled") {
		if err := credential.New(credential.Dependency{
			Ctx:        a.ctx,
			Config:     a.config,
			Instrument: a.ins,
			UID:        a.uid,
			Clock:      a.clock,
			Validator:  a.validator,
			Router:     a.router,
			Totp:       a.totp,
			DBConn:     a.dbConn,
		}); err != nil {
			slog.Error("failed to init module credential", "error", err)
			os.Exit(1)
		}
	}
}
