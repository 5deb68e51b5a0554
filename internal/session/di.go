package session

import (
	"github.com/foxseedlab/vcthread/internal/config"
	"github.com/foxseedlab/vcthread/internal/discord"
	"github.com/foxseedlab/vcthread/internal/repository"
	"github.com/foxseedlab/vcthread/internal/telemetry"
	"github.com/foxseedlab/vcthread/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Store, error) {
		return NewStore(), nil
	})
	do.Provide(injector, func(i do.Injector) (*Dispatcher, error) {
		return NewDispatcher(), nil
	})
	do.Provide(injector, func(i do.Injector) (*Coordinator, error) {
		cfg := do.MustInvoke[*config.Config](i)
		store := do.MustInvoke[*Store](i)
		dispatcher := do.MustInvoke[*Dispatcher](i)
		dc := do.MustInvoke[discord.Client](i)
		history := do.MustInvoke[repository.HistoryRepository](i)
		wh := do.MustInvoke[webhook.Sender](i)
		metrics := do.MustInvoke[*telemetry.Metrics](i)
		return NewCoordinator(cfg, store, dispatcher, dc, history, wh, metrics), nil
	})
	do.Provide(injector, func(i do.Injector) (*RenameHandler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		store := do.MustInvoke[*Store](i)
		dispatcher := do.MustInvoke[*Dispatcher](i)
		dc := do.MustInvoke[discord.Client](i)
		metrics := do.MustInvoke[*telemetry.Metrics](i)
		return NewRenameHandler(cfg, store, dispatcher, dc, metrics), nil
	})
}
