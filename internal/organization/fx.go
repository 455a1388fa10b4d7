package organization

import (
	"github.com/smallbiznis/membrane/internal/event"
	orgevent "github.com/smallbiznis/membrane/internal/organization/event"
	"github.com/smallbiznis/membrane/internal/organization/repository"
	"github.com/smallbiznis/membrane/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization",
	fx.Provide(repository.NewRepository),
	fx.Provide(orgevent.NewOutbox),
	fx.Provide(service.NewService),
	fx.Invoke(registerOutbox),
)

func registerOutbox(outbox *orgevent.Outbox, dispatcher *event.Dispatcher) {
	outbox.RegisterAll(dispatcher)
}
