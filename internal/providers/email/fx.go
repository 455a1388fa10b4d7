package email

import (
	"github.com/smallbiznis/membrane/internal/config"
	"github.com/smallbiznis/membrane/internal/event"
	"go.uber.org/fx"
)

func NewFromConfig(cfg config.Config) Provider {
	if cfg.Email.SMTPHost == "" {
		return &NoOpProvider{}
	}
	return NewSMTP(Config{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.SMTPFrom,
	})
}

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
	fx.Provide(NewInviteNotifier),
	fx.Invoke(registerNotifier),
)

func registerNotifier(notifier *InviteNotifier, dispatcher *event.Dispatcher) {
	notifier.Register(dispatcher)
}
