package email

import (
	"context"
	"fmt"

	"github.com/smallbiznis/membrane/internal/event"
	"go.uber.org/zap"
)

// InviteNotifier mails freshly issued invitations. It subscribes to
// member.invited; delivery failures are the dispatcher's to report, the
// invitation itself is already committed.
type InviteNotifier struct {
	provider Provider
	log      *zap.Logger
}

func NewInviteNotifier(provider Provider, log *zap.Logger) *InviteNotifier {
	return &InviteNotifier{provider: provider, log: log}
}

// Register subscribes the notifier to the dispatcher.
func (n *InviteNotifier) Register(dispatcher *event.Dispatcher) {
	dispatcher.Register(event.MemberInvited, n.handle)
}

func (n *InviteNotifier) handle(ctx context.Context, ev event.Context) error {
	if ev.Invitation == nil {
		return nil
	}

	orgName := "an organization"
	if ev.Organization != nil {
		orgName = ev.Organization.Name
	}

	subject := fmt.Sprintf("You're invited to join %s", orgName)
	body := fmt.Sprintf(
		"<p>You have been invited to join <strong>%s</strong> as <strong>%s</strong>.</p>",
		orgName,
		ev.Invitation.Role,
	)

	n.log.Info("sending invitation email",
		zap.String("email", ev.Invitation.Email),
		zap.String("org", orgName),
	)
	return n.provider.Send(ctx, []string{ev.Invitation.Email}, subject, body)
}
