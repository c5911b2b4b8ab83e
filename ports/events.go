package ports

import (
	"context"

	"github.com/layer-3/nametag/core"
)

// EventPublisher publishes identity events to other services
type EventPublisher interface {
	PublishUsernameChanged(ctx context.Context, identity *core.Identity) error
}
