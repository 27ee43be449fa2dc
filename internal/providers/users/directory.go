package users

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

// Directory is the already-available user service the pipeline calls into for
// contact details. Only the lookup the pipeline needs is modeled here.
type Directory interface {
	EmailByID(ctx context.Context, id snowflake.ID) (string, error)
}

// NoOpDirectory stands in when no user service is wired; gateways receive an
// empty email and notification mail is skipped.
type NoOpDirectory struct{}

func (NoOpDirectory) EmailByID(ctx context.Context, id snowflake.ID) (string, error) {
	return "", nil
}

var Module = fx.Module("providers.users",
	fx.Provide(func() Directory { return NoOpDirectory{} }),
)
