package wholesale

import "go.uber.org/fx"

var Module = fx.Module("providers.wholesale",
	fx.Provide(NewHTTPClient),
)
