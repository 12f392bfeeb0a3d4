package kake

import "kake/internal/buildctx"

// BuildContext is the host-supplied key/value map a build request carries.
// Rules see only the subset they declare via UsedContextKeys.
type BuildContext = buildctx.Context
