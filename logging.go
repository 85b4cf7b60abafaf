package enforce

import "github.com/oarkflow/enforce/logger"

// Logger is re-exported so that callers wiring a custom logger only need the
// root package.
type Logger = logger.Logger
