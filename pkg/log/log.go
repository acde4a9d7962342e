// Package log provides the structured logger used throughout the node. It is a
// thin wrapper over cometbft's libs/log, scoped per component with With("module", ...)
// the same way the reference node scopes its loggers.
package log

import (
	"io"
	"os"

	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// Logger is the structured, leveled logger interface every long-lived
// component is handed. The pure packages (pkg/bft, pkg/account, pkg/validator)
// take no logger — only the runtime and its I/O-facing collaborators do.
type Logger = cmtlog.Logger

// NewDefault builds the node's root logger, writing to w (typically os.Stdout),
// scoped with the given module name.
func NewDefault(w io.Writer, module string) Logger {
	return cmtlog.NewTMLogger(cmtlog.NewSyncWriter(w)).With("module", module)
}

// NewNop returns a logger that discards everything, used by tests that don't
// care about log output.
func NewNop() Logger {
	return cmtlog.NewNopLogger()
}

// Stdout is a convenience root logger for CLI commands.
func Stdout(module string) Logger {
	return NewDefault(os.Stdout, module)
}
