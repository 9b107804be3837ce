package onchainwallet

import "github.com/btcsuite/btclog"

// log is the package-level logger for onchainwallet. It is set
// to a no-op backend by default so that library consumers who don't call
// UseLogger see no output.
var log btclog.Logger

func init() {
	DisableLog()
}

// DisableLog disables all logging output for this package.
func DisableLog() {
	log = btclog.Disabled
}

// UseLogger installs a specified logger for this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
