package chanfunding

import "github.com/btcsuite/btclog"

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
