package digitalll

import "github.com/charmbracelet/log"

// componentLogger returns a charmbracelet/log logger tagged with the
// owning component's name, used for the "log and skip" error paths
// spec.md §7 calls programmer errors and transient numerical
// inconsistencies: a missing reference rx_time, an input offset past the
// end of the current window, an out-of-order ContextTagManager.Add call.
// Nothing routed through this logger ever aborts a Work call.
func componentLogger(component string) *log.Logger {
	return log.Default().With("component", component)
}
