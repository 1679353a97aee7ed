package common

import "errors"

// ErrModulePaused is returned when a mutating operation reaches a module the
// operator has paused. Read-only queries are not guarded.
var ErrModulePaused = errors.New("module paused")

// PauseView reports the pause state for a named module.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the module is paused. A nil view or empty
// module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
