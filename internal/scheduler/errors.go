package scheduler

import "fmt"

// UnknownPointerError reports an "unlock $<id>" naming an id absent from
// the current context's pointer-ID map.
type UnknownPointerError struct {
	PointerID string
}

func (e *UnknownPointerError) Error() string {
	return fmt.Sprintf("unknown pointer $%s", e.PointerID)
}

// AutomationLoopError documents a detected automation cycle for logging
// and testing purposes. It is never returned to a caller as a Go error —
// per spec §7, an AutomationLoop is recovered locally by falling back to
// the driver, so callers only ever observe that fallback, not this type.
type AutomationLoopError struct {
	Rendering string
}

func (e *AutomationLoopError) Error() string {
	return "automation loop detected, falling back to driver"
}

// MissingPromiseError indicates a Reply was issued against a workspace
// address with no recorded promise pair. This can only happen if a
// workspace was constructed outside the scheduler's own bookkeeping — a
// programming error, not a driver-recoverable one.
type MissingPromiseError struct {
	WorkspaceAddr fmt.Stringer
}

func (e *MissingPromiseError) Error() string {
	return fmt.Sprintf("no promise pair recorded for workspace %s", e.WorkspaceAddr)
}
