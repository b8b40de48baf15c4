package locks

import "errors"

var (
	// ErrScriptBuild indicates the lock script could not be assembled.
	ErrScriptBuild = errors.New("locks: failed to build lock script")

	// ErrNotLockScript indicates a script is not a CLTV lock script.
	ErrNotLockScript = errors.New("locks: not a lock script")
)
