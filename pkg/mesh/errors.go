package mesh

import "errors"

// Errors surfaced at the facade. Inbound failures (bad decodes, duplicate
// packets, unverifiable signatures, failed decryptions) are never surfaced;
// they are dropped with a log line so a hostile neighbor cannot trigger
// user-visible errors.
var (
	ErrNotInitialized   = errors.New("node not initialized")
	ErrNotRunning       = errors.New("node not running")
	ErrAlreadyRunning   = errors.New("node already running")
	ErrPermissionDenied = errors.New("transport refused to start")
	ErrInvalidPeer      = errors.New("malformed peer id")
	ErrMessageTooLarge  = errors.New("message exceeds size budget")
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrSignatureFailed  = errors.New("signing failed")
	ErrNetworkError     = errors.New("transport write failed")
	ErrNoSessionKey     = errors.New("no session key for peer")
)
