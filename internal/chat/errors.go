package chat

import (
	"errors"
	"fmt"
)

// Validation and not-found failures are synchronous rejections: nothing is
// persisted and no push is attempted.
var (
	// ErrEmptyMessage rejects a send with neither text nor image.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrReceiverNotFound rejects a send to an unknown receiver.
	ErrReceiverNotFound = errors.New("receiver not found")
)

// AssetError wraps an asset-store failure. The send aborts before anything
// is persisted; the upstream cause is surfaced to the caller.
type AssetError struct {
	Err error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset upload failed: %v", e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}
