package packet

import "errors"

var (
	// ErrPayloadTooLarge indicates the payload doesn't fit the length byte.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrChecksum indicates a received frame failed checksum verification.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrLength indicates a received frame announced an oversize payload.
	ErrLength = errors.New("length exceeds max payload")
)
