package onesie

import (
	"errors"
	"fmt"
)

var (
	// ErrPlayerResponseNotFound is returned when the multipart stream
	// carried no player response record.
	ErrPlayerResponseNotFound = errors.New("onesie: no player response in stream")

	// ErrCryptoParamsMissing is returned when the player response header
	// lacks the decryption parameters block.
	ErrCryptoParamsMissing = errors.New("onesie: crypto params missing from header")
)

// ProtocolError reports a non-OK status from the edge proxy or the
// proxied backend.
type ProtocolError struct {
	ProxyStatus int
	HTTPStatus  int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("onesie: backend rejected request (proxy status %d, http status %d)", e.ProxyStatus, e.HTTPStatus)
}
