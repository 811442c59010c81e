package client

import (
	"github.com/famomatic/onesie/internal/crypto"
	"github.com/famomatic/onesie/internal/dispatch"
	"github.com/famomatic/onesie/internal/liveness"
	"github.com/famomatic/onesie/internal/onesie"
	"github.com/famomatic/onesie/internal/session"
	"github.com/famomatic/onesie/internal/tvconfig"
)

// Sentinel errors callers can match with errors.Is.
var (
	// ErrQueueFull means too many requests are already pending.
	ErrQueueFull = dispatch.ErrQueueFull

	// ErrClosed means the client was closed.
	ErrClosed = dispatch.ErrClosed

	// ErrNotPlayable means the platform refused playback for the video.
	ErrNotPlayable = onesie.ErrNotPlayable

	// ErrURLResolution means the input could not be mapped to a video id.
	ErrURLResolution = session.ErrURLResolution

	// ErrAuthentication means a response failed integrity verification.
	ErrAuthentication = crypto.ErrAuthentication

	// ErrMalformedConfig means the platform served an unusable client
	// config.
	ErrMalformedConfig = tvconfig.ErrMalformedConfig

	// ErrLivenessCheck means the resolved stream URL never became
	// servable within the probe's retry budget.
	ErrLivenessCheck = liveness.ErrLivenessCheck
)

// ProtocolError reports a non-OK backend status; match with errors.As.
type ProtocolError = onesie.ProtocolError
