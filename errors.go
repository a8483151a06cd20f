package srtp

import (
	"errors"
	"fmt"
)

// Errors the transport layer is expected to classify. Packets failing
// with either of these must be dropped; they may be counted as a
// security metric upstream but are never retryable.
var (
	// ErrFailedToVerifyAuthTag means the packet authentication tag did
	// not match the one computed over the received bytes.
	ErrFailedToVerifyAuthTag = errors.New("failed to verify auth tag")

	// ErrDuplicated means the packet index was accepted once already,
	// or fell behind the replay window.
	ErrDuplicated = errors.New("duplicated packet")
)

var (
	errShortSrtpMasterKey  = errors.New("SRTP master key is not long enough")
	errShortSrtpMasterSalt = errors.New("SRTP master salt is not long enough")
	errNoSuchSRTPProfile   = errors.New("no such SRTP profile")
	errNonZeroKDFIndex     = errors.New("indexOverKdr > 0 is not supported yet")

	errTooShortRTP        = errors.New("packet is too short to be an SRTP packet")
	errTooShortRTCP       = errors.New("packet is too short to be an SRTCP packet")
	errBadRTPVersion      = errors.New("invalid RTP version")
	errBadIVLength        = errors.New("bad iv length in xorBytesCTR")
	errExporterWrongLabel = errors.New("exporter called with wrong label")

	errNoConfig            = errors.New("no config provided")
	errNoConn              = errors.New("no conn provided")
	errSessionNotStarted   = errors.New("session has not been started yet")
	errFailedTypeAssertion = errors.New("failed type assertion")

	errStreamNotInited     = errors.New("stream has not been inited, unable to close")
	errStreamAlreadyClosed = errors.New("stream is already closed")
	errStreamAlreadyInited = errors.New("stream is already inited")
)

type duplicatedError struct {
	Proto string // srtp or srtcp
	SSRC  uint32
	Index uint32 // sequence number or SRTCP index
}

func (e *duplicatedError) Error() string {
	return fmt.Sprintf("%s ssrc=%d index=%d: %v", e.Proto, e.SSRC, e.Index, ErrDuplicated)
}

func (e *duplicatedError) Unwrap() error {
	return ErrDuplicated
}
