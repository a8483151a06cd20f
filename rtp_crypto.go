package srtp

import (
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// RTPCrypto is the four-operation surface the transport layer holds: a
// protect/unprotect pair for RTP and one for RTCP. *Context implements
// it.
type RTPCrypto interface {
	EncryptRTP(dst, plaintext []byte, header *rtp.Header) ([]byte, error)
	DecryptRTP(dst, encrypted []byte, header *rtp.Header) ([]byte, error)
	EncryptRTCP(dst, plaintext []byte, header *rtcp.Header) ([]byte, error)
	DecryptRTCP(dst, encrypted []byte, header *rtcp.Header) ([]byte, error)
}
