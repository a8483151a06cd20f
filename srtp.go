package srtp

import (
	"crypto/aes"
	"crypto/cipher"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/transport/v3/replaydetector"
)

const rtpHeaderSize = 12

// srtpContext protects and unprotects RTP packets for one direction.
// It holds the SRTP-labeled session keys and the per-sender stream
// states, created lazily on the first packet from each SSRC.
type srtpContext struct {
	block          cipher.Block
	sessionSalt    []byte
	sessionAuthKey []byte
	authTagLen     int

	// mu guards states and every srtpSSRCState behind it. It is held
	// only for sequence and replay bookkeeping; AES and HMAC work runs
	// outside, so unrelated streams never serialize on crypto.
	mu                sync.Mutex
	states            map[uint32]*srtpSSRCState
	newReplayDetector func() replaydetector.ReplayDetector
}

// srtpSSRCState is the per-sender stream state: rollover counter, the
// raw sequence number seen last, and the replay window. It lives and
// dies with the owning context.
type srtpSSRCState struct {
	ssrc               uint32
	rolloverCounter    uint32
	seen               bool
	lastSequenceNumber uint16
	replayDetector     replaydetector.ReplayDetector
}

func newSRTPContext(keys *sessionKeys, authTagLen int) (*srtpContext, error) {
	block, err := aes.NewCipher(keys.srtpSessionKey)
	if err != nil {
		return nil, err
	}

	return &srtpContext{
		block:          block,
		sessionSalt:    keys.srtpSessionSalt,
		sessionAuthKey: keys.srtpSessionAuthKey,
		authTagLen:     authTagLen,
		states:         map[uint32]*srtpSSRCState{},
	}, nil
}

// advance extends the raw 16 bit sequence number into the 48 bit packet
// index, updating the rollover counter with a last-sequence heuristic:
// a jump of more than 2^15 downwards from a low last sequence is a late
// pre-rollover packet (counter goes back), a jump of more than 2^15
// upwards from a high last sequence is a forward rollover (counter
// advances). lastSequenceNumber is recorded on every call, so heavy
// reordering can destabilize the counter; RFC 3711 Appendix A describes
// a stricter alternative that compares against a stabilized reference.
func (s *srtpSSRCState) advance(sequenceNumber uint16) (roc uint32, index uint64) {
	if !s.seen {
		s.seen = true
		s.lastSequenceNumber = sequenceNumber

		return s.rolloverCounter, uint64(s.rolloverCounter)<<16 | uint64(sequenceNumber)
	}

	last := int(s.lastSequenceNumber)
	seq := int(sequenceNumber)
	switch {
	case last < 1<<15 && seq-last > 1<<15:
		if s.rolloverCounter > 0 { // never underflow below the first rollover
			s.rolloverCounter--
		}
	case last >= 1<<15 && last-seq > 1<<15:
		s.rolloverCounter++
	}
	s.lastSequenceNumber = sequenceNumber

	return s.rolloverCounter, uint64(s.rolloverCounter)<<16 | uint64(sequenceNumber)
}

// getState returns the stream state for ssrc, creating it on the first
// packet. Callers must hold c.mu; the lock makes the get-or-create
// atomic so two goroutines never race a duplicate state into the map.
func (c *srtpContext) getState(ssrc uint32) *srtpSSRCState {
	s, ok := c.states[ssrc]
	if ok {
		return s
	}

	s = &srtpSSRCState{
		ssrc:           ssrc,
		replayDetector: c.newReplayDetector(),
	}
	c.states[ssrc] = s

	return s
}

func (c *srtpContext) roc(ssrc uint32) (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.states[ssrc]
	if !ok {
		return 0, false
	}

	return s.rolloverCounter, true
}

func (c *srtpContext) setROC(ssrc uint32, roc uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.getState(ssrc).rolloverCounter = roc
}

// parseHeader unmarshals and validates the fixed RTP header including
// the CSRC list and extension block, returning the full header length.
func parseHeader(header *rtp.Header, buf []byte) (int, error) {
	if len(buf) < rtpHeaderSize {
		return 0, errTooShortRTP
	}

	headerLen, err := header.Unmarshal(buf)
	if err != nil {
		return 0, err
	}
	if header.Version != 2 {
		return 0, errBadRTPVersion
	}

	return headerLen, nil
}

func (c *srtpContext) encryptRTP(dst, plaintext []byte, header *rtp.Header) ([]byte, error) {
	headerLen, err := parseHeader(header, plaintext)
	if err != nil {
		return nil, err
	}

	dst = growBufferSize(dst, len(plaintext)+c.authTagLen)

	c.mu.Lock()
	roc, _ := c.getState(header.SSRC).advance(header.SequenceNumber)
	c.mu.Unlock()

	// The header, CSRC list and extension travel in the clear.
	if !isSameBuffer(dst, plaintext) {
		copy(dst, plaintext[:headerLen])
	}

	counter := generateCounter(header.SequenceNumber, roc, header.SSRC, c.sessionSalt)
	if err := xorBytesCTR(c.block, counter[:], dst[headerLen:len(plaintext)], plaintext[headerLen:]); err != nil {
		return nil, err
	}

	authTag, err := generateAuthTag(c.sessionAuthKey, dst[:len(plaintext)], c.authTagLen)
	if err != nil {
		return nil, err
	}
	copy(dst[len(plaintext):], authTag)

	return dst, nil
}

func (c *srtpContext) decryptRTP(dst, encrypted []byte, header *rtp.Header) ([]byte, error) {
	if len(encrypted) < c.authTagLen+rtpHeaderSize {
		return nil, errTooShortRTP
	}

	// Authenticate before touching any stream state; a forged packet
	// must not be able to move the rollover counter or poison the
	// replay window.
	actualTag := encrypted[len(encrypted)-c.authTagLen:]
	ciphertext := encrypted[:len(encrypted)-c.authTagLen]
	if err := verifyAuthTag(c.sessionAuthKey, ciphertext, actualTag); err != nil {
		return nil, err
	}

	headerLen, err := parseHeader(header, ciphertext)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	s := c.getState(header.SSRC)
	roc, index := s.advance(header.SequenceNumber)
	markAsValid, ok := s.replayDetector.Check(index)
	if !ok {
		c.mu.Unlock()

		return nil, &duplicatedError{Proto: "srtp", SSRC: header.SSRC, Index: uint32(header.SequenceNumber)}
	}
	markAsValid()
	c.mu.Unlock()

	dst = growBufferSize(dst, len(ciphertext))
	if !isSameBuffer(dst, ciphertext) {
		copy(dst, ciphertext[:headerLen])
	}

	counter := generateCounter(header.SequenceNumber, roc, header.SSRC, c.sessionSalt)
	if err := xorBytesCTR(c.block, counter[:], dst[headerLen:], ciphertext[headerLen:]); err != nil {
		return nil, err
	}

	return dst, nil
}

// DecryptRTP decrypts an SRTP packet, writing to the dst buffer
// provided. If dst is too small a new one is allocated. If a rtp.Header
// is provided it is populated from the packet.
func (c *Context) DecryptRTP(dst, encrypted []byte, header *rtp.Header) ([]byte, error) {
	if header == nil {
		header = &rtp.Header{}
	}

	return c.srtp.decryptRTP(dst, encrypted, header)
}

// EncryptRTP encrypts a plaintext RTP packet, writing to the dst buffer
// provided. If dst does not have capacity for the packet plus the auth
// tag a new buffer is allocated. If a rtp.Header is provided it is
// populated from the plaintext.
func (c *Context) EncryptRTP(dst, plaintext []byte, header *rtp.Header) ([]byte, error) {
	if header == nil {
		header = &rtp.Header{}
	}

	return c.srtp.encryptRTP(dst, plaintext, header)
}
