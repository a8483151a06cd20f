package srtp

import (
	"github.com/pion/transport/v3/replaydetector"
	"github.com/pkg/errors"
)

const (
	maxROC            = (1 << 32) - 1
	maxSequenceNumber = 65535

	defaultReplayProtectionWindow = 64
)

// Context is the session-scoped media crypto handle. It owns one SRTP
// context and one SRTCP context derived from a single master key and
// protection profile, and exposes protect/unprotect for both packet
// kinds. It is the only type the transport layer needs to hold.
//
// A Context transforms packets for one direction only; use two
// contexts for a bidirectional session. A single Context is safe for
// concurrent use: per-sender state is guarded by a lock held only
// while sequence and replay bookkeeping runs, the cipher work itself
// executes outside it.
type Context struct {
	profile ProtectionProfile

	srtp  *srtpContext
	srtcp *srtcpContext
}

// ContextOption represents option of Context using the functional
// options pattern.
type ContextOption func(*Context) error

// CreateContext creates a new SRTP Context. The master key and salt
// lengths must match the protection profile; mismatches fail here, at
// construction time, rather than per packet.
func CreateContext(masterKey, masterSalt []byte, profile ProtectionProfile, opts ...ContextOption) (*Context, error) {
	keyLen, err := profile.keyLen()
	if err != nil {
		return nil, err
	}
	saltLen, err := profile.saltLen()
	if err != nil {
		return nil, err
	}

	if len(masterKey) != keyLen {
		return nil, errors.Wrapf(errShortSrtpMasterKey, "expected(%d) actual(%d)", keyLen, len(masterKey))
	} else if len(masterSalt) != saltLen {
		return nil, errors.Wrapf(errShortSrtpMasterSalt, "expected(%d) actual(%d)", saltLen, len(masterSalt))
	}

	authTagLen, err := profile.authTagLen()
	if err != nil {
		return nil, err
	}

	keys, err := deriveSessionKeys(masterKey, masterSalt, profile)
	if err != nil {
		return nil, err
	}

	ctx := &Context{profile: profile}

	if ctx.srtp, err = newSRTPContext(keys, authTagLen); err != nil {
		return nil, err
	}
	if ctx.srtcp, err = newSRTCPContext(keys, authTagLen); err != nil {
		return nil, err
	}

	for _, o := range append(
		[]ContextOption{ // Default options
			SRTPNoReplayProtection(),
			SRTCPNoReplayProtection(),
		},
		opts...,
	) {
		if err := o(ctx); err != nil {
			return nil, err
		}
	}

	return ctx, nil
}

// ROC returns SRTP rollover counter value of specified SSRC.
func (c *Context) ROC(ssrc uint32) (uint32, bool) {
	return c.srtp.roc(ssrc)
}

// SetROC sets SRTP rollover counter value of specified SSRC.
func (c *Context) SetROC(ssrc uint32, roc uint32) {
	c.srtp.setROC(ssrc, roc)
}

// Index returns the current SRTCP index. The index is owned by the
// SRTCP context as a whole, not by any single sender.
func (c *Context) Index() uint32 {
	return c.srtcp.index.Load()
}

// SetIndex sets the SRTCP index. The next encrypted packet consumes
// the following value.
func (c *Context) SetIndex(index uint32) {
	c.srtcp.index.Store(index & maxSRTCPIndex)
}

// nopReplayDetector accepts every packet index. Used when replay
// protection is not requested.
type nopReplayDetector struct{}

func (nopReplayDetector) Check(uint64) (func() bool, bool) {
	return func() bool { return true }, true
}

// SRTPReplayProtection sets SRTP replay protection window size.
func SRTPReplayProtection(windowSize uint) ContextOption {
	return func(c *Context) error {
		c.srtp.newReplayDetector = func() replaydetector.ReplayDetector {
			return replaydetector.New(windowSize, maxROC<<16|maxSequenceNumber)
		}

		return nil
	}
}

// SRTCPReplayProtection sets SRTCP replay protection window size. The
// detector allows wrapping because the 31 bit SRTCP index itself wraps.
func SRTCPReplayProtection(windowSize uint) ContextOption {
	return func(c *Context) error {
		c.srtcp.newReplayDetector = func() replaydetector.ReplayDetector {
			return replaydetector.WithWrap(windowSize, maxSRTCPIndex)
		}

		return nil
	}
}

// SRTPNoReplayProtection disables SRTP replay protection.
func SRTPNoReplayProtection() ContextOption {
	return func(c *Context) error {
		c.srtp.newReplayDetector = func() replaydetector.ReplayDetector {
			return &nopReplayDetector{}
		}

		return nil
	}
}

// SRTCPNoReplayProtection disables SRTCP replay protection.
func SRTCPNoReplayProtection() ContextOption {
	return func(c *Context) error {
		c.srtcp.newReplayDetector = func() replaydetector.ReplayDetector {
			return &nopReplayDetector{}
		}

		return nil
	}
}
