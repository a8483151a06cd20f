package srtp

import (
	"crypto/aes"

	"github.com/pkg/errors"
)

// KDF labels from RFC 3711 section 4.3, one per derived session key.
const (
	labelSRTPEncryption        = 0x00
	labelSRTPAuthenticationTag = 0x01
	labelSRTPSalt              = 0x02

	labelSRTCPEncryption        = 0x03
	labelSRTCPAuthenticationTag = 0x04
	labelSRTCPSalt              = 0x05
)

// sessionKeys holds the six independently derived buffers for one
// direction of a session. Computed once at context creation and
// immutable afterwards.
type sessionKeys struct {
	srtpSessionKey     []byte
	srtpSessionSalt    []byte
	srtpSessionAuthKey []byte

	srtcpSessionKey     []byte
	srtcpSessionSalt    []byte
	srtcpSessionAuthKey []byte
}

// aesCmKeyDerivation is the AES-CM pseudo-random function of RFC 3711
// section 4.3. The 16 byte PRF input is the master salt with the label
// XORed at byte 7 and the 48 bit derivation index at bytes 8-13; the
// low two bytes stay zero and act as the keystream block counter. The
// output is the counter-mode keystream under the master key, so
// identical inputs always produce identical bytes.
func aesCmKeyDerivation(label byte, masterKey, masterSalt []byte, indexOverKdr int, outLen int) ([]byte, error) {
	if indexOverKdr != 0 {
		// The 48 bit derivation index is always zero here: key
		// derivation rates are not supported.
		return nil, errNonZeroKDFIndex
	}

	prfIn := make([]byte, aes.BlockSize)
	copy(prfIn[:len(masterSalt)], masterSalt)

	prfIn[7] ^= label

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, err
	}

	out := make([]byte, outLen)
	if err := xorBytesCTR(block, prfIn, out, out); err != nil {
		return nil, err
	}

	return out, nil
}

// deriveSessionKeys runs the KDF six times, once per label, to expand a
// master key and salt into the full session key material.
func deriveSessionKeys(masterKey, masterSalt []byte, profile ProtectionProfile) (*sessionKeys, error) {
	authKeyLen, err := profile.authKeyLen()
	if err != nil {
		return nil, err
	}

	keys := &sessionKeys{}

	if keys.srtpSessionKey, err = aesCmKeyDerivation(labelSRTPEncryption, masterKey, masterSalt, 0, len(masterKey)); err != nil {
		return nil, errors.Wrap(err, "failed to derive SRTP session key")
	}
	if keys.srtpSessionSalt, err = aesCmKeyDerivation(labelSRTPSalt, masterKey, masterSalt, 0, len(masterSalt)); err != nil {
		return nil, errors.Wrap(err, "failed to derive SRTP session salt")
	}
	if keys.srtpSessionAuthKey, err = aesCmKeyDerivation(labelSRTPAuthenticationTag, masterKey, masterSalt, 0, authKeyLen); err != nil {
		return nil, errors.Wrap(err, "failed to derive SRTP session auth key")
	}

	if keys.srtcpSessionKey, err = aesCmKeyDerivation(labelSRTCPEncryption, masterKey, masterSalt, 0, len(masterKey)); err != nil {
		return nil, errors.Wrap(err, "failed to derive SRTCP session key")
	}
	if keys.srtcpSessionSalt, err = aesCmKeyDerivation(labelSRTCPSalt, masterKey, masterSalt, 0, len(masterSalt)); err != nil {
		return nil, errors.Wrap(err, "failed to derive SRTCP session salt")
	}
	if keys.srtcpSessionAuthKey, err = aesCmKeyDerivation(labelSRTCPAuthenticationTag, masterKey, masterSalt, 0, authKeyLen); err != nil {
		return nil, errors.Wrap(err, "failed to derive SRTCP session auth key")
	}

	return keys, nil
}
