package srtp

// ProtectionProfile specifies the cipher and auth tag details,
// similar to a TLS cipher suite.
type ProtectionProfile uint16

// Supported protection profiles. All four use AES in counter mode for
// encryption and HMAC-SHA1 for authentication; they differ only in the
// master key size and the truncated tag size.
const (
	ProtectionProfileAes128CmHmacSha1_80 ProtectionProfile = 0x0001
	ProtectionProfileAes128CmHmacSha1_32 ProtectionProfile = 0x0002
	ProtectionProfileAes256CmHmacSha1_80 ProtectionProfile = 0x0003
	ProtectionProfileAes256CmHmacSha1_32 ProtectionProfile = 0x0004
)

// keyLen returns the length of the master (and therefore session)
// encryption key in bytes.
func (p ProtectionProfile) keyLen() (int, error) {
	switch p {
	case ProtectionProfileAes128CmHmacSha1_80, ProtectionProfileAes128CmHmacSha1_32:
		return 16, nil
	case ProtectionProfileAes256CmHmacSha1_80, ProtectionProfileAes256CmHmacSha1_32:
		return 32, nil
	default:
		return 0, errNoSuchSRTPProfile
	}
}

// saltLen returns the length of the master (and session) salt in bytes.
func (p ProtectionProfile) saltLen() (int, error) {
	switch p {
	case ProtectionProfileAes128CmHmacSha1_80, ProtectionProfileAes128CmHmacSha1_32,
		ProtectionProfileAes256CmHmacSha1_80, ProtectionProfileAes256CmHmacSha1_32:
		return 14, nil
	default:
		return 0, errNoSuchSRTPProfile
	}
}

// authTagLen returns the truncated HMAC-SHA1 tag length appended to
// every protected packet.
func (p ProtectionProfile) authTagLen() (int, error) {
	switch p {
	case ProtectionProfileAes128CmHmacSha1_80, ProtectionProfileAes256CmHmacSha1_80:
		return 10, nil
	case ProtectionProfileAes128CmHmacSha1_32, ProtectionProfileAes256CmHmacSha1_32:
		return 4, nil
	default:
		return 0, errNoSuchSRTPProfile
	}
}

// authKeyLen returns the length of the derived session authentication
// key. HMAC-SHA1 always uses a 20 byte key.
func (p ProtectionProfile) authKeyLen() (int, error) {
	switch p {
	case ProtectionProfileAes128CmHmacSha1_80, ProtectionProfileAes128CmHmacSha1_32,
		ProtectionProfileAes256CmHmacSha1_80, ProtectionProfileAes256CmHmacSha1_32:
		return 20, nil
	default:
		return 0, errNoSuchSRTPProfile
	}
}

func (p ProtectionProfile) String() string {
	switch p {
	case ProtectionProfileAes128CmHmacSha1_80:
		return "SRTP_AES128_CM_HMAC_SHA1_80"
	case ProtectionProfileAes128CmHmacSha1_32:
		return "SRTP_AES128_CM_HMAC_SHA1_32"
	case ProtectionProfileAes256CmHmacSha1_80:
		return "SRTP_AES256_CM_HMAC_SHA1_80"
	case ProtectionProfileAes256CmHmacSha1_32:
		return "SRTP_AES256_CM_HMAC_SHA1_32"
	default:
		return "Unknown SRTP profile"
	}
}
