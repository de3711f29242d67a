package token

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// Address version bytes for P2PKH on the supported networks.
const (
	MainnetVersion byte = 0x00
	TestnetVersion byte = 0x6f
)

const (
	addressPayloadLen  = 1 + PubKeyHashLen // version + hash
	addressChecksumLen = 4
)

// checksum computes the 4-byte double SHA-256 checksum over payload.
func checksum(payload []byte) [addressChecksumLen]byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	var c [addressChecksumLen]byte
	copy(c[:], second[:addressChecksumLen])
	return c
}

// EncodeAddress base58check-encodes a 20-byte public key hash:
// base58(version || hash || sha256d(version || hash)[:4]).
func EncodeAddress(version byte, hash [PubKeyHashLen]byte) string {
	payload := make([]byte, 0, addressPayloadLen+addressChecksumLen)
	payload = append(payload, version)
	payload = append(payload, hash[:]...)
	c := checksum(payload)
	payload = append(payload, c[:]...)
	return base58.Encode(payload)
}

// DecodeAddress base58check-decodes an address back to its version byte and
// 20-byte public key hash. The checksum must verify.
func DecodeAddress(addr string) (byte, [PubKeyHashLen]byte, error) {
	var hash [PubKeyHashLen]byte

	raw, err := base58.Decode(addr)
	if err != nil {
		return 0, hash, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != addressPayloadLen+addressChecksumLen {
		return 0, hash, fmt.Errorf("%w: decoded length %d", ErrInvalidAddress, len(raw))
	}

	payload := raw[:addressPayloadLen]
	want := checksum(payload)
	got := raw[addressPayloadLen:]
	for i := range want {
		if want[i] != got[i] {
			return 0, hash, ErrChecksumMismatch
		}
	}

	copy(hash[:], payload[1:])
	return payload[0], hash, nil
}

// ValidateAddress checks that addr is a well-formed P2PKH address for the
// given version byte.
func ValidateAddress(addr string, version byte) error {
	v, _, err := DecodeAddress(addr)
	if err != nil {
		return err
	}
	if v != version {
		return fmt.Errorf("%w: version 0x%02x, want 0x%02x", ErrInvalidAddress, v, version)
	}
	return nil
}
