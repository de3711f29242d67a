package token

import "errors"

var (
	// ErrScriptTruncated indicates a push opcode ran past the end of the script.
	ErrScriptTruncated = errors.New("token: script truncated")

	// ErrNoMarker indicates the script carries no transfer marker envelope.
	ErrNoMarker = errors.New("token: no transfer marker")

	// ErrMalformedMarker indicates an envelope was found but its payload is invalid.
	ErrMalformedMarker = errors.New("token: malformed transfer marker")

	// ErrNoRecipient indicates the script carries no P2PKH template.
	ErrNoRecipient = errors.New("token: no recipient template")

	// ErrInvalidAddress indicates an address failed base58check decoding.
	ErrInvalidAddress = errors.New("token: invalid address")

	// ErrChecksumMismatch indicates an address checksum did not verify.
	ErrChecksumMismatch = errors.New("token: address checksum mismatch")
)
