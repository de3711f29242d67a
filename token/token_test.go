package token

import (
	"testing"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeHash(seed byte) [PubKeyHashLen]byte {
	var h [PubKeyHashLen]byte
	for i := range h {
		h[i] = seed
	}
	return h
}

// --- ParseOps tests ---

func TestParseOps_PushForms(t *testing.T) {
	// direct push (3 bytes), PUSHDATA1 (2 bytes), then OP_CHECKSIG
	raw := []byte{
		0x03, 0xaa, 0xbb, 0xcc,
		script.OpPUSHDATA1, 0x02, 0x01, 0x02,
		script.OpCHECKSIG,
	}
	ops, err := ParseOps(raw)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc}, ops[0].Data)
	assert.Equal(t, []byte{0x01, 0x02}, ops[1].Data)
	assert.Equal(t, byte(script.OpCHECKSIG), ops[2].Code)
	assert.False(t, ops[2].IsPush())
}

func TestParseOps_Pushdata2(t *testing.T) {
	raw := []byte{script.OpPUSHDATA2, 0x03, 0x00, 0x0a, 0x0b, 0x0c}
	ops, err := ParseOps(raw)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, []byte{0x0a, 0x0b, 0x0c}, ops[0].Data)
}

func TestParseOps_Truncated(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"direct push short", []byte{0x05, 0x01, 0x02}},
		{"pushdata1 missing length", []byte{script.OpPUSHDATA1}},
		{"pushdata1 short body", []byte{script.OpPUSHDATA1, 0x04, 0x01}},
		{"pushdata2 missing length", []byte{script.OpPUSHDATA2, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOps(tt.raw)
			assert.ErrorIs(t, err, ErrScriptTruncated)
		})
	}
}

// --- Address tests ---

func TestEncodeDecodeAddress_RoundTrip(t *testing.T) {
	for _, version := range []byte{MainnetVersion, TestnetVersion} {
		hash := makeHash(0x5a)
		addr := EncodeAddress(version, hash)
		require.NotEmpty(t, addr)

		gotVersion, gotHash, err := DecodeAddress(addr)
		require.NoError(t, err)
		assert.Equal(t, version, gotVersion)
		assert.Equal(t, hash, gotHash)
	}
}

func TestEncodeAddress_KnownVector(t *testing.T) {
	// All-zero hash on mainnet is the well-known burn-style address.
	addr := EncodeAddress(MainnetVersion, [PubKeyHashLen]byte{})
	assert.Equal(t, "1111111111111111111114oLvT2", addr)
}

func TestDecodeAddress_Invalid(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want error
	}{
		{"not base58", "0OIl", ErrInvalidAddress},
		{"too short", "1abc", ErrInvalidAddress},
		{"bad checksum", "1111111111111111111114oLvT3", ErrChecksumMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeAddress(tt.addr)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateAddress_WrongVersion(t *testing.T) {
	addr := EncodeAddress(TestnetVersion, makeHash(0x01))
	assert.NoError(t, ValidateAddress(addr, TestnetVersion))
	assert.ErrorIs(t, ValidateAddress(addr, MainnetVersion), ErrInvalidAddress)
}

// --- Marker tests ---

func TestParseTransferMarker_InscriptionEnvelope(t *testing.T) {
	raw, err := BuildTransferScript(makeHash(0xaa), "BWRITER", 50_000)
	require.NoError(t, err)

	marker, err := ParseTransferMarker(raw)
	require.NoError(t, err)
	assert.Equal(t, "BWRITER", marker.Ticker)
	assert.Equal(t, uint64(50_000), marker.Amount)
}

func TestParseTransferMarker_OpReturnForm(t *testing.T) {
	s := &script.Script{}
	*s = append(*s, script.Op0, script.OpRETURN)
	require.NoError(t, s.AppendPushData([]byte(`{"p":"bsv-20","op":"transfer","tick":"POOL","amt":"7"}`)))

	marker, err := ParseTransferMarker([]byte(*s))
	require.NoError(t, err)
	assert.Equal(t, "POOL", marker.Ticker)
	assert.Equal(t, uint64(7), marker.Amount)
}

func TestParseTransferMarker_PlainP2PKH(t *testing.T) {
	s := &script.Script{}
	*s = append(*s, script.OpDUP, script.OpHASH160)
	hash := makeHash(0x11)
	require.NoError(t, s.AppendPushData(hash[:]))
	*s = append(*s, script.OpEQUALVERIFY, script.OpCHECKSIG)

	_, err := ParseTransferMarker([]byte(*s))
	assert.ErrorIs(t, err, ErrNoMarker)
}

func TestParseTransferMarker_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"not json", `not-json`, ErrMalformedMarker},
		{"wrong protocol", `{"p":"brc-20","op":"transfer","tick":"X","amt":"1"}`, ErrNoMarker},
		{"mint op", `{"p":"bsv-20","op":"mint","tick":"X","amt":"1"}`, ErrNoMarker},
		{"empty ticker", `{"p":"bsv-20","op":"transfer","tick":"","amt":"1"}`, ErrMalformedMarker},
		{"bad amount", `{"p":"bsv-20","op":"transfer","tick":"X","amt":"1.5"}`, ErrMalformedMarker},
		{"zero amount", `{"p":"bsv-20","op":"transfer","tick":"X","amt":"0"}`, ErrMalformedMarker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &script.Script{}
			*s = append(*s, script.Op0, script.OpRETURN)
			require.NoError(t, s.AppendPushData([]byte(tt.payload)))

			_, err := ParseTransferMarker([]byte(*s))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// --- Recipient tests ---

func TestRecipient_FromTransferScript(t *testing.T) {
	hash := makeHash(0xbc)
	raw, err := BuildTransferScript(hash, "BWRITER", 1)
	require.NoError(t, err)

	addr, err := Recipient(raw, MainnetVersion)
	require.NoError(t, err)
	assert.Equal(t, EncodeAddress(MainnetVersion, hash), addr)
}

func TestRecipient_NoTemplate(t *testing.T) {
	s := &script.Script{}
	*s = append(*s, script.Op0, script.OpRETURN)
	require.NoError(t, s.AppendPushData([]byte("data")))

	_, err := Recipient([]byte(*s), MainnetVersion)
	assert.ErrorIs(t, err, ErrNoRecipient)
}
