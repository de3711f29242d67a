package token

import (
	"encoding/binary"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
)

// Op is a single parsed script operation: an opcode and, for push
// operations, the pushed bytes.
type Op struct {
	Code byte
	Data []byte
}

// IsPush reports whether the op pushes data onto the stack. OP_0 counts as
// a push of the empty byte string.
func (o Op) IsPush() bool {
	return o.Code <= script.OpPUSHDATA4
}

// ParseOps decodes a locking script into its operation sequence.
//
// Script grammar (each output script is a flat op sequence):
//
//	op       := push | opcode
//	push     := 0x01..0x4b <n bytes>
//	          | OP_PUSHDATA1 <len:1> <len bytes>
//	          | OP_PUSHDATA2 <len:2 LE> <len bytes>
//	          | OP_PUSHDATA4 <len:4 LE> <len bytes>
//	opcode   := any other single byte
//
// A push whose declared length runs past the end of the script yields
// ErrScriptTruncated. ParseOps makes no judgement about script validity
// beyond push framing; unknown opcodes are passed through.
func ParseOps(lockingScript []byte) ([]Op, error) {
	var ops []Op
	i := 0
	for i < len(lockingScript) {
		code := lockingScript[i]
		i++

		var dataLen int
		switch {
		case code > script.Op0 && code < script.OpPUSHDATA1:
			dataLen = int(code)
		case code == script.OpPUSHDATA1:
			if i+1 > len(lockingScript) {
				return nil, fmt.Errorf("%w: PUSHDATA1 length at offset %d", ErrScriptTruncated, i-1)
			}
			dataLen = int(lockingScript[i])
			i++
		case code == script.OpPUSHDATA2:
			if i+2 > len(lockingScript) {
				return nil, fmt.Errorf("%w: PUSHDATA2 length at offset %d", ErrScriptTruncated, i-1)
			}
			dataLen = int(binary.LittleEndian.Uint16(lockingScript[i : i+2]))
			i += 2
		case code == script.OpPUSHDATA4:
			if i+4 > len(lockingScript) {
				return nil, fmt.Errorf("%w: PUSHDATA4 length at offset %d", ErrScriptTruncated, i-1)
			}
			dataLen = int(binary.LittleEndian.Uint32(lockingScript[i : i+4]))
			i += 4
		default:
			ops = append(ops, Op{Code: code})
			continue
		}

		if i+dataLen > len(lockingScript) {
			return nil, fmt.Errorf("%w: push of %d bytes at offset %d", ErrScriptTruncated, dataLen, i)
		}
		ops = append(ops, Op{Code: code, Data: lockingScript[i : i+dataLen]})
		i += dataLen
	}
	return ops, nil
}

// PubKeyHashLen is the length of a P2PKH hash.
const PubKeyHashLen = 20

// ExtractP2PKHHash scans an op sequence for the standard pay-to-public-key-hash
// template and returns the 20-byte hash it locks to:
//
//	OP_DUP OP_HASH160 <20-byte hash> OP_EQUALVERIFY OP_CHECKSIG
//
// The template may appear anywhere in the script (token outputs append an
// inscription envelope after it). The first occurrence wins.
func ExtractP2PKHHash(ops []Op) ([PubKeyHashLen]byte, bool) {
	var hash [PubKeyHashLen]byte
	for i := 0; i+5 <= len(ops); i++ {
		if ops[i].Code != script.OpDUP ||
			ops[i+1].Code != script.OpHASH160 ||
			len(ops[i+2].Data) != PubKeyHashLen ||
			ops[i+3].Code != script.OpEQUALVERIFY ||
			ops[i+4].Code != script.OpCHECKSIG {
			continue
		}
		copy(hash[:], ops[i+2].Data)
		return hash, true
	}
	return hash, false
}

// Recipient decodes the recipient address locked by a token output script.
// It locates the P2PKH template and base58check-encodes its hash with the
// given version byte. Scripts without a P2PKH template yield ErrNoRecipient.
func Recipient(lockingScript []byte, version byte) (string, error) {
	ops, err := ParseOps(lockingScript)
	if err != nil {
		return "", err
	}
	hash, ok := ExtractP2PKHHash(ops)
	if !ok {
		return "", ErrNoRecipient
	}
	return EncodeAddress(version, hash), nil
}
