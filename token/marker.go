package token

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/bsv-blockchain/go-sdk/script"
)

// Protocol is the token protocol identifier carried in marker payloads.
const Protocol = "bsv-20"

// OpTransfer is the marker operation this pipeline consumes. Deploy and mint
// markers share the same envelope but are not deposits.
const OpTransfer = "transfer"

// envelopeTag is the inscription envelope protocol tag.
var envelopeTag = []byte("ord")

// TransferMarker is a parsed token transfer payload.
type TransferMarker struct {
	Ticker string
	Amount uint64
}

// markerPayload maps the JSON fields of a marker payload. Amount is a decimal
// string on the wire, following the inscription token conventions.
type markerPayload struct {
	Protocol string `json:"p"`
	Op       string `json:"op"`
	Ticker   string `json:"tick"`
	Amount   string `json:"amt"`
}

// ParseTransferMarker scans a locking script for a token transfer marker and
// returns the parsed {ticker, amount} pair.
//
// Marker grammar (two envelope forms, appended to or standing in for the
// spending template):
//
//	inscription := OP_FALSE OP_IF push("ord") OP_1 push(content-type)
//	               OP_0 push(payload) OP_ENDIF
//	datamark    := OP_FALSE OP_RETURN push(payload)
//	payload     := JSON {"p":"bsv-20","op":"transfer","tick":<ticker>,"amt":<decimal>}
//
// Scripts without either envelope yield ErrNoMarker. An envelope whose payload
// is not valid transfer JSON yields ErrMalformedMarker; callers discard the
// output in both cases, but may want to log the latter.
func ParseTransferMarker(lockingScript []byte) (*TransferMarker, error) {
	ops, err := ParseOps(lockingScript)
	if err != nil {
		return nil, err
	}

	payload, ok := findEnvelope(ops)
	if !ok {
		return nil, ErrNoMarker
	}
	return parsePayload(payload)
}

// findEnvelope locates a marker envelope in an op sequence and returns its
// payload bytes.
func findEnvelope(ops []Op) ([]byte, bool) {
	for i := 0; i < len(ops); i++ {
		if ops[i].Code != script.Op0 {
			continue
		}
		// OP_FALSE OP_RETURN <payload>
		if i+2 < len(ops) && ops[i+1].Code == script.OpRETURN &&
			ops[i+2].IsPush() && len(ops[i+2].Data) > 0 {
			return ops[i+2].Data, true
		}
		// OP_FALSE OP_IF "ord" OP_1 <content-type> OP_0 <payload> OP_ENDIF
		if i+7 < len(ops) &&
			ops[i+1].Code == script.OpIF &&
			bytes.Equal(ops[i+2].Data, envelopeTag) &&
			ops[i+3].Code == script.Op1 &&
			ops[i+4].IsPush() &&
			ops[i+5].Code == script.Op0 &&
			ops[i+6].IsPush() &&
			ops[i+7].Code == script.OpENDIF {
			return ops[i+6].Data, true
		}
	}
	return nil, false
}

// parsePayload decodes and validates a marker JSON payload.
func parsePayload(payload []byte) (*TransferMarker, error) {
	var p markerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMarker, err)
	}
	if p.Protocol != Protocol {
		return nil, fmt.Errorf("%w: protocol %q", ErrNoMarker, p.Protocol)
	}
	if p.Op != OpTransfer {
		return nil, fmt.Errorf("%w: op %q", ErrNoMarker, p.Op)
	}
	if p.Ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", ErrMalformedMarker)
	}
	amount, err := strconv.ParseUint(p.Amount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q", ErrMalformedMarker, p.Amount)
	}
	if amount == 0 {
		return nil, fmt.Errorf("%w: zero amount", ErrMalformedMarker)
	}
	return &TransferMarker{Ticker: p.Ticker, Amount: amount}, nil
}

// BuildTransferScript constructs a token transfer output script: the P2PKH
// spending template for the recipient hash followed by an inscription
// envelope carrying the transfer payload. Used by tests and by senders.
func BuildTransferScript(recipientHash [PubKeyHashLen]byte, ticker string, amount uint64) ([]byte, error) {
	payload, err := json.Marshal(markerPayload{
		Protocol: Protocol,
		Op:       OpTransfer,
		Ticker:   ticker,
		Amount:   strconv.FormatUint(amount, 10),
	})
	if err != nil {
		return nil, fmt.Errorf("token: marshal payload: %w", err)
	}

	s := &script.Script{}
	*s = append(*s, script.OpDUP, script.OpHASH160)
	if err := s.AppendPushData(recipientHash[:]); err != nil {
		return nil, fmt.Errorf("token: push recipient hash: %w", err)
	}
	*s = append(*s, script.OpEQUALVERIFY, script.OpCHECKSIG)

	*s = append(*s, script.Op0, script.OpIF)
	if err := s.AppendPushData(envelopeTag); err != nil {
		return nil, fmt.Errorf("token: push envelope tag: %w", err)
	}
	*s = append(*s, script.Op1)
	if err := s.AppendPushData([]byte("application/bsv-20")); err != nil {
		return nil, fmt.Errorf("token: push content type: %w", err)
	}
	*s = append(*s, script.Op0)
	if err := s.AppendPushData(payload); err != nil {
		return nil, fmt.Errorf("token: push payload: %w", err)
	}
	*s = append(*s, script.OpENDIF)

	return []byte(*s), nil
}
