package payout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b0ase/libcustody-go/dividend"
	"github.com/b0ase/libcustody-go/token"
)

func TestEstimateTxSize(t *testing.T) {
	assert.Equal(t, 10, EstimateTxSize(0, 0, 0))
	assert.Equal(t, 10+148+34, EstimateTxSize(1, 1, 0))
	assert.Equal(t, 10+2*148+3*34+50, EstimateTxSize(2, 3, 50))
}

func TestEstimateFee(t *testing.T) {
	tests := []struct {
		name string
		size int
		rate uint64
		want uint64
	}{
		{"exact kilobyte", 1000, 1, 1},
		{"rounds up", 1001, 1, 2},
		{"small tx still pays", 1, 1, 1},
		{"zero rate uses default", 500, 0, 1},
		{"higher rate", 250, 50, 13}, // ceil(12500/1000)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateFee(tt.size, tt.rate))
		})
	}
}

func TestValidatePayment(t *testing.T) {
	var h [token.PubKeyHashLen]byte
	h[0] = 0xab
	good := token.EncodeAddress(token.MainnetVersion, h)

	tests := []struct {
		name    string
		payment dividend.Payment
		wantErr error
	}{
		{"valid", dividend.Payment{Address: good, Amount: 1000}, nil},
		{"at dust boundary", dividend.Payment{Address: good, Amount: 546}, nil},
		{"below dust", dividend.Payment{Address: good, Amount: 545}, ErrBelowDust},
		{"garbage address", dividend.Payment{Address: "not-an-address", Amount: 1000}, ErrInvalidAddress},
		{"wrong version", dividend.Payment{Address: token.EncodeAddress(token.TestnetVersion, h), Amount: 1000}, ErrInvalidAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayment(tt.payment, token.MainnetVersion, DustLimit)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
