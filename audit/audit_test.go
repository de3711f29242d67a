package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySink_OrderAndFilter(t *testing.T) {
	s := NewMemorySink()
	s.Emit(Event{Type: EventStakeConfirmed, Ref: "stake-1", At: time.Unix(1, 0)})
	s.Emit(Event{Type: EventSettlementRecorded, Ref: "pay-1"})
	s.Emit(Event{Type: EventStakeConfirmed, Ref: "stake-2"})

	all := s.Events()
	require.Len(t, all, 3)
	assert.Equal(t, "stake-1", all[0].Ref)

	confirmed := s.ByType(EventStakeConfirmed)
	require.Len(t, confirmed, 2)
	assert.Equal(t, "stake-2", confirmed[1].Ref)
	assert.Empty(t, s.ByType(EventStakeExpired))
}

func TestChanSink_DeliversAndDrops(t *testing.T) {
	s := NewChanSink(1)
	s.Emit(Event{Type: EventStakeConfirmed, Ref: "stake-1"})
	s.Emit(Event{Type: EventStakeConfirmed, Ref: "stake-2"}) // buffer full, dropped

	select {
	case e := <-s.Events():
		assert.Equal(t, "stake-1", e.Ref)
	default:
		t.Fatal("expected a buffered event")
	}
	select {
	case e := <-s.Events():
		t.Fatalf("expected overflow to be dropped, got %q", e.Ref)
	default:
	}
}

func TestMultiSink_FansOut(t *testing.T) {
	a, b := NewMemorySink(), NewMemorySink()
	m := MultiSink{a, b}
	m.Emit(Event{Type: EventDepositObserved, Ref: "aa11:0"})

	require.Len(t, a.Events(), 1)
	require.Len(t, b.Events(), 1)
}
