package gate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayoutRoundTrip(t *testing.T) {
	var p Payout
	p.Set("alice", NewU128(1200))
	p.Set("carol", NewU128(300))

	data, err := json.Marshal(p)
	require.NoError(t, err)
	require.Equal(t, `{"alice":"1200","carol":"300"}`, string(data))

	var got Payout
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, p, got)
}

func TestPayoutOrderPreserved(t *testing.T) {
	var got Payout
	require.NoError(t, json.Unmarshal([]byte(`{"z.account":"1","a.account":"2","m.account":"3"}`), &got))
	require.Equal(t, Payout{
		{ReceiverID: "z.account", Amount: NewU128(1)},
		{ReceiverID: "a.account", Amount: NewU128(2)},
		{ReceiverID: "m.account", Amount: NewU128(3)},
	}, got)
}

func TestPayoutDuplicateReceiver(t *testing.T) {
	var got Payout
	require.NoError(t, json.Unmarshal([]byte(`{"alice":"1","alice":"5"}`), &got))
	require.Equal(t, Payout{{ReceiverID: "alice", Amount: NewU128(5)}}, got)
}

func TestPayoutSetOverwrites(t *testing.T) {
	var p Payout
	p.Set("alice", NewU128(1))
	p.Set("bob", NewU128(2))
	p.Set("alice", NewU128(7))
	require.Equal(t, Payout{
		{ReceiverID: "alice", Amount: NewU128(7)},
		{ReceiverID: "bob", Amount: NewU128(2)},
	}, p)
}

func TestPayoutRejectsMalformed(t *testing.T) {
	var got Payout
	require.Error(t, json.Unmarshal([]byte(`["alice"]`), &got))
	require.Error(t, json.Unmarshal([]byte(`{"alice":300}`), &got))
	require.Error(t, json.Unmarshal([]byte(`{"alice":"12.5"}`), &got))
}
