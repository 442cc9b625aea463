package channel

import (
	"testing"

	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress(t *testing.T) {
	tests := []struct {
		location string
		want     string
		wantErr  bool
	}{
		{"http://example.com:8080/call?userID=a&peerID=b", "ws://example.com:8080/video/connections?userID=a&peerID=b", false},
		{"https://example.com/some/page", "wss://example.com/video/connections", false},
		{"ws://10.0.0.1:9000", "ws://10.0.0.1:9000/video/connections", false},
		{"WSS://example.com/?x=1", "wss://example.com/video/connections?x=1", false},
		{"ftp://example.com", "", true},
		{"http://", "", true},
		{"::not a url", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			got, err := Address(tt.location)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddressFor(t *testing.T) {
	pair := domain.Pair{Self: "alice", Remote: "bob"}

	got, err := AddressFor("https://example.com/call", pair)
	require.NoError(t, err)
	assert.Equal(t, "wss://example.com/video/connections?userID=alice&peerID=bob", got)

	got, err = AddressFor("http://example.com/?userID=carol", pair)
	require.NoError(t, err)
	assert.Equal(t, "ws://example.com/video/connections?userID=carol&peerID=bob", got)

	// existing parameters keep their order and escaping
	got, err = AddressFor("http://example.com/?z=1&name=a%20b&peerID=dave&a=2", pair)
	require.NoError(t, err)
	assert.Equal(t, "ws://example.com/video/connections?z=1&name=a%20b&peerID=dave&a=2&userID=alice", got)

	got, err = AddressFor("http://example.com/", domain.Pair{Self: "a b", Remote: "c&d"})
	require.NoError(t, err)
	assert.Equal(t, "ws://example.com/video/connections?userID=a+b&peerID=c%26d", got)
}

func TestCodec(t *testing.T) {
	m, err := Decode([]byte(`{"type":"candidate","ice":{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host","sdpMid":"0","sdpMLineIndex":0}}`))
	require.NoError(t, err)
	require.NotNil(t, m.ICE)
	require.NotNil(t, m.ICE.SDPMLineIndex)
	assert.Equal(t, uint16(0), *m.ICE.SDPMLineIndex)
	assert.Equal(t, "0", *m.ICE.SDPMid)
	assert.Nil(t, m.ICE.UsernameFragment)

	data, err := Encode(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sdpMLineIndex":0`)
	assert.NotContains(t, string(data), "usernameFragment")

	_, err = Decode([]byte(`{"type":"pong"}`))
	assert.ErrorIs(t, err, domain.ErrUnknownMessage)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = Encode(domain.Message{Type: domain.MessageCandidate})
	assert.ErrorIs(t, err, domain.ErrEmptyPayload)
}
