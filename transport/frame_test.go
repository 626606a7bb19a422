package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	clientFramed := NewFramed(client)
	serverFramed := NewFramed(server)

	payload := []byte("hello daemon")
	errCh := make(chan error, 1)
	go func() { errCh <- clientFramed.Send(payload) }()

	got, err := serverFramed.Receive()
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	assert.Equal(t, payload, got)
}

func TestReceiveEmptyPayload(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	clientFramed := NewFramed(client)
	serverFramed := NewFramed(server)

	errCh := make(chan error, 1)
	go func() { errCh <- clientFramed.Send(nil) }()

	got, err := serverFramed.Receive()
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	assert.Empty(t, got)
}

func TestReceiveAfterCleanCloseYieldsStreamEnded(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	clientFramed := NewFramed(client)
	serverFramed := NewFramed(server)

	require.NoError(t, clientFramed.Close())

	_, err := serverFramed.Receive()
	assert.ErrorIs(t, err, ErrStreamEnded)
}
