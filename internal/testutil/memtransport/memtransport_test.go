package memtransport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sambigeara/lwwdict/pkg/transport"
)

func TestNetworkSendRecv(t *testing.T) {
	net := NewNetwork()

	a, err := net.Bind("replica-a")
	require.NoError(t, err)
	b, err := net.Bind("replica-b")
	require.NoError(t, err)
	require.Equal(t, "replica-b", b.LocalAddr())

	msg := []byte("snapshot")
	require.NoError(t, a.Send("replica-b", msg))

	src, got, err := b.Recv(context.Background())
	require.NoError(t, err)
	require.Equal(t, "replica-a", src)
	require.Equal(t, msg, got)
}

func TestNetworkDuplicates(t *testing.T) {
	net := NewNetwork()
	net.SetCopies(3)

	a, err := net.Bind("replica-a")
	require.NoError(t, err)
	b, err := net.Bind("replica-b")
	require.NoError(t, err)

	require.NoError(t, a.Send("replica-b", []byte("x")))

	for range 3 {
		_, got, err := b.Recv(context.Background())
		require.NoError(t, err)
		require.Equal(t, []byte("x"), got)
	}
}

func TestNetworkUnknownDestination(t *testing.T) {
	net := NewNetwork()

	a, err := net.Bind("replica-a")
	require.NoError(t, err)

	err = a.Send("replica-z", []byte("x"))
	require.ErrorIs(t, err, ErrUnknownDestination)
}

func TestNetworkTooLarge(t *testing.T) {
	net := NewNetwork()

	a, err := net.Bind("replica-a")
	require.NoError(t, err)

	err = a.Send("replica-a", make([]byte, transport.MaxDatagramSize+1))
	require.ErrorIs(t, err, transport.ErrTooLarge)
}

func TestNetworkCloseUnblocksRecv(t *testing.T) {
	net := NewNetwork()

	a, err := net.Bind("replica-a")
	require.NoError(t, err)

	resultCh := make(chan error, 1)
	go func() {
		_, _, err := a.Recv(context.Background())
		resultCh <- err
	}()

	require.NoError(t, a.Close())

	select {
	case err := <-resultCh:
		require.ErrorIs(t, err, ErrTransportClosed)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for Recv to return")
	}
}

func TestNetworkRecvHonoursContext(t *testing.T) {
	net := NewNetwork()

	a, err := net.Bind("replica-a")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = a.Recv(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
