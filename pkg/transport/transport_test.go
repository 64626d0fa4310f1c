package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUDPSendRecv(t *testing.T) {
	a, err := NewTransport(0)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewTransport(0)
	require.NoError(t, err)
	defer b.Close()

	dst := loopback(t, b)
	require.NoError(t, a.Send(dst, []byte("snapshot")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, got, err := b.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("snapshot"), got)
}

func TestUDPSendTooLarge(t *testing.T) {
	a, err := NewTransport(0)
	require.NoError(t, err)
	defer a.Close()

	err = a.Send(loopback(t, a), make([]byte, MaxDatagramSize+1))
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestUDPRecvHonoursContext(t *testing.T) {
	a, err := NewTransport(0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, _, err := a.Recv(ctx)
		errCh <- err
	}()

	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Recv to return")
	}
}

func loopback(t *testing.T, tr Transport) string {
	t.Helper()
	_, port, err := net.SplitHostPort(tr.LocalAddr())
	require.NoError(t, err)
	return net.JoinHostPort("127.0.0.1", port)
}
