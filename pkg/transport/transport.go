package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// MaxDatagramSize bounds a single message. Whole snapshots larger than this
// must not be sent.
const MaxDatagramSize = 65507

var ErrTooLarge = errors.New("message exceeds maximum datagram size")

var _ Transport = (*impl)(nil)

type Transport interface {
	Recv(ctx context.Context) (src string, b []byte, err error) // src is "ip:port"
	Send(dst string, b []byte) error
	LocalAddr() string
	Close() error
}

type impl struct {
	conn *net.UDPConn
}

func NewTransport(port int) (Transport, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}

	return &impl{conn: conn}, nil
}

// Recv blocks until a datagram arrives or the transport is closed. A done
// ctx closes the transport.
func (i *impl) Recv(ctx context.Context) (string, []byte, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = i.conn.Close()
	})
	defer stop()

	buf := make([]byte, MaxDatagramSize)
	n, addr, err := i.conn.ReadFromUDP(buf)
	if err != nil {
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		return "", nil, err
	}

	return addr.String(), buf[:n], nil
}

func (i *impl) Send(dst string, b []byte) error {
	if len(b) > MaxDatagramSize {
		return ErrTooLarge
	}

	addr, err := net.ResolveUDPAddr("udp", dst)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dst, err)
	}

	if _, err = i.conn.WriteToUDP(b, addr); err != nil {
		return err
	}

	return nil
}

func (i *impl) LocalAddr() string {
	return i.conn.LocalAddr().String()
}

func (i *impl) Close() error {
	return i.conn.Close()
}
