//go:build linux

package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-echo/api"
)

func listenLoopback(t *testing.T) (int, *net.TCPAddr) {
	t.Helper()
	lfd, err := Listen("127.0.0.1:0", 16)
	require.NoError(t, err)
	t.Cleanup(func() { CloseFD(lfd) })
	addr, err := LocalAddr(lfd)
	require.NoError(t, err)
	require.NotZero(t, addr.Port)
	return lfd, addr
}

func acceptEventually(t *testing.T, lfd int) (api.RawConn, string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, peer, err := Accept(lfd)
		if err == nil {
			return conn, peer
		}
		require.ErrorIs(t, err, api.ErrWouldBlock)
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no connection accepted")
	return nil, ""
}

func TestAcceptWouldBlockWhenIdle(t *testing.T) {
	lfd, _ := listenLoopback(t)
	_, _, err := Accept(lfd)
	assert.ErrorIs(t, err, api.ErrWouldBlock)
}

func TestFDConnReadWrite(t *testing.T) {
	lfd, addr := listenLoopback(t)
	client, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer client.Close()

	conn, peer := acceptEventually(t, lfd)
	defer conn.Close()
	assert.Contains(t, peer, "127.0.0.1:")

	buf := make([]byte, 16)
	_, err = conn.Read(buf)
	assert.ErrorIs(t, err, api.ErrWouldBlock, "nothing sent yet")

	_, err = client.Write([]byte("hello"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		n, err := conn.Read(buf)
		return err == nil && string(buf[:n]) == "hello"
	}, 2*time.Second, 5*time.Millisecond)

	n, err := conn.Write([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	got := make([]byte, 5)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = client.Read(got)
	require.NoError(t, err)
	assert.Equal(t, "world", string(got))

	client.Close()
	require.Eventually(t, func() bool {
		n, err := conn.Read(buf)
		return err == nil && n == 0
	}, 2*time.Second, 5*time.Millisecond, "peer close reads as (0, nil)")
}

func TestFDConnCloseOnce(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	defer unix.Close(fds[1])

	c := NewFDConn(fds[0])
	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	_, err = c.Read(make([]byte, 1))
	assert.ErrorIs(t, err, api.ErrConnClosed)
	_, err = c.Write([]byte{1})
	assert.ErrorIs(t, err, api.ErrConnClosed)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(unix.ECONNABORTED))
	assert.True(t, IsTransient(unix.EINTR))
	assert.False(t, IsTransient(unix.EMFILE))
	assert.False(t, IsTransient(api.ErrWouldBlock))
}

func TestListenRejectsBadAddress(t *testing.T) {
	_, err := Listen("not-an-address", 0)
	assert.Error(t, err)
}
