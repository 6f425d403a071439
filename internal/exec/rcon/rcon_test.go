package rcon

import (
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeServer speaks just enough of the RCON wire protocol to exercise
// Dial and Command against a real net.Conn pair.
func fakeServer(t *testing.T, ln net.Listener, password string, onCommand func(cmd string) string) {
	t.Helper()
	conn, err := ln.Accept()
	require.NoError(t, err)
	defer conn.Close()

	readPacket := func() (int32, int32, string) {
		sizeBuf := make([]byte, 4)
		_, err := io.ReadFull(conn, sizeBuf)
		require.NoError(t, err)
		size := binary.LittleEndian.Uint32(sizeBuf)
		body := make([]byte, size)
		_, err = io.ReadFull(conn, body)
		require.NoError(t, err)
		id := int32(binary.LittleEndian.Uint32(body[0:4]))
		typ := int32(binary.LittleEndian.Uint32(body[4:8]))
		payload := string(body[8 : len(body)-2])
		return id, typ, payload
	}

	writePacket := func(id, typ int32, payload string) {
		body := make([]byte, 0, 14+len(payload))
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(id))
		body = append(body, buf...)
		binary.LittleEndian.PutUint32(buf, uint32(typ))
		body = append(body, buf...)
		body = append(body, []byte(payload)...)
		body = append(body, 0, 0)
		size := make([]byte, 4)
		binary.LittleEndian.PutUint32(size, uint32(len(body)))
		_, err := conn.Write(append(size, body...))
		require.NoError(t, err)
	}

	authID, authType, pass := readPacket()
	require.EqualValues(t, typeAuth, authType)
	if pass != password {
		writePacket(-1, typeAuthResponse, "")
		return
	}
	writePacket(authID, typeAuthResponse, "")

	cmdID, _, cmd := readPacket()
	writePacket(cmdID, typeResponse, onCommand(cmd))
}

func TestDialAndCommandRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go fakeServer(t, ln, "hunter2", func(cmd string) string {
		require.Equal(t, "shutdown", cmd)
		return "ok"
	})

	c, err := Dial(ln.Addr().String(), "hunter2")
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.Command("shutdown")
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
}

func TestDialAuthFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go fakeServer(t, ln, "correct", func(string) string { return "" })

	_, err = Dial(ln.Addr().String(), "wrong")
	require.ErrorIs(t, err, ErrAuthFailed)
}
