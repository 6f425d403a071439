// Package rcon implements a minimal Valve Source RCON client: framed
// little-endian packets of size(4)|id(4)|type(4)|payload(utf8)|0|0.
//
// No RCON client or library exists anywhere in the example pack (checked
// exhaustively), so this is a deliberate standard-library exception: the
// domain stack has no ecosystem dependency to ground a choice on.
package rcon

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	typeAuth         = 3
	typeAuthResponse = 2 // the auth-success response reuses type 2 in the wire protocol
	typeCommand      = 2
	typeResponse     = 0

	connectTimeout = 10 * time.Second
	maxPacketSize  = 4096
)

// ErrAuthFailed is returned when the server rejects the RCON password.
var ErrAuthFailed = errors.New("rcon: authentication failed")

// Client is a short-lived connection to one RCON endpoint. Callers
// typically Dial, Command once or a few times, then Close.
type Client struct {
	conn   net.Conn
	nextID int32
}

// Dial connects to addr, authenticates with password, and returns a
// ready Client. The connection attempt is bounded by a fixed 10s
// timeout per the concurrency model.
func Dial(addr, password string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, connectTimeout)
	if err != nil {
		return nil, fmt.Errorf("rcon: dial %s: %w", addr, err)
	}

	c := &Client{conn: conn, nextID: 1}
	id := c.nextID
	c.nextID++

	if err := c.writePacket(id, typeAuth, password); err != nil {
		conn.Close()
		return nil, err
	}

	// The auth flow can produce an empty type-0 packet followed by the
	// real type-2 auth response; read until we see the auth response id.
	for {
		respID, respType, _, err := c.readPacket()
		if err != nil {
			if err == io.EOF {
				// Peer closed immediately after auth attempt: treat as
				// failure, distinct from a post-command close.
				conn.Close()
				return nil, ErrAuthFailed
			}
			conn.Close()
			return nil, err
		}
		if respType != typeAuthResponse {
			continue
		}
		if respID == -1 {
			conn.Close()
			return nil, ErrAuthFailed
		}
		break
	}

	return c, nil
}

// Command sends cmd as a type-2 command packet and returns the matching
// type-0 response payload. A connection closed by the peer after a
// successful command is treated as success for shutdown-style commands,
// since the game may close the socket as it exits.
func (c *Client) Command(cmd string) (string, error) {
	id := c.nextID
	c.nextID++

	if err := c.writePacket(id, typeCommand, cmd); err != nil {
		return "", err
	}

	respID, _, payload, err := c.readPacket()
	if err != nil {
		if err == io.EOF {
			return "", nil
		}
		return "", err
	}
	if respID != id {
		return "", fmt.Errorf("rcon: response id mismatch: got %d want %d", respID, id)
	}
	return payload, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) writePacket(id, typ int32, payload string) error {
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

	if _, err := c.conn.Write(append(size, body...)); err != nil {
		return fmt.Errorf("rcon: write packet: %w", err)
	}
	return nil
}

// readPacket reassembles one framed packet, handling partial reads from
// the socket.
func (c *Client) readPacket() (id, typ int32, payload string, err error) {
	sizeBuf := make([]byte, 4)
	if _, err = io.ReadFull(c.conn, sizeBuf); err != nil {
		return 0, 0, "", err
	}
	size := binary.LittleEndian.Uint32(sizeBuf)
	if size < 10 || size > maxPacketSize {
		return 0, 0, "", fmt.Errorf("rcon: invalid packet size %d", size)
	}

	body := make([]byte, size)
	if _, err = io.ReadFull(c.conn, body); err != nil {
		return 0, 0, "", err
	}

	id = int32(binary.LittleEndian.Uint32(body[0:4]))
	typ = int32(binary.LittleEndian.Uint32(body[4:8]))
	payload = string(body[8 : len(body)-2])
	return id, typ, payload, nil
}
