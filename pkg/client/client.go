package client

import (
	"bufio"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/leoftp/leo/pkg/crypto/aead"
	"github.com/leoftp/leo/pkg/crypto/kdf"
	"github.com/leoftp/leo/pkg/crypto/x25519"
	"github.com/leoftp/leo/pkg/protocol"
)

// TypedError wraps a protocol-level ERROR/AUTH_ERROR/DEL_ERROR reply as a
// Go error the caller can inspect programmatically, per spec §4.6.
type TypedError struct {
	Code    protocol.ErrorCode
	Message string
	Details string
}

func (e *TypedError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("leo: %s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("leo: %s: %s", e.Code, e.Message)
}

var (
	// ErrGetMetaMissing indicates the server's first GET reply was not GET_META.
	ErrGetMetaMissing = fmt.Errorf("client: expected GET_META as first reply")
	// ErrGetIncomplete indicates the assembled GET payload did not match the
	// size GET_META declared.
	ErrGetIncomplete = fmt.Errorf("client: GET stream incomplete")
)

// Config configures a Client's handshake and request timeouts.
type Config struct {
	Timeout time.Duration
}

// Client is the dual of the server session actor: a handshake initiator
// plus a FIFO request/response correlator, per spec §4.6.
type Client struct {
	conn       net.Conn
	reader     *bufio.Reader
	c2s        []byte
	s2c        []byte
	sessionID  string
	correlator *Correlator
	timeout    time.Duration
}

// Connect opens a TCP connection to host:port, performs the LEO
// handshake, and starts the background read loop.
func Connect(host string, port int, cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = protocol.DefaultClientTimeout * time.Second
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}

	c := &Client{
		conn:       conn,
		reader:     bufio.NewReader(conn),
		correlator: NewCorrelator(),
		timeout:    timeout,
	}

	if err := c.handshake(); err != nil {
		conn.Close()
		return nil, err
	}

	go c.readLoop()
	return c, nil
}

func (c *Client) handshake() error {
	keypair, err := x25519.Generate()
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}

	hello := protocol.NewClientHello(base64.StdEncoding.EncodeToString(keypair.PublicKey))
	data, err := protocol.Encode(hello)
	if err != nil {
		return fmt.Errorf("client: encode hello: %w", err)
	}
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("client: write hello: %w", err)
	}

	_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	line, err := c.reader.ReadBytes('\n')
	c.conn.SetReadDeadline(time.Time{})
	if err != nil {
		return fmt.Errorf("client: read server hello: %w", err)
	}

	msg, err := protocol.Decode(line)
	if err != nil {
		return fmt.Errorf("client: decode server hello: %w", err)
	}
	reply, ok := msg.(*protocol.ServerHello)
	if !ok || !reply.OK {
		return fmt.Errorf("client: handshake rejected by server")
	}

	serverPub, err := base64.StdEncoding.DecodeString(reply.ServerPublicKey)
	if err != nil {
		return fmt.Errorf("client: decode server public key: %w", err)
	}
	shared, err := x25519.Exchange(keypair.PrivateKey, serverPub)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	c2s, s2c, err := kdf.DeriveSessionKeys(shared, reply.SessionID)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}

	c.c2s = c2s
	c.s2c = s2c
	c.sessionID = reply.SessionID
	return nil
}

// readLoop decrypts and decodes frames until the connection dies, then
// rejects every pending waiter.
func (c *Client) readLoop() {
	for {
		lengthBuf := make([]byte, protocol.LengthPrefixSize)
		if _, err := io.ReadFull(c.reader, lengthBuf); err != nil {
			c.correlator.CloseWithError(fmt.Errorf("%w: %v", ErrTransportClosed, err))
			return
		}
		length := binary.BigEndian.Uint32(lengthBuf)
		blob := make([]byte, length)
		if _, err := io.ReadFull(c.reader, blob); err != nil {
			c.correlator.CloseWithError(fmt.Errorf("%w: %v", ErrTransportClosed, err))
			return
		}

		plaintext, err := aead.Open(c.s2c, blob)
		if err != nil {
			c.correlator.CloseWithError(fmt.Errorf("client: decrypt frame: %w", err))
			return
		}
		msg, err := protocol.Decode(plaintext)
		if err != nil {
			c.correlator.CloseWithError(fmt.Errorf("client: decode frame: %w", err))
			return
		}
		c.correlator.Dispatch(msg)
	}
}

// send encrypts and frames one request message under c2s.
func (c *Client) send(msg interface{}) error {
	plaintext, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("client: encode: %w", err)
	}
	blob, err := aead.Seal(c.c2s, plaintext)
	if err != nil {
		return fmt.Errorf("client: seal: %w", err)
	}
	if _, err := c.conn.Write(protocol.EncodeFrame(blob)); err != nil {
		return fmt.Errorf("client: write: %w", err)
	}
	return nil
}

// await blocks for the next message on ch, applying the client timeout.
func (c *Client) await(ch <-chan interface{}) (interface{}, error) {
	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, ErrTransportClosed
		}
		if err, isErr := msg.(error); isErr {
			return nil, err
		}
		return msg, nil
	case <-time.After(c.timeout):
		return nil, fmt.Errorf("client: timed out waiting for reply")
	}
}

// singleRequest sends msg and waits for exactly one reply, retiring the
// waiter afterward. Typed ERROR/AUTH_ERROR replies become *TypedError.
func (c *Client) singleRequest(msg interface{}) (interface{}, error) {
	ch, err := c.correlator.Push()
	if err != nil {
		return nil, err
	}
	defer c.correlator.Pop()

	if err := c.send(msg); err != nil {
		return nil, err
	}

	reply, err := c.await(ch)
	if err != nil {
		return nil, err
	}
	return reply, asTypedError(reply)
}

// asTypedError converts a generic ERROR/AUTH_ERROR reply into a
// *TypedError, or returns nil for any other message.
func asTypedError(msg interface{}) error {
	switch m := msg.(type) {
	case *protocol.ErrorMsg:
		return &TypedError{Code: m.ErrorCode, Message: m.Message, Details: m.Details}
	case *protocol.AuthError:
		return &TypedError{Code: m.ErrorCode, Message: m.Message, Details: m.Details}
	default:
		return nil
	}
}

// Auth sends AUTH and waits for AUTH_OK or a typed auth error.
func (c *Client) Auth(username, password string) error {
	reply, err := c.singleRequest(protocol.NewAuth(username, password))
	if err != nil {
		return err
	}
	if _, ok := reply.(*protocol.AuthOK); !ok {
		return fmt.Errorf("client: unexpected AUTH reply %T", reply)
	}
	return nil
}

// Put reads localPath fully and streams it to remotePath in fixed-size
// chunks, per spec §4.6. A waiter is held open for the whole sequence
// because PUT_BEGIN and PUT_CHUNK are normally unreplied but the server
// may opportunistically send ERROR if creating/truncating the target
// fails; checkForEarlyError drains that case without blocking.
func (c *Client) Put(localPath, remotePath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("client: read local file: %w", err)
	}

	ch, err := c.correlator.Push()
	if err != nil {
		return err
	}
	defer c.correlator.Pop()

	if err := c.send(protocol.NewPutBegin(remotePath, int64(len(data)))); err != nil {
		return err
	}
	if err := c.checkForEarlyError(ch); err != nil {
		return err
	}

	for offset := 0; offset < len(data); offset += protocol.PutChunkSize {
		end := offset + protocol.PutChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]
		encoded := base64.StdEncoding.EncodeToString(chunk)
		if err := c.send(protocol.NewPutChunk(remotePath, int64(offset), encoded)); err != nil {
			return err
		}
		if err := c.checkForEarlyError(ch); err != nil {
			return err
		}
	}

	if err := c.send(protocol.NewPutEnd(remotePath)); err != nil {
		return err
	}
	reply, err := c.await(ch)
	if err != nil {
		return err
	}
	if typedErr := asTypedError(reply); typedErr != nil {
		return typedErr
	}
	if _, ok := reply.(*protocol.PutOK); !ok {
		return fmt.Errorf("client: unexpected PUT_END reply %T", reply)
	}
	return nil
}

// checkForEarlyError drains any already-arrived opportunistic ERROR
// reply from ch without blocking, for the unreplied PUT_BEGIN/PUT_CHUNK
// steps of Put.
func (c *Client) checkForEarlyError(ch <-chan interface{}) error {
	select {
	case msg, ok := <-ch:
		if !ok {
			return ErrTransportClosed
		}
		if err, isErr := msg.(error); isErr {
			return err
		}
		if typedErr := asTypedError(msg); typedErr != nil {
			return typedErr
		}
		return fmt.Errorf("client: unexpected reply %T during PUT", msg)
	default:
		return nil
	}
}

// Get downloads remotePath into localPath, per spec §4.6: the first
// reply must be GET_META, chunks are written at their declared offset
// into a growable buffer, and the accumulated length is checked against
// GET_META.size once GET_END arrives.
func (c *Client) Get(remotePath, localPath string) error {
	ch, err := c.correlator.Push()
	if err != nil {
		return err
	}
	defer c.correlator.Pop()

	if err := c.send(protocol.NewGetBegin(remotePath)); err != nil {
		return err
	}

	first, err := c.await(ch)
	if err != nil {
		return err
	}
	if typedErr := asTypedError(first); typedErr != nil {
		return typedErr
	}
	meta, ok := first.(*protocol.GetMeta)
	if !ok {
		return ErrGetMetaMissing
	}

	buf := make([]byte, meta.Size)
	var received int64

	for {
		msg, err := c.await(ch)
		if err != nil {
			return err
		}
		if _, ok := msg.(*protocol.GetEnd); ok {
			break
		}
		chunk, ok := msg.(*protocol.GetChunk)
		if !ok {
			return fmt.Errorf("client: unexpected GET reply %T", msg)
		}
		data, err := base64.StdEncoding.DecodeString(chunk.Data)
		if err != nil {
			return fmt.Errorf("client: decode chunk: %w", err)
		}
		if chunk.Offset+int64(len(data)) > int64(len(buf)) {
			grown := make([]byte, chunk.Offset+int64(len(data)))
			copy(grown, buf)
			buf = grown
		}
		copy(buf[chunk.Offset:], data)
		received += int64(len(data))
	}

	if meta.Size != 0 && received != meta.Size {
		return ErrGetIncomplete
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("client: create local directories: %w", err)
	}
	if err := os.WriteFile(localPath, buf[:received], 0o644); err != nil {
		return fmt.Errorf("client: write local file: %w", err)
	}
	return nil
}

// List requests a directory listing.
func (c *Client) List(remotePath string) ([]protocol.ListItem, error) {
	reply, err := c.singleRequest(protocol.NewList(remotePath))
	if err != nil {
		return nil, err
	}
	result, ok := reply.(*protocol.ListResult)
	if !ok {
		return nil, fmt.Errorf("client: unexpected LIST reply %T", reply)
	}
	return result.Items, nil
}

// Del deletes a remote file.
func (c *Client) Del(remotePath string) error {
	ch, err := c.correlator.Push()
	if err != nil {
		return err
	}
	defer c.correlator.Pop()

	if err := c.send(protocol.NewDel(remotePath)); err != nil {
		return err
	}

	reply, err := c.await(ch)
	if err != nil {
		return err
	}
	switch m := reply.(type) {
	case *protocol.DelOK:
		return nil
	case *protocol.DelError:
		return &TypedError{Code: m.ErrorCode, Message: m.Message}
	default:
		return fmt.Errorf("client: unexpected DEL reply %T", reply)
	}
}

// Info requests server introspection.
func (c *Client) Info() (*protocol.InfoResult, error) {
	reply, err := c.singleRequest(protocol.NewInfo())
	if err != nil {
		return nil, err
	}
	result, ok := reply.(*protocol.InfoResult)
	if !ok {
		return nil, fmt.Errorf("client: unexpected INFO reply %T", reply)
	}
	return result, nil
}

// Bye sends BYE and closes the connection. No reply is expected.
func (c *Client) Bye() error {
	err := c.send(protocol.NewBye())
	c.conn.Close()
	return err
}

// Close tears down the connection without sending BYE.
func (c *Client) Close() error {
	return c.conn.Close()
}
