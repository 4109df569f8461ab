package session

import (
	"bufio"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/leoftp/leo/internal/logging"
	"github.com/leoftp/leo/pkg/crypto/aead"
	"github.com/leoftp/leo/pkg/crypto/kdf"
	"github.com/leoftp/leo/pkg/crypto/x25519"
	"github.com/leoftp/leo/pkg/protocol"
	"github.com/leoftp/leo/pkg/storage"
)

// Credentials is the single username/password pair a server authenticates
// clients against.
type Credentials struct {
	Username string
	Password string
}

// Info is the immutable per-process record a session reports back via
// INFO_RESULT, per spec §3.
type Info struct {
	Version         string
	ProtocolVersion int
	Capabilities    []string
	StorageRoot     string
	MaxUploadSize   *int64
}

// DefaultCapabilities lists every command this implementation supports.
var DefaultCapabilities = []string{"AUTH", "PUT", "GET", "LIST", "DEL", "INFO", "BYE"}

// Actor drives one accepted TCP connection through the handshake, auth,
// and command-dispatch state machine described in spec §4.5. One Actor is
// created per connection and is never shared across goroutines.
type Actor struct {
	conn             net.Conn
	store            *storage.Store
	creds            Credentials
	info             Info
	logger           *logging.Logger
	handshakeTimeout time.Duration
	maxFrameSize     uint32
	getLimiter       *rate.Limiter

	session *Session
	reader  *bufio.Reader
}

// NewActor constructs an Actor for a freshly accepted connection. logger
// may be nil, in which case a default INFO-level stdout/stderr logger is
// used.
func NewActor(conn net.Conn, store *storage.Store, creds Credentials, info Info, logger *logging.Logger, getLimiter *rate.Limiter) *Actor {
	if logger == nil {
		logger = logging.New("session", logging.INFO)
	}
	return &Actor{
		conn:             conn,
		store:            store,
		creds:            creds,
		info:             info,
		logger:           logger.WithField("remoteAddr", conn.RemoteAddr().String()),
		handshakeTimeout: protocol.DefaultHandshakeTimeoutSeconds * time.Second,
		maxFrameSize:     protocol.DefaultMaxFrameSize,
		getLimiter:       getLimiter,
		session:          New(conn.RemoteAddr().String()),
		reader:           bufio.NewReader(conn),
	}
}

// Run drives the actor to completion: handshake, then command dispatch
// until the session closes. It never returns an error the caller must act
// on beyond logging — every failure mode already closed the socket.
func (a *Actor) Run() {
	defer a.conn.Close()
	defer a.session.Wipe()

	if err := a.runHandshake(); err != nil {
		a.logger.Debug("handshake failed", logging.Fields{"error": err.Error()})
		return
	}

	a.logger = a.logger.WithField("sessionId", a.session.ID)
	a.logger.Info("session established")

	if err := a.dispatchLoop(); err != nil {
		a.logger.Debug("session ended", logging.Fields{"error": err.Error()})
	}
}

// runHandshake implements the AwaitHello state from spec §4.5: read one
// newline-terminated CLIENT_HELLO, validate it, reply SERVER_HELLO, and
// derive the directional session keys. Any failure closes the socket
// silently, since the peer has not yet derived keys to read an encrypted
// reply with.
func (a *Actor) runHandshake() error {
	_ = a.conn.SetReadDeadline(time.Now().Add(a.handshakeTimeout))
	defer a.conn.SetReadDeadline(time.Time{})

	line, err := a.reader.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("session: read hello line: %w", err)
	}

	msg, err := protocol.Decode(line)
	if err != nil {
		return fmt.Errorf("session: decode hello: %w", err)
	}
	hello, ok := msg.(*protocol.ClientHello)
	if !ok {
		return errors.New("session: first message was not CLIENT_HELLO")
	}
	if hello.Version != protocol.ProtocolVersion || hello.Cipher != protocol.CipherAES256GCM || hello.Kex != protocol.KexX25519 {
		return errors.New("session: unsupported handshake parameters")
	}
	clientPub, err := base64.StdEncoding.DecodeString(hello.ClientPublicKey)
	if err != nil || len(clientPub) == 0 {
		return errors.New("session: invalid client public key")
	}

	sessionID, err := NewSessionID()
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	keypair, err := x25519.Generate()
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	shared, err := x25519.Exchange(keypair.PrivateKey, clientPub)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	c2s, s2c, err := kdf.DeriveSessionKeys(shared, sessionID)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	reply := protocol.NewServerHello(base64.StdEncoding.EncodeToString(keypair.PublicKey), sessionID)
	data, err := protocol.Encode(reply)
	if err != nil {
		return fmt.Errorf("session: encode server hello: %w", err)
	}
	if _, err := a.conn.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("session: write server hello: %w", err)
	}

	a.session.ID = sessionID
	a.session.C2S = c2s
	a.session.S2C = s2c
	a.session.HandshakeComplete = true
	a.session.State = StateAwaitAuth
	return nil
}

// dispatchLoop implements the AwaitAuth/Ready states: decrypt frames one
// at a time from the bytes already buffered by the handshake reader,
// dispatch them, and write encrypted replies. Per spec §5 this is
// strictly serial — one frame fully handled before the next is read.
func (a *Actor) dispatchLoop() error {
	for {
		frame, err := a.readFrame()
		if err != nil {
			return err
		}

		plaintext, err := aead.Open(a.session.C2S, frame)
		if err != nil {
			return fmt.Errorf("session: decrypt frame: %w", err)
		}

		msg, err := protocol.Decode(plaintext)
		if err != nil {
			// A well-formed message of an unknown type is an invalid
			// command: reply and keep the session open.
			var unknown *protocol.ErrUnknownType
			if errors.As(err, &unknown) {
				a.sendError(protocol.CodeInvalidCommand, "unrecognized command")
				continue
			}
			// Malformed JSON (or a message with no "type" field) inside a
			// decrypted frame is a protocol break: reply once, then close,
			// per spec §4.5/§7.
			a.sendError(protocol.CodeInvalidMessage, "malformed message")
			return fmt.Errorf("session: malformed message: %w", err)
		}

		done, err := a.handle(msg)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (a *Actor) readFrame() ([]byte, error) {
	lengthBuf := make([]byte, protocol.LengthPrefixSize)
	if _, err := io.ReadFull(a.reader, lengthBuf); err != nil {
		return nil, fmt.Errorf("session: read frame length: %w", err)
	}
	length := binary.BigEndian.Uint32(lengthBuf)
	if length > a.maxFrameSize {
		return nil, fmt.Errorf("%w: declared %d bytes", protocol.ErrFrameTooLarge, length)
	}
	frame := make([]byte, length)
	if _, err := io.ReadFull(a.reader, frame); err != nil {
		return nil, fmt.Errorf("session: read frame body: %w", err)
	}
	return frame, nil
}

// handle dispatches one decoded message and returns done=true once the
// session should terminate (BYE or an unrecoverable failure already
// reported to the caller as an error).
func (a *Actor) handle(msg interface{}) (done bool, err error) {
	if a.session.State == StateAwaitAuth {
		auth, isAuth := msg.(*protocol.Auth)
		if !isAuth {
			a.sendError(protocol.CodeUnauthorized, "authentication required")
			return false, nil
		}
		return false, a.handleAuth(auth)
	}

	switch m := msg.(type) {
	case *protocol.PutBegin:
		return false, a.handlePutBegin(m)
	case *protocol.PutChunk:
		return false, a.handlePutChunk(m)
	case *protocol.PutEnd:
		return false, a.handlePutEnd(m)
	case *protocol.GetBegin:
		return false, a.handleGetBegin(m)
	case *protocol.List:
		return false, a.handleList(m)
	case *protocol.Del:
		return false, a.handleDel(m)
	case *protocol.Info:
		return false, a.handleInfo(m)
	case *protocol.Bye:
		a.session.State = StateClosed
		return true, nil
	default:
		a.sendError(protocol.CodeInvalidCommand, "unrecognized command")
		return false, nil
	}
}

func (a *Actor) handleAuth(msg *protocol.Auth) error {
	userOK := subtle.ConstantTimeCompare([]byte(msg.Username), []byte(a.creds.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(msg.Password), []byte(a.creds.Password)) == 1
	if !userOK || !passOK {
		return a.send(protocol.NewAuthError(protocol.CodeAuthInvalidCredentials, "invalid credentials"))
	}
	a.session.State = StateReady
	a.session.Authenticated = true
	return a.send(protocol.NewAuthOK())
}

func (a *Actor) handlePutBegin(msg *protocol.PutBegin) error {
	a.session.BeginUpload(msg.Path, msg.Size)
	if err := a.store.WriteWhole(msg.Path, make([]byte, 0)); err != nil {
		// Per spec §9's open question: PUT_BEGIN has no dedicated reply,
		// but a create/truncate failure is surfaced on the generic ERROR
		// envelope so a client isn't left inferring failure from a later
		// PUT_CHUNK/PUT_END error.
		a.session.EndUpload(msg.Path)
		a.sendStorageError(err)
	}
	return nil
}

func (a *Actor) handlePutChunk(msg *protocol.PutChunk) error {
	if _, ok := a.session.Upload(msg.Path); !ok {
		a.sendError(protocol.CodeUploadNotInitialized, "upload not initialized")
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		a.sendError(protocol.CodeInvalidMessage, "invalid chunk data")
		return nil
	}
	if err := a.store.WriteChunk(msg.Path, data, msg.Offset); err != nil {
		a.sendStorageError(err)
		return nil
	}
	a.session.AddReceivedBytes(msg.Path, int64(len(data)))
	return nil
}

func (a *Actor) handlePutEnd(msg *protocol.PutEnd) error {
	a.session.EndUpload(msg.Path)
	return a.send(protocol.NewPutOK(msg.Path))
}

func (a *Actor) handleGetBegin(msg *protocol.GetBegin) error {
	size, err := a.store.FileSize(msg.Path)
	if err != nil {
		a.sendStorageError(err)
		return nil
	}
	if err := a.send(protocol.NewGetMeta(msg.Path, size)); err != nil {
		return err
	}

	var offset int64
	for offset < size {
		length := int64(protocol.GetChunkSize)
		if remaining := size - offset; remaining < length {
			length = remaining
		}
		chunk, err := a.store.ReadChunk(msg.Path, offset, int(length))
		if err != nil {
			a.sendStorageError(err)
			return nil
		}
		if a.getLimiter != nil {
			if err := a.getLimiter.WaitN(context.Background(), len(chunk)); err != nil {
				return fmt.Errorf("session: rate limiter: %w", err)
			}
		}
		encoded := base64.StdEncoding.EncodeToString(chunk)
		if err := a.send(protocol.NewGetChunk(msg.Path, offset, encoded)); err != nil {
			return err
		}
		offset += int64(len(chunk))
	}
	return a.send(protocol.NewGetEnd(msg.Path))
}

func (a *Actor) handleList(msg *protocol.List) error {
	entries, err := a.store.List(msg.Path)
	if err != nil {
		a.sendStorageError(err)
		return nil
	}
	items := make([]protocol.ListItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, protocol.ListItem{Name: e.Name, Type: string(e.Type), Size: e.Size})
	}
	return a.send(protocol.NewListResult(msg.Path, items))
}

func (a *Actor) handleDel(msg *protocol.Del) error {
	if err := a.store.DeleteFile(msg.Path); err != nil {
		code, message := classifyForWire(err)
		return a.send(protocol.NewDelError(msg.Path, code, message))
	}
	return a.send(protocol.NewDelOK(msg.Path))
}

// classifyForWire maps a storage error to the (errorCode, message) pair
// sent on the wire, falling back to INTERNAL_ERROR for anything that
// isn't a *storage.Error.
func classifyForWire(err error) (protocol.ErrorCode, string) {
	var se *storage.Error
	if errors.As(err, &se) {
		if se.Err != nil {
			return se.Code, se.Err.Error()
		}
		return se.Code, string(se.Code)
	}
	return protocol.CodeInternalError, err.Error()
}

func (a *Actor) handleInfo(_ *protocol.Info) error {
	return a.send(protocol.NewInfoResult(a.info.Version, a.info.ProtocolVersion, a.info.Capabilities, a.info.StorageRoot, a.info.MaxUploadSize))
}

// send encrypts and frames a single reply message under the server->client key.
func (a *Actor) send(msg interface{}) error {
	plaintext, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("session: encode reply: %w", err)
	}
	blob, err := aead.Seal(a.session.S2C, plaintext)
	if err != nil {
		return fmt.Errorf("session: seal reply: %w", err)
	}
	if _, err := a.conn.Write(protocol.EncodeFrame(blob)); err != nil {
		return fmt.Errorf("session: write reply: %w", err)
	}
	return nil
}

func (a *Actor) sendError(code protocol.ErrorCode, message string) {
	if err := a.send(protocol.NewError(code, message)); err != nil {
		a.logger.Debug("failed to send error reply", logging.Fields{"error": err.Error()})
	}
}

func (a *Actor) sendStorageError(err error) {
	code, message := classifyForWire(err)
	a.sendError(code, message)
}
