package session

import (
	"bufio"
	"encoding/base64"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/leoftp/leo/pkg/crypto/aead"
	"github.com/leoftp/leo/pkg/crypto/kdf"
	"github.com/leoftp/leo/pkg/crypto/x25519"
	"github.com/leoftp/leo/pkg/protocol"
	"github.com/leoftp/leo/pkg/storage"
)

// testClient is a minimal hand-rolled LEO client used only to exercise
// the Actor from the wire side, independent of the real client engine
// under pkg/client.
type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
	c2s    []byte
	s2c    []byte
}

func dialAndHandshake(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	keypair, err := x25519.Generate()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	hello := protocol.NewClientHello(base64.StdEncoding.EncodeToString(keypair.PublicKey))
	data, err := protocol.Encode(hello)
	if err != nil {
		t.Fatalf("encode hello: %v", err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		t.Fatalf("write hello: %v", err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read server hello: %v", err)
	}
	replyMsg, err := protocol.Decode(line)
	if err != nil {
		t.Fatalf("decode server hello: %v", err)
	}
	reply, ok := replyMsg.(*protocol.ServerHello)
	if !ok {
		t.Fatalf("expected SERVER_HELLO, got %T", replyMsg)
	}
	if !reply.OK {
		t.Fatalf("server hello not ok: %+v", reply)
	}

	serverPub, err := base64.StdEncoding.DecodeString(reply.ServerPublicKey)
	if err != nil {
		t.Fatalf("decode server public key: %v", err)
	}
	shared, err := x25519.Exchange(keypair.PrivateKey, serverPub)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	c2s, s2c, err := kdf.DeriveSessionKeys(shared, reply.SessionID)
	if err != nil {
		t.Fatalf("derive keys: %v", err)
	}

	return &testClient{t: t, conn: conn, reader: reader, c2s: c2s, s2c: s2c}
}

func (c *testClient) send(msg interface{}) {
	c.t.Helper()
	plaintext, err := protocol.Encode(msg)
	if err != nil {
		c.t.Fatalf("encode: %v", err)
	}
	blob, err := aead.Seal(c.c2s, plaintext)
	if err != nil {
		c.t.Fatalf("seal: %v", err)
	}
	if _, err := c.conn.Write(protocol.EncodeFrame(blob)); err != nil {
		c.t.Fatalf("write frame: %v", err)
	}
}

func (c *testClient) recv() interface{} {
	c.t.Helper()
	lengthBuf := make([]byte, protocol.LengthPrefixSize)
	if _, err := readFullTest(c.reader, lengthBuf); err != nil {
		c.t.Fatalf("read length: %v", err)
	}
	length := binary.BigEndian.Uint32(lengthBuf)
	blob := make([]byte, length)
	if _, err := readFullTest(c.reader, blob); err != nil {
		c.t.Fatalf("read blob: %v", err)
	}
	plaintext, err := aead.Open(c.s2c, blob)
	if err != nil {
		c.t.Fatalf("open: %v", err)
	}
	msg, err := protocol.Decode(plaintext)
	if err != nil {
		c.t.Fatalf("decode: %v", err)
	}
	return msg
}

func readFullTest(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func startTestServer(t *testing.T) (addr string, store *storage.Store, stop func()) {
	t.Helper()
	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	info := Info{Version: "1.0.0", ProtocolVersion: protocol.ProtocolVersion, Capabilities: DefaultCapabilities, StorageRoot: store.Root()}
	srv := NewServer(store, Credentials{Username: "user", Password: "pass"}, info, nil)
	go srv.Serve(ln)

	return ln.Addr().String(), store, func() { ln.Close() }
}

func TestHappyPathPutListGetBye(t *testing.T) {
	addr, _, stop := startTestServer(t)
	defer stop()

	c := dialAndHandshake(t, addr)
	defer c.conn.Close()

	c.send(protocol.NewAuth("user", "pass"))
	if _, ok := c.recv().(*protocol.AuthOK); !ok {
		t.Fatal("expected AUTH_OK")
	}

	content := []byte("hello leo")
	c.send(protocol.NewPutBegin("remote/file.txt", int64(len(content))))
	c.send(protocol.NewPutChunk("remote/file.txt", 0, base64.StdEncoding.EncodeToString(content)))
	c.send(protocol.NewPutEnd("remote/file.txt"))
	putOK, ok := c.recv().(*protocol.PutOK)
	if !ok || putOK.Path != "remote/file.txt" {
		t.Fatalf("expected PUT_OK, got %+v", putOK)
	}

	c.send(protocol.NewList("remote"))
	listResult, ok := c.recv().(*protocol.ListResult)
	if !ok {
		t.Fatalf("expected LIST_RESULT, got %T", listResult)
	}
	var found bool
	for _, item := range listResult.Items {
		if item.Name == "file.txt" && item.Type == "file" && item.Size != nil && *item.Size == int64(len(content)) {
			found = true
		}
	}
	if !found {
		t.Fatalf("file.txt not found in listing: %+v", listResult.Items)
	}

	c.send(protocol.NewGetBegin("remote/file.txt"))
	meta, ok := c.recv().(*protocol.GetMeta)
	if !ok || meta.Size != int64(len(content)) {
		t.Fatalf("expected GET_META with size %d, got %+v", len(content), meta)
	}
	var assembled []byte
	for {
		msg := c.recv()
		if end, ok := msg.(*protocol.GetEnd); ok {
			if end.Path != "remote/file.txt" {
				t.Fatalf("GET_END path mismatch: %+v", end)
			}
			break
		}
		chunk, ok := msg.(*protocol.GetChunk)
		if !ok {
			t.Fatalf("expected GET_CHUNK or GET_END, got %T", msg)
		}
		data, err := base64.StdEncoding.DecodeString(chunk.Data)
		if err != nil {
			t.Fatalf("decode chunk data: %v", err)
		}
		assembled = append(assembled, data...)
	}
	if string(assembled) != string(content) {
		t.Fatalf("GET assembled %q, want %q", assembled, content)
	}

	c.send(protocol.NewBye())
}

func TestBadCredentialsThenRetrySucceeds(t *testing.T) {
	addr, _, stop := startTestServer(t)
	defer stop()

	c := dialAndHandshake(t, addr)
	defer c.conn.Close()

	c.send(protocol.NewAuth("user", "wrong"))
	authErr, ok := c.recv().(*protocol.AuthError)
	if !ok || authErr.ErrorCode != protocol.CodeAuthInvalidCredentials {
		t.Fatalf("expected AUTH_ERROR/AUTH_INVALID_CREDENTIALS, got %+v", authErr)
	}

	c.send(protocol.NewAuth("user", "pass"))
	if _, ok := c.recv().(*protocol.AuthOK); !ok {
		t.Fatal("expected AUTH_OK on retry")
	}
}

func TestPathTraversalOnDelIsRejected(t *testing.T) {
	addr, _, stop := startTestServer(t)
	defer stop()

	c := dialAndHandshake(t, addr)
	defer c.conn.Close()

	c.send(protocol.NewAuth("user", "pass"))
	_ = c.recv()

	c.send(protocol.NewDel("../evil.txt"))
	delErr, ok := c.recv().(*protocol.DelError)
	if !ok || delErr.ErrorCode != protocol.CodeInvalidPath {
		t.Fatalf("expected DEL_ERROR/INVALID_PATH, got %+v", delErr)
	}
}

func TestMissingFileOnGetYieldsErrorWithoutMeta(t *testing.T) {
	addr, _, stop := startTestServer(t)
	defer stop()

	c := dialAndHandshake(t, addr)
	defer c.conn.Close()

	c.send(protocol.NewAuth("user", "pass"))
	_ = c.recv()

	c.send(protocol.NewGetBegin("absent.txt"))
	errMsg, ok := c.recv().(*protocol.ErrorMsg)
	if !ok || errMsg.ErrorCode != protocol.CodeFileNotFound {
		t.Fatalf("expected ERROR/FILE_NOT_FOUND, got %+v", errMsg)
	}
}

func TestUnauthorizedCommandBeforeAuth(t *testing.T) {
	addr, _, stop := startTestServer(t)
	defer stop()

	c := dialAndHandshake(t, addr)
	defer c.conn.Close()

	c.send(protocol.NewInfo())
	errMsg, ok := c.recv().(*protocol.ErrorMsg)
	if !ok || errMsg.ErrorCode != protocol.CodeUnauthorized {
		t.Fatalf("expected ERROR/UNAUTHORIZED, got %+v", errMsg)
	}
}

func TestInfoReportsProtocolVersionAndCapabilities(t *testing.T) {
	addr, _, stop := startTestServer(t)
	defer stop()

	c := dialAndHandshake(t, addr)
	defer c.conn.Close()

	c.send(protocol.NewAuth("user", "pass"))
	_ = c.recv()

	c.send(protocol.NewInfo())
	result, ok := c.recv().(*protocol.InfoResult)
	if !ok || result.ProtocolVersion != protocol.ProtocolVersion {
		t.Fatalf("expected INFO_RESULT with protocolVersion %d, got %+v", protocol.ProtocolVersion, result)
	}
	var hasDel bool
	for _, cap := range result.Capabilities {
		if cap == "DEL" {
			hasDel = true
		}
	}
	if !hasDel {
		t.Fatalf("expected DEL capability, got %v", result.Capabilities)
	}
}
