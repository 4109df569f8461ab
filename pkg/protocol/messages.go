package protocol

import (
	"encoding/json"
	"fmt"
)

// ClientHello is the sole client->server handshake message.
type ClientHello struct {
	Type            string `json:"type"`
	Version         int    `json:"version"`
	Cipher          string `json:"cipher"`
	Kex             string `json:"kex"`
	ClientPublicKey string `json:"clientPublicKey"`
}

// NewClientHello builds a well-formed CLIENT_HELLO for the mandatory ciphersuite.
func NewClientHello(clientPublicKeyB64 string) *ClientHello {
	return &ClientHello{
		Type:            TypeClientHello,
		Version:         ProtocolVersion,
		Cipher:          CipherAES256GCM,
		Kex:             KexX25519,
		ClientPublicKey: clientPublicKeyB64,
	}
}

// ServerHello is the sole server->client handshake reply.
type ServerHello struct {
	Type            string `json:"type"`
	OK              bool   `json:"ok"`
	Version         int    `json:"version"`
	Cipher          string `json:"cipher"`
	Kex             string `json:"kex"`
	ServerPublicKey string `json:"serverPublicKey"`
	SessionID       string `json:"sessionId"`
	Error           string `json:"error,omitempty"`
}

// NewServerHello builds a successful SERVER_HELLO.
func NewServerHello(serverPublicKeyB64, sessionID string) *ServerHello {
	return &ServerHello{
		Type:            TypeServerHello,
		OK:              true,
		Version:         ProtocolVersion,
		Cipher:          CipherAES256GCM,
		Kex:             KexX25519,
		ServerPublicKey: serverPublicKeyB64,
		SessionID:       sessionID,
	}
}

// Auth carries login credentials.
type Auth struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// NewAuth builds an AUTH request.
func NewAuth(username, password string) *Auth {
	return &Auth{Type: TypeAuth, Username: username, Password: password}
}

// AuthOK acknowledges successful authentication.
type AuthOK struct {
	Type string `json:"type"`
}

// NewAuthOK builds an AUTH_OK reply.
func NewAuthOK() *AuthOK { return &AuthOK{Type: TypeAuthOK} }

// AuthError reports failed authentication.
type AuthError struct {
	Type      string    `json:"type"`
	Error     string    `json:"error"`
	ErrorCode ErrorCode `json:"errorCode"`
	Message   string    `json:"message,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// NewAuthError builds an AUTH_ERROR reply.
func NewAuthError(code ErrorCode, message string) *AuthError {
	return &AuthError{Type: TypeAuthError, Error: string(code), ErrorCode: code, Message: message}
}

// PutBegin announces an upload.
type PutBegin struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// NewPutBegin builds a PUT_BEGIN request.
func NewPutBegin(path string, size int64) *PutBegin {
	return &PutBegin{Type: TypePutBegin, Path: path, Size: size}
}

// PutChunk carries one chunk of upload data.
type PutChunk struct {
	Type   string `json:"type"`
	Path   string `json:"path"`
	Offset int64  `json:"offset"`
	Data   string `json:"data"`
}

// NewPutChunk builds a PUT_CHUNK request; data is base64-encoded by the caller.
func NewPutChunk(path string, offset int64, dataB64 string) *PutChunk {
	return &PutChunk{Type: TypePutChunk, Path: path, Offset: offset, Data: dataB64}
}

// PutEnd closes an upload.
type PutEnd struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// NewPutEnd builds a PUT_END request.
func NewPutEnd(path string) *PutEnd { return &PutEnd{Type: TypePutEnd, Path: path} }

// PutOK confirms an upload completed.
type PutOK struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// NewPutOK builds a PUT_OK reply.
func NewPutOK(path string) *PutOK { return &PutOK{Type: TypePutOK, Path: path} }

// GetBegin requests a download.
type GetBegin struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// NewGetBegin builds a GET_BEGIN request.
func NewGetBegin(path string) *GetBegin { return &GetBegin{Type: TypeGetBegin, Path: path} }

// GetMeta announces the size of a file about to be streamed.
type GetMeta struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// NewGetMeta builds a GET_META reply.
func NewGetMeta(path string, size int64) *GetMeta {
	return &GetMeta{Type: TypeGetMeta, Path: path, Size: size}
}

// GetChunk carries one chunk of download data.
type GetChunk struct {
	Type   string `json:"type"`
	Path   string `json:"path"`
	Offset int64  `json:"offset"`
	Data   string `json:"data"`
}

// NewGetChunk builds a GET_CHUNK reply; data is base64-encoded by the caller.
func NewGetChunk(path string, offset int64, dataB64 string) *GetChunk {
	return &GetChunk{Type: TypeGetChunk, Path: path, Offset: offset, Data: dataB64}
}

// GetEnd closes a download.
type GetEnd struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// NewGetEnd builds a GET_END reply.
func NewGetEnd(path string) *GetEnd { return &GetEnd{Type: TypeGetEnd, Path: path} }

// List requests a directory listing.
type List struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// NewList builds a LIST request.
func NewList(path string) *List { return &List{Type: TypeList, Path: path} }

// ListItem is one entry in a LIST_RESULT.
type ListItem struct {
	Name string `json:"name"`
	Type string `json:"type"` // "file" or "dir"
	Size *int64 `json:"size,omitempty"`
}

// ListResult answers a LIST request.
type ListResult struct {
	Type  string     `json:"type"`
	Path  string     `json:"path"`
	Items []ListItem `json:"items"`
}

// NewListResult builds a LIST_RESULT reply.
func NewListResult(path string, items []ListItem) *ListResult {
	if items == nil {
		items = []ListItem{}
	}
	return &ListResult{Type: TypeListResult, Path: path, Items: items}
}

// Del requests deletion of a file.
type Del struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// NewDel builds a DEL request.
func NewDel(path string) *Del { return &Del{Type: TypeDel, Path: path} }

// DelOK confirms deletion.
type DelOK struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// NewDelOK builds a DEL_OK reply.
func NewDelOK(path string) *DelOK { return &DelOK{Type: TypeDelOK, Path: path} }

// DelError reports a failed deletion. Error duplicates Message for legacy
// clients that match on the "error" field instead of "message".
type DelError struct {
	Type      string    `json:"type"`
	Path      string    `json:"path"`
	ErrorCode ErrorCode `json:"errorCode"`
	Message   string    `json:"message"`
	Error     string    `json:"error"`
}

// NewDelError builds a DEL_ERROR reply.
func NewDelError(path string, code ErrorCode, message string) *DelError {
	return &DelError{Type: TypeDelError, Path: path, ErrorCode: code, Message: message, Error: message}
}

// Info requests server introspection.
type Info struct {
	Type string `json:"type"`
}

// NewInfo builds an INFO request.
func NewInfo() *Info { return &Info{Type: TypeInfo} }

// InfoResult answers an INFO request.
type InfoResult struct {
	Type            string   `json:"type"`
	Version         string   `json:"version"`
	ProtocolVersion int      `json:"protocolVersion"`
	Capabilities    []string `json:"capabilities"`
	StorageRoot     string   `json:"storageRoot,omitempty"`
	MaxUploadSize   *int64   `json:"maxUploadSize,omitempty"`
}

// NewInfoResult builds an INFO_RESULT reply.
func NewInfoResult(version string, protocolVersion int, capabilities []string, storageRoot string, maxUploadSize *int64) *InfoResult {
	if capabilities == nil {
		capabilities = []string{}
	}
	return &InfoResult{
		Type:            TypeInfoResult,
		Version:         version,
		ProtocolVersion: protocolVersion,
		Capabilities:    capabilities,
		StorageRoot:     storageRoot,
		MaxUploadSize:   maxUploadSize,
	}
}

// Bye announces a clean disconnect.
type Bye struct {
	Type string `json:"type"`
}

// NewBye builds a BYE request.
func NewBye() *Bye { return &Bye{Type: TypeBye} }

// ErrorMsg is the generic post-handshake error envelope.
type ErrorMsg struct {
	Type      string    `json:"type"`
	Error     string    `json:"error"`
	ErrorCode ErrorCode `json:"errorCode"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
}

// NewError builds an ERROR reply.
func NewError(code ErrorCode, message string) *ErrorMsg {
	return &ErrorMsg{Type: TypeError, Error: string(code), ErrorCode: code, Message: message}
}

// envelope is used only to peek at the discriminator field.
type envelope struct {
	Type string `json:"type"`
}

// PeekType reports the "type" discriminator of a JSON message without
// fully decoding it. It returns an error for malformed JSON or a missing
// "type" field, distinguishing the two via ErrMissingType.
func PeekType(data []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("protocol: malformed JSON: %w", err)
	}
	if env.Type == "" {
		return "", ErrMissingType
	}
	return env.Type, nil
}

// ErrMissingType is returned by PeekType and Decode when a message has no
// "type" field.
var ErrMissingType = fmt.Errorf("protocol: message has no \"type\" field")

// ErrUnknownType is returned by Decode when "type" does not match any
// known message variant.
type ErrUnknownType struct {
	Type string
}

func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("protocol: unknown message type %q", e.Type)
}

// Decode parses a single JSON message into its concrete typed struct,
// selected by the "type" discriminator. The returned value is one of the
// *XxxMsg / *Xxx pointer types declared in this file.
func Decode(data []byte) (interface{}, error) {
	typ, err := PeekType(data)
	if err != nil {
		return nil, err
	}

	var target interface{}
	switch typ {
	case TypeClientHello:
		target = &ClientHello{}
	case TypeServerHello:
		target = &ServerHello{}
	case TypeAuth:
		target = &Auth{}
	case TypeAuthOK:
		target = &AuthOK{}
	case TypeAuthError:
		target = &AuthError{}
	case TypePutBegin:
		target = &PutBegin{}
	case TypePutChunk:
		target = &PutChunk{}
	case TypePutEnd:
		target = &PutEnd{}
	case TypePutOK:
		target = &PutOK{}
	case TypeGetBegin:
		target = &GetBegin{}
	case TypeGetMeta:
		target = &GetMeta{}
	case TypeGetChunk:
		target = &GetChunk{}
	case TypeGetEnd:
		target = &GetEnd{}
	case TypeList:
		target = &List{}
	case TypeListResult:
		target = &ListResult{}
	case TypeDel:
		target = &Del{}
	case TypeDelOK:
		target = &DelOK{}
	case TypeDelError:
		target = &DelError{}
	case TypeInfo:
		target = &Info{}
	case TypeInfoResult:
		target = &InfoResult{}
	case TypeBye:
		target = &Bye{}
	case TypeError:
		target = &ErrorMsg{}
	default:
		return nil, &ErrUnknownType{Type: typ}
	}

	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("protocol: malformed JSON: %w", err)
	}
	return target, nil
}

// Encode marshals any of the typed message structs to JSON.
func Encode(msg interface{}) ([]byte, error) {
	return json.Marshal(msg)
}
