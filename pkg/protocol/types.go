// Package protocol implements the LEO wire protocol: the JSON message
// schema, its tagged-union encode/decode, and the two framings that
// coexist on one socket (a newline-terminated handshake line, then
// length-prefixed encrypted frames).
package protocol

// ProtocolVersion is the only protocol version this implementation speaks.
const ProtocolVersion = 1

// Mandatory ciphersuite identifiers exchanged during the handshake.
const (
	CipherAES256GCM = "AES-256-GCM"
	KexX25519       = "X25519"
)

// Message type discriminators carried in the JSON "type" field.
const (
	TypeClientHello = "CLIENT_HELLO"
	TypeServerHello = "SERVER_HELLO"
	TypeAuth        = "AUTH"
	TypeAuthOK      = "AUTH_OK"
	TypeAuthError   = "AUTH_ERROR"
	TypePutBegin    = "PUT_BEGIN"
	TypePutChunk    = "PUT_CHUNK"
	TypePutEnd      = "PUT_END"
	TypePutOK       = "PUT_OK"
	TypeGetBegin    = "GET_BEGIN"
	TypeGetMeta     = "GET_META"
	TypeGetChunk    = "GET_CHUNK"
	TypeGetEnd      = "GET_END"
	TypeList        = "LIST"
	TypeListResult  = "LIST_RESULT"
	TypeDel         = "DEL"
	TypeDelOK       = "DEL_OK"
	TypeDelError    = "DEL_ERROR"
	TypeInfo        = "INFO"
	TypeInfoResult  = "INFO_RESULT"
	TypeBye         = "BYE"
	TypeError       = "ERROR"
)

// ErrorCode is a stable, automation-friendly error identifier carried in
// ERROR and DEL_ERROR messages.
type ErrorCode string

// Normalized error codes the implementation emits, per spec §6.
const (
	CodeInvalidMessage         ErrorCode = "INVALID_MESSAGE"
	CodeInvalidCommand         ErrorCode = "INVALID_COMMAND"
	CodeUnauthorized           ErrorCode = "UNAUTHORIZED"
	CodeAuthInvalidCredentials ErrorCode = "AUTH_INVALID_CREDENTIALS"
	CodeUploadNotInitialized   ErrorCode = "UPLOAD_NOT_INITIALIZED"
	CodeInvalidPath            ErrorCode = "INVALID_PATH"
	CodeFileNotFound           ErrorCode = "FILE_NOT_FOUND"
	CodePermissionDenied       ErrorCode = "PERMISSION_DENIED"
	CodeNotAFile               ErrorCode = "NOT_A_FILE"
	CodeIOError                ErrorCode = "IO_ERROR"
	CodeInternalError          ErrorCode = "INTERNAL_ERROR"
)

// DefaultMaxFrameSize is the default cap on an encrypted frame's declared
// length, per spec §4.2.
const DefaultMaxFrameSize = 16 * 1024 * 1024

// PutChunkSize and GetChunkSize are the fixed chunk sizes the client and
// server use when streaming file contents, per spec §4.6 and §4.5.
const (
	PutChunkSize = 65536
	GetChunkSize = 65536
)

// DefaultClientTimeout is the client engine's default per-request
// correlator timeout, per spec §4.6.
const DefaultClientTimeout = 15 // seconds

// DefaultHandshakeTimeoutSeconds is the server-side handshake timeout in
// seconds, per spec §4.5.
const DefaultHandshakeTimeoutSeconds = 10
