package errs

const (
	ServerInternalError = 500

	ArgsError             = 1001
	NotJoinedError        = 1002
	IdentityError         = 1003
	NoPermissionError     = 1004
	RecordNotFoundError   = 1005
	StorageError          = 1006
	UnsupportedEventError = 1007
)

var (
	ErrInternalServer   = NewCodeError(ServerInternalError, "internal server error")
	ErrArgs             = NewCodeError(ArgsError, "invalid arguments")
	ErrNotJoined        = NewCodeError(NotJoinedError, "connection has not joined")
	ErrIdentityMismatch = NewCodeError(IdentityError, "identity mismatch")
	ErrNoPermission     = NewCodeError(NoPermissionError, "no permission")
	ErrRecordNotFound   = NewCodeError(RecordNotFoundError, "record not found")
	ErrStorage          = NewCodeError(StorageError, "storage unavailable")
	ErrUnsupportedEvent = NewCodeError(UnsupportedEventError, "unsupported event")
)
