package jobs

// エラーコード一覧。HTTPステータスへの対応は http.go の respondWithError が行います。
const (
	CodeInvalidInput    = "INVALID_INPUT"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeStorageError    = "STORAGE_ERROR"
	CodeQueueError      = "QUEUE_ERROR"
	CodeResultNotFound  = "RESULT_NOT_FOUND"
	CodeJobFailed       = "JOB_FAILED"
)

// Error はコード付きのAPIエラーです。
type Error struct {
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Code + ": " + e.Message + ": " + e.cause.Error()
	}
	return e.Code + ": " + e.Message
}

// Unwrap は原因となったエラーを返します。
func (e *Error) Unwrap() error {
	return e.cause
}

func newError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}
