package service

type ErrorCode string

const (
	ErrorCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrorCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrorCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrorCodeInvalidBody   ErrorCode = "INVALID_BODY"
	ErrorCodeCheckInExists ErrorCode = "CHECKIN_EXISTS"
	ErrorCodeUnspecified   ErrorCode = "UNSPECIFIED"
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func (e *Error) Error() string {
	return e.Message
}
