/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Room and Collaboration Business Logic Errors
const (
	// ErrRoomNotFound indicates that the referenced collaboration room does not exist.
	ErrRoomNotFound = 2101

	// ErrSubjectRequired indicates that a room allocation request did not name a business subject.
	ErrSubjectRequired = 2102
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates that the caller presented no valid identity for a protected operation.
	ErrUnauthorized = 3001
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
