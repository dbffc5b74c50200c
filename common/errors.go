package common

import "strconv"

// ErrInvalidEnum signifies an unknown textual representation of an enum was
// passed for unmarshalling
type ErrInvalidEnum string

func (e ErrInvalidEnum) Error() string {
	return "invalid enum: " + string(e)
}

// ErrInvalidPostID signifies that the post ID passed by the client is invalid
// in some way. In what way exactly should be evident from the API endpoint.
type ErrInvalidPostID uint64

func (e ErrInvalidPostID) Error() string {
	return "invalid post ID: " + strconv.FormatUint(uint64(e), 10)
}

// ErrInvalidIP signifies a stored poster IP could not be parsed back into an
// address. Carried as its own type, so the reader can refuse to serve the
// affected post instead of half-redacting it.
type ErrInvalidIP string

func (e ErrInvalidIP) Error() string {
	return "invalid IP: " + string(e)
}
