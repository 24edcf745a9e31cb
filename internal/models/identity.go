package models

// Identity is the authenticated caller of an engine operation. It is supplied
// by the identity provider and passed explicitly into every call.
type Identity struct {
	UserID int64
}
