// Package identity supplies the user identity scoping queued work.
// Authentication itself happens elsewhere; the engine only needs a
// stable opaque id.
package identity

type Static struct {
	userID string
}

func NewStatic(userID string) *Static {
	return &Static{userID: userID}
}

func (s *Static) UserID() string {
	return s.userID
}
