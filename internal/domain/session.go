package domain

// Session is the identity a checkout runs under: a signed-in user or a guest.
type Session struct {
	UserID         string
	Email          string
	BearerToken    string
	GuestSessionID string
}

func (s Session) IsGuest() bool {
	return s.UserID == ""
}

// OwnerID is the key carts and checkout state are stored under.
func (s Session) OwnerID() string {
	if s.IsGuest() {
		return s.GuestSessionID
	}
	return s.UserID
}

// Key identifies the session across both identity kinds. Guest ids and user ids
// never share a key, even when their values are equal.
func (s Session) Key() string {
	if s.IsGuest() {
		return "guest:" + s.GuestSessionID
	}
	return "user:" + s.UserID
}
