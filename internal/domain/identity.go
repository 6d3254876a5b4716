package domain

import "strconv"

// Identity identifies the user a request acts for. It is supplied by the caller
// (an upstream authentication layer) and never created or destroyed here.
type Identity struct {
	UserID   string
	LegacyID int
}

func (i Identity) String() string {
	if i.LegacyID == 0 {
		return i.UserID
	}
	return i.UserID + "#" + strconv.Itoa(i.LegacyID)
}

// IsZero reports whether no user is set.
func (i Identity) IsZero() bool {
	return i.UserID == ""
}
