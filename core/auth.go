package core

// Identity is the current user as resolved by the authentication
// collaborator. The data layer treats it as opaque; an empty UID means
// "not signed in".
type Identity struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

func (id Identity) IsZero() bool {
	return id.UID == ""
}

// Session carries the nullable current identity plus a flag set while
// the identity is still resolving.
type Session struct {
	Identity Identity
	Loading  bool
}

func (s Session) Authenticated() bool {
	return !s.Loading && !s.Identity.IsZero()
}
