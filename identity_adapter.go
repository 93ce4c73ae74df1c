package auth

// userIdentity adapts a User record to the Identity interface without
// colliding with the model's field names.
type userIdentity struct {
	user *User
}

var _ Identity = userIdentity{}

func (i userIdentity) ID() string {
	return i.user.ID.String()
}

func (i userIdentity) Email() string {
	return i.user.Email
}

func (i userIdentity) Role() string {
	return i.user.Role
}

// AsIdentity returns the Identity view of a user record.
func (u *User) AsIdentity() Identity {
	return userIdentity{user: u}
}
