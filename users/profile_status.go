package users

// ProfileStatus tells consumers how far a visitor has progressed through sign-in.
type ProfileStatus string

const (
	// ProfileUnauthenticated: no valid session.
	ProfileUnauthenticated ProfileStatus = "unauthenticated"
	// ProfilePending: signed in with Google, role not chosen yet.
	ProfilePending ProfileStatus = "pending_profile"
	// ProfileComplete: signed in and role chosen.
	ProfileComplete ProfileStatus = "complete"
)

// StatusOf derives the profile status for an optional user.
func StatusOf(u *User) ProfileStatus {
	switch {
	case u == nil:
		return ProfileUnauthenticated
	case !u.HasRole():
		return ProfilePending
	default:
		return ProfileComplete
	}
}

// IsAuthenticated is true for both pending and complete profiles.
func (s ProfileStatus) IsAuthenticated() bool {
	return s == ProfilePending || s == ProfileComplete
}
