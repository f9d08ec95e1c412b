package domain

// CanonicalIdentity is the identity asserted by the external identity
// provider for a bearer token. It is input only and never stored verbatim;
// the reconciler projects it into a User.
type CanonicalIdentity struct {
	ID            string
	Email         string
	EmailVerified bool
	Metadata      map[string]any
}

// RegistrationExtras carries optional profile fields collected at sign-up
// that seed a freshly provisioned User.
type RegistrationExtras struct {
	FullName     string `json:"full_name"`
	PhoneNumber  string `json:"phone_number"`
	UserType     string `json:"user_type"`
	FieldOfStudy string `json:"field_of_study"`
}
