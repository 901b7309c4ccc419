package domain

// Identity holds the user facts read from a verified token. The identity platform
// owns the user; this service never stores it.
type Identity struct {
	Subject       string `json:"sub"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}
