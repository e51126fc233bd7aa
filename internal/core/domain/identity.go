package domain

const (
	RoleDevotee = "devotee"
	RoleAdmin   = "admin"
)

// Headers carrying the verified caller from the gateway to services.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// Identity is the verified caller attached by the gateway.
type Identity struct {
	Subject string
	Role    string
}

func (i Identity) IsZero() bool {
	return i.Subject == ""
}
