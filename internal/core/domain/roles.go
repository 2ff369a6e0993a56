package domain

// Role is the custom role attribute stored on a user document.
type Role string

const (
	RoleGuest        Role = "Guest"
	RoleGeneralUser  Role = "General User"
	RoleEntrepreneur Role = "Entrepreneur"
	RoleAdmin        Role = "Admin"
)

// ParseRole maps a stored role value to a known role.
// Unrecognized or empty values fall back to General User.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleEntrepreneur:
		return RoleEntrepreneur
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleGeneralUser
	}
}

// AuthUser is the identity supplied by the authentication provider.
type AuthUser struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
}

// Screen is one named route the client can navigate to.
type Screen struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Tab   bool   `json:"tab,omitempty"`
}

// RouteTree is the screen graph mounted for a role.
type RouteTree struct {
	Role    Role     `json:"role"`
	Initial string   `json:"initial"`
	Screens []Screen `json:"screens"`
}
