package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	// RoleAdmin manages the whole deployment and sees every account.
	RoleAdmin = "admin"
	// RoleReseller manages one account (tenant) and all of its extensions.
	RoleReseller = "reseller"
	// RoleAgent is a single extension inside an account.
	RoleAgent = "agent"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
