package rbac

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Role names as declared by the marketplace contract's AccessControl.
const (
	RoleAdmin    = "DEFAULT_ADMIN_ROLE"
	RoleFarmer   = "FARMER_ROLE"
	RoleGigOwner = "GIG_OWNER_ROLE"
	RolePauser   = "PAUSER_ROLE"
)

var knownRoles = map[string]bool{
	RoleAdmin:    true,
	RoleFarmer:   true,
	RoleGigOwner: true,
	RolePauser:   true,
}

// RoleID returns the bytes32 identifier the contract uses for a role.
// The admin role is the zero hash, others are keccak256 of the name.
func RoleID(name string) common.Hash {
	if name == RoleAdmin {
		return common.Hash{}
	}
	return crypto.Keccak256Hash([]byte(name))
}

// ParseRole accepts "farmer", "FARMER" or "FARMER_ROLE".
func ParseRole(s string) (string, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "ADMIN" {
		name = RoleAdmin
	}
	if !strings.HasSuffix(name, "_ROLE") {
		name += "_ROLE"
	}
	if !knownRoles[name] {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return name, nil
}
