// Package auth models the explicit capabilities passed into every mutating
// call. Stores check the credential themselves; there is no ambient caller
// identity.
package auth

import (
	"github.com/ethereum/go-ethereum/common"
)

// Role enumerates the operational roles the middleware distinguishes.
type Role string

const (
	// RoleAdmin may change configuration, pause the system and recover any swap.
	RoleAdmin Role = "admin"
	// RoleKeeper may push routine gas price updates.
	RoleKeeper Role = "keeper"
	// RoleBridge is the configured bridge integration; the only caller
	// allowed to advance swap lifecycles.
	RoleBridge Role = "bridge"
	// RoleUser is a swap owner acting on their own swaps.
	RoleUser Role = "user"
)

// Credential is an explicit capability: who is calling and in which role.
// Actor is meaningful for RoleUser (the swap owner address); for the
// operational roles it identifies the account the token was issued to.
type Credential struct {
	Role  Role
	Actor common.Address
}

// IsAdmin reports whether the credential carries the administrator role.
func (c Credential) IsAdmin() bool { return c.Role == RoleAdmin }

// IsKeeper reports whether the credential may push price updates.
// The administrator implicitly holds the keeper capability.
func (c Credential) IsKeeper() bool { return c.Role == RoleKeeper || c.Role == RoleAdmin }

// IsBridge reports whether the credential is the configured bridge
// integration. The administrator may also drive lifecycle transitions
// manually during incident response.
func (c Credential) IsBridge() bool { return c.Role == RoleBridge || c.Role == RoleAdmin }

// ActsFor reports whether the credential may act on behalf of user:
// either it is that user, or it is the administrator.
func (c Credential) ActsFor(user common.Address) bool {
	if c.Role == RoleAdmin {
		return true
	}
	return c.Role == RoleUser && c.Actor == user
}

// Admin returns an administrator credential.
func Admin() Credential { return Credential{Role: RoleAdmin} }

// Keeper returns a keeper credential for the given account.
func Keeper(actor common.Address) Credential { return Credential{Role: RoleKeeper, Actor: actor} }

// Bridge returns a bridge-integration credential.
func Bridge(actor common.Address) Credential { return Credential{Role: RoleBridge, Actor: actor} }

// User returns a self-service credential for the given address.
func User(actor common.Address) Credential { return Credential{Role: RoleUser, Actor: actor} }
