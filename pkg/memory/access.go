package memory

import (
	"time"

	"github.com/hasad-erp/hasad/pkg/identity"
	"github.com/hasad-erp/hasad/pkg/model"
)

// CanAccess decides whether id may perform action on m. grant is the
// caller's explicit grant on m, or nil. A nil id is anonymous.
//
// Admins and the owner may do anything. Other callers never see an expired
// memory. Reads follow the access level: public for everyone, internal for
// any signed in user, restricted for grant holders and private for nobody
// else. Managers may update public and internal memories, as may holders of
// a write grant. Only the owner or an admin may delete or share.
func CanAccess(id *identity.Identity, m *model.Memory, action model.MemoryAction, grant *model.MemoryGrant, now time.Time) bool {
	if id.IsAdmin() {
		return true
	}
	if id.Authenticated() && id.UserID == m.OwnerID {
		return true
	}
	if m.Expired(now) {
		return false
	}

	switch action {
	case model.ActionRead, model.ActionSearch:
		switch m.AccessLevel {
		case model.AccessPublic:
			return true
		case model.AccessInternal:
			return id.Authenticated()
		case model.AccessRestricted:
			return id.Authenticated() && grant != nil
		}
		return false
	case model.ActionUpdate:
		if !id.Authenticated() {
			return false
		}
		if grant != nil && grant.Permission == model.PermissionWrite {
			return true
		}
		return id.HasRole(model.RoleManager) &&
			(m.AccessLevel == model.AccessPublic || m.AccessLevel == model.AccessInternal)
	}
	return false
}

// canCreate reports whether id may add knowledge. Viewers are read-only.
func canCreate(id *identity.Identity) bool {
	return id.Authenticated() && id.HasRole(model.RoleUser)
}
