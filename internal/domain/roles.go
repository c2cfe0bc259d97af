package domain

import "slices"

// UserRole описывает уровень доступа к командам бота.
type UserRole string

const (
	UserRoleUser   UserRole = "user"
	UserRoleAdmin  UserRole = "admin"
	UserRoleOwner  UserRole = "owner"
	UserRoleBanned UserRole = "banned"
)

// Access описывает, какие группы команд доступны роли.
type Access struct {
	Role         UserRole
	EditPolicy   bool
	RunBatch     bool
	ManageUsers  bool
	ManageAdmins bool
}

var accessByRole = map[UserRole]Access{
	UserRoleBanned: {Role: UserRoleBanned},
	UserRoleUser: {
		Role:       UserRoleUser,
		EditPolicy: true,
	},
	UserRoleAdmin: {
		Role:       UserRoleAdmin,
		EditPolicy: true,
		RunBatch:   true,
	},
	UserRoleOwner: {
		Role:         UserRoleOwner,
		EditPolicy:   true,
		RunBatch:     true,
		ManageUsers:  true,
		ManageAdmins: true,
	},
}

// AccessForRole возвращает права роли.
func AccessForRole(role UserRole) Access {
	if access, ok := accessByRole[role]; ok {
		return access
	}
	return accessByRole[UserRoleUser]
}

// RoleFor вычисляет роль пользователя. Владелец не может быть заблокирован.
func RoleFor(userID, ownerID int64, admins []int64, banned bool) UserRole {
	switch {
	case ownerID != 0 && userID == ownerID:
		return UserRoleOwner
	case banned:
		return UserRoleBanned
	case slices.Contains(admins, userID):
		return UserRoleAdmin
	}
	return UserRoleUser
}
