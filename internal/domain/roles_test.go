package domain

import "testing"

func TestRoleFor(t *testing.T) {
	tests := []struct {
		name   string
		user   int64
		admins []int64
		banned bool
		want   UserRole
	}{
		{name: "owner", user: 1, want: UserRoleOwner},
		{name: "owner ignores ban", user: 1, banned: true, want: UserRoleOwner},
		{name: "admin", user: 2, admins: []int64{2, 3}, want: UserRoleAdmin},
		{name: "banned admin", user: 2, admins: []int64{2}, banned: true, want: UserRoleBanned},
		{name: "plain user", user: 5, admins: []int64{2}, want: UserRoleUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoleFor(tt.user, 1, tt.admins, tt.banned); got != tt.want {
				t.Fatalf("RoleFor(%d) = %v, want %v", tt.user, got, tt.want)
			}
		})
	}
}

func TestAccessForRole(t *testing.T) {
	if AccessForRole(UserRoleUser).RunBatch {
		t.Fatal("обычный пользователь не должен запускать пакетную обработку")
	}
	if !AccessForRole(UserRoleAdmin).RunBatch {
		t.Fatal("администратор должен запускать пакетную обработку")
	}
	if AccessForRole(UserRoleAdmin).ManageUsers {
		t.Fatal("администратор не управляет пользователями")
	}
	if AccessForRole(UserRoleBanned).EditPolicy {
		t.Fatal("заблокированный пользователь не должен менять правила")
	}
	if got := AccessForRole("unknown").Role; got != UserRoleUser {
		t.Fatalf("неизвестная роль должна сводиться к user, получили %v", got)
	}
}
