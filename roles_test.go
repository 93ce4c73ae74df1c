package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/thebuilders/go-portal-auth"
)

func TestRoles(t *testing.T) {
	t.Run("validity", func(t *testing.T) {
		assert.True(t, auth.IsValidRole(auth.RoleUser))
		assert.True(t, auth.IsValidRole(auth.RoleAdmin))
		assert.False(t, auth.IsValidRole("OWNER"))
		assert.False(t, auth.IsValidRole(""))
	})

	t.Run("hierarchy", func(t *testing.T) {
		assert.True(t, auth.RoleIsAtLeast(auth.RoleAdmin, auth.RoleUser))
		assert.True(t, auth.RoleIsAtLeast(auth.RoleUser, auth.RoleUser))
		assert.False(t, auth.RoleIsAtLeast(auth.RoleUser, auth.RoleAdmin))
		assert.False(t, auth.RoleIsAtLeast("OWNER", auth.RoleUser))
	})

	t.Run("parse", func(t *testing.T) {
		role, ok := auth.ParseRole("ADMIN")
		assert.True(t, ok)
		assert.Equal(t, auth.RoleAdmin, role)

		_, ok = auth.ParseRole("superuser")
		assert.False(t, ok)
	})
}
