package users_test

import (
	"encoding/json"
	"testing"

	apperrors "github.com/jrsteele09/marketplace-auth-server/internal/errors"
	"github.com/jrsteele09/marketplace-auth-server/internal/utils"
	"github.com/jrsteele09/marketplace-auth-server/users"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"customer", "retailer", "wholesaler"} {
		role, err := users.ParseRole(valid)
		require.NoError(t, err)
		require.Equal(t, users.Role(valid), role)
	}

	for _, invalid := range []string{"", "admin", "Customer", " retailer", "super_admin"} {
		_, err := users.ParseRole(invalid)
		require.Error(t, err, invalid)
		require.ErrorIs(t, err, apperrors.ErrInvalidRole)
	}
}

func TestUserJSON_RoleOmittedUntilSet(t *testing.T) {
	u := users.User{
		ID:            "1234567890",
		Email:         "jane.doe@example.com",
		Name:          "Jane Doe",
		Picture:       "https://example.com/jane.png",
		EmailVerified: true,
	}

	raw, err := json.Marshal(u)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	require.NotContains(t, fields, "role")
	require.Equal(t, true, fields["email_verified"])
	require.Equal(t, "https://example.com/jane.png", fields["picture"])

	u.Role = utils.Ptr(users.RoleRetailer)
	raw, err = json.Marshal(u)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"role":"retailer"`)
}

func TestStatusOf(t *testing.T) {
	require.Equal(t, users.ProfileUnauthenticated, users.StatusOf(nil))
	require.False(t, users.StatusOf(nil).IsAuthenticated())

	pending := &users.User{ID: "1"}
	require.Equal(t, users.ProfilePending, users.StatusOf(pending))
	require.True(t, users.StatusOf(pending).IsAuthenticated())

	complete := &users.User{ID: "1", Role: utils.Ptr(users.RoleWholesaler)}
	require.Equal(t, users.ProfileComplete, users.StatusOf(complete))
	require.True(t, users.StatusOf(complete).IsAuthenticated())
}
