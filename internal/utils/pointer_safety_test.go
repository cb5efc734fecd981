package utils_test

import (
	"testing"

	"github.com/jrsteele09/marketplace-auth-server/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestPointerHelpers(t *testing.T) {
	var nilString *string
	require.Equal(t, "", utils.Value(nilString))

	p := utils.Ptr("retailer")
	require.NotNil(t, p)
	require.Equal(t, "retailer", utils.Value(p))
}

func TestEqual(t *testing.T) {
	require.True(t, utils.Equal[string](nil, nil))
	require.False(t, utils.Equal(utils.Ptr("a"), nil))
	require.False(t, utils.Equal(nil, utils.Ptr("a")))
	require.True(t, utils.Equal(utils.Ptr("a"), utils.Ptr("a")))
	require.False(t, utils.Equal(utils.Ptr("a"), utils.Ptr("b")))
}
