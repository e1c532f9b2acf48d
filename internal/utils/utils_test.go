package utils

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHomeHonoursEnvironment(testing *testing.T) {
	// GIVEN
	custom := filepath.Join(testing.TempDir(), "undaunted")
	testing.Setenv("UNDAUNTED_HOME", custom)

	// WHEN
	home, err := Home()

	// THEN
	require.NoError(testing, err)
	assert.Equal(testing, custom, home)
	info, err := os.Stat(custom)
	require.NoError(testing, err)
	assert.True(testing, info.IsDir())
	assert.Equal(testing, os.FileMode(0o700), info.Mode().Perm())
}

func TestResolveLiteralAddress(testing *testing.T) {
	// GIVEN
	hostPort := "[::ffff:127.0.0.1]:1337"

	// WHEN
	addr, err := ResolveAddrPort(hostPort)

	// THEN
	require.NoError(testing, err)
	assert.Equal(testing, netip.MustParseAddrPort("127.0.0.1:1337"), addr)
}

func TestResolveHostName(testing *testing.T) {
	// GIVEN
	hostPort := "localhost:1337"

	// WHEN
	addr, err := ResolveAddrPort(hostPort)

	// THEN
	require.NoError(testing, err)
	assert.True(testing, addr.Addr().IsLoopback())
	assert.Equal(testing, uint16(1337), addr.Port())
}

func TestResolveWithoutPort(testing *testing.T) {
	// GIVEN
	hostPort := "127.0.0.1"

	// WHEN
	_, err := ResolveAddrPort(hostPort)

	// THEN
	assert.Error(testing, err)
}
