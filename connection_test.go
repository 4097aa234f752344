package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResetIterationFlagsPreservesResumeBookkeeping(t *testing.T) {
	conn := &Conn{}
	conn.set(FlagAlive | FlagWriteEvents | FlagShouldResumeCoro)

	conn.resetIterationFlags(ServerConfig{})

	require.True(t, conn.has(FlagShouldResumeCoro), "resume protocol state must survive a flag reset")
	require.True(t, conn.has(FlagWriteEvents), "installed interest side must survive a flag reset")
}

func TestResetIterationFlagsCarriesProxiedAndCORS(t *testing.T) {
	conn := &Conn{}
	conn.set(FlagProxied | FlagAllowCORS)

	conn.resetIterationFlags(ServerConfig{})

	require.True(t, conn.has(FlagProxied))
	require.True(t, conn.has(FlagAllowCORS))
}

func TestResetIterationFlagsDropsMustReadAndKeepAlive(t *testing.T) {
	conn := &Conn{}
	conn.set(FlagMustRead | FlagKeepAlive)

	conn.resetIterationFlags(ServerConfig{})

	require.False(t, conn.has(FlagMustRead))
	require.False(t, conn.has(FlagKeepAlive))
}

func TestResetIterationFlagsAppliesServerConfig(t *testing.T) {
	conn := &Conn{}
	conn.resetIterationFlags(ServerConfig{ProxyProtocol: true, AllowCORS: true})

	require.True(t, conn.has(FlagAllowProxyReqs))
	require.True(t, conn.has(FlagAllowCORS))
	require.True(t, conn.has(FlagAlive))
}

func TestTableAtIsIndexedByFD(t *testing.T) {
	table := NewTable(8)
	require.Equal(t, 3, table.At(3).fd)
	require.Equal(t, sentinel, table.At(3).prev)
	require.Equal(t, sentinel, table.At(3).next)
	require.Equal(t, 8, table.Len())
}
