package connio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProxyV1(t *testing.T) {
	hdr, err := ParseProxyV1([]byte("PROXY TCP4 192.168.1.1 192.168.1.2 56324 443\r\nGET / HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	require.Equal(t, "192.168.1.1:56324", hdr.SrcAddr)
	require.Equal(t, "192.168.1.2:443", hdr.DstAddr)
}

func TestParseProxyV1NotPresent(t *testing.T) {
	_, err := ParseProxyV1([]byte("GET / HTTP/1.1\r\n\r\n"))
	require.ErrorIs(t, err, ErrNotProxyHeader)
}

func TestParseProxyV1ShortBufferThatCouldStillBeAHeader(t *testing.T) {
	_, err := ParseProxyV1([]byte("PRO"))
	require.ErrorIs(t, err, ErrIncompleteRequest)
}

func TestParseProxyV1ShortBufferThatCannotBeAHeader(t *testing.T) {
	_, err := ParseProxyV1([]byte("GE"))
	require.ErrorIs(t, err, ErrNotProxyHeader)
}

func TestParseProxyV1HeaderPresentButUnterminated(t *testing.T) {
	_, err := ParseProxyV1([]byte("PROXY TCP4 10.0.0.1 10.0.0.2 1 2"))
	require.ErrorIs(t, err, ErrIncompleteRequest)
}
