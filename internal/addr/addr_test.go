package addr

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSameSubnet(t *testing.T) {
	ip := net.ParseIP("192.168.1.10").To4()
	net1 := net.ParseIP("192.168.1.0").To4()
	mask := net.ParseIP("255.255.255.0").To4()
	require.True(t, SameSubnet(ip, net1, mask))

	other := net.ParseIP("192.168.2.10").To4()
	require.False(t, SameSubnet(other, net1, mask))
}

func TestLongestPrefixMatch(t *testing.T) {
	routes := []Route{
		{Network: net.ParseIP("10.0.0.0").To4(), Mask: net.ParseIP("255.0.0.0").To4()},
		{Network: net.ParseIP("10.0.0.0").To4(), Mask: net.ParseIP("255.255.255.0").To4()},
	}
	dst := net.ParseIP("10.0.0.42").To4()
	idx := LongestPrefixMatch(routes, dst)
	require.Equal(t, 1, idx)

	miss := net.ParseIP("172.16.0.1").To4()
	require.Equal(t, -1, LongestPrefixMatch(routes, miss))
}

func TestCIDRPattern(t *testing.T) {
	any, err := ParseCIDRPattern("any")
	require.NoError(t, err)
	require.True(t, any.Match(net.ParseIP("1.2.3.4")))

	cidr, err := ParseCIDRPattern("192.168.1.0/24")
	require.NoError(t, err)
	require.True(t, cidr.Match(net.ParseIP("192.168.1.5")))
	require.False(t, cidr.Match(net.ParseIP("192.168.2.5")))

	literal, err := ParseCIDRPattern("10.0.0.1")
	require.NoError(t, err)
	require.True(t, literal.Match(net.ParseIP("10.0.0.1")))
	require.False(t, literal.Match(net.ParseIP("10.0.0.2")))
}

func TestPortPattern(t *testing.T) {
	any, err := ParsePortPattern("*")
	require.NoError(t, err)
	require.True(t, any.Match(8080))

	rng, err := ParsePortPattern("8000-9000")
	require.NoError(t, err)
	require.True(t, rng.Match(8080))
	require.False(t, rng.Match(7999))

	lit, err := ParsePortPattern("443")
	require.NoError(t, err)
	require.True(t, lit.Match(443))
	require.False(t, lit.Match(80))
}

func TestMACClassification(t *testing.T) {
	require.True(t, IsBroadcastMAC("ff:ff:ff:ff:ff:ff"))
	require.True(t, IsMulticastMAC(STPMulticastMAC))
	require.False(t, IsMulticastMAC("02:00:00:00:00:01"))
	require.True(t, IsPlaceholderMAC("00:00:00:00:00:00"))
}

func TestGenerateMAC(t *testing.T) {
	m1 := GenerateMAC(1)
	m2 := GenerateMAC(2)
	require.NotEqual(t, m1, m2)
	_, err := net.ParseMAC(m1)
	require.NoError(t, err)
}
