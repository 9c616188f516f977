package dhcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kestrelnet/netlab/internal/errors"
	"github.com/kestrelnet/netlab/internal/model"
)

func sampleConfig() *model.DHCPServerConfig {
	return &model.DHCPServerConfig{
		PoolStart:  "10.0.0.100",
		PoolEnd:    "10.0.0.102",
		Mask:       "255.255.255.0",
		Gateway:    "10.0.0.101",
		LeaseTimeS: 3600,
	}
}

func TestAllocateSkipsGatewayAndTakenAddresses(t *testing.T) {
	cfg := sampleConfig()
	leases := model.NewDHCPLeaseTable()
	now := time.Unix(1000, 0)

	ip, err := Allocate(cfg, leases, "AA:BB:CC:00:00:01", now)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.100", ip, "first free address in the pool")

	ip2, err := Allocate(cfg, leases, "AA:BB:CC:00:00:02", now)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.102", ip2, ".101 is the gateway and must be skipped")
}

func TestAllocateReusesExistingLeaseForSameMAC(t *testing.T) {
	cfg := sampleConfig()
	leases := model.NewDHCPLeaseTable()
	now := time.Unix(1000, 0)

	first, err := Allocate(cfg, leases, "AA:BB:CC:00:00:01", now)
	require.NoError(t, err)

	second, err := Allocate(cfg, leases, "AA:BB:CC:00:00:01", now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, first, second, "the same MAC should get back its existing lease")
}

func TestAllocateReturnsUnavailableWhenPoolExhausted(t *testing.T) {
	cfg := sampleConfig()
	leases := model.NewDHCPLeaseTable()
	now := time.Unix(1000, 0)

	_, err := Allocate(cfg, leases, "AA:BB:CC:00:00:01", now)
	require.NoError(t, err)
	_, err = Allocate(cfg, leases, "AA:BB:CC:00:00:02", now)
	require.NoError(t, err)

	_, err = Allocate(cfg, leases, "AA:BB:CC:00:00:03", now)
	require.Error(t, err)
	require.Equal(t, errors.KindUnavailable, errors.GetKind(err))
}

func TestAllocateRejectsInvalidPoolBounds(t *testing.T) {
	cfg := sampleConfig()
	cfg.PoolStart = "not-an-ip"
	leases := model.NewDHCPLeaseTable()

	_, err := Allocate(cfg, leases, "AA:BB:CC:00:00:01", time.Unix(0, 0))
	require.Error(t, err)
	require.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestRenewExtendsExistingLeaseOnly(t *testing.T) {
	cfg := sampleConfig()
	leases := model.NewDHCPLeaseTable()
	now := time.Unix(1000, 0)

	_, ok := Renew(cfg, leases, "AA:BB:CC:00:00:01", now)
	require.False(t, ok, "a MAC with no lease has nothing to renew")

	ip, err := Allocate(cfg, leases, "AA:BB:CC:00:00:01", now)
	require.NoError(t, err)

	renewedIP, ok := Renew(cfg, leases, "AA:BB:CC:00:00:01", now.Add(time.Hour))
	require.True(t, ok)
	require.Equal(t, ip, renewedIP)

	lease, _ := leases.LeaseFor("AA:BB:CC:00:00:01")
	require.True(t, lease.ExpiresAt.After(now.Add(time.Hour)))
}
