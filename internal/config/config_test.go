package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampBps_Bounds(t *testing.T) {
	assert.Equal(t, 0, clampBps(-50))
	assert.Equal(t, 1000, clampBps(5000))
	assert.Equal(t, 100, clampBps(100))
}

func TestRenormalize4_AlreadyNormalized(t *testing.T) {
	a, b, c, d := renormalize4(5000, 2500, 1500, 1000)
	assert.Equal(t, 5000, a)
	assert.Equal(t, 2500, b)
	assert.Equal(t, 1500, c)
	assert.Equal(t, 1000, d)
	assert.Equal(t, 10000, a+b+c+d)
}

func TestRenormalize4_ScalesToSum(t *testing.T) {
	a, b, c, d := renormalize4(50, 25, 15, 10)
	assert.Equal(t, 10000, a+b+c+d)
	assert.Equal(t, 5000, a)
}

func TestRenormalize4_ZeroTotalFallsBackToDefault(t *testing.T) {
	a, b, c, d := renormalize4(0, 0, 0, 0)
	assert.Equal(t, []int{5000, 2500, 1500, 1000}, []int{a, b, c, d})
}

func TestEnvHelpers_FallBackToDefaultWhenUnset(t *testing.T) {
	t.Setenv("TEST_ENV_INT", "")
	assert.Equal(t, 7, envInt("TEST_ENV_INT_UNSET", 7))
	assert.Equal(t, int64(9), envInt64("TEST_ENV_INT64_UNSET", 9))
	assert.Equal(t, "fallback", envOrDefault("TEST_ENV_STR_UNSET", "fallback"))
	assert.Equal(t, true, envBool("TEST_ENV_BOOL_UNSET", true))
}

func TestEnvHelpers_ParseSetValues(t *testing.T) {
	t.Setenv("TEST_ENV_INT", "42")
	t.Setenv("TEST_ENV_INT64", "9999999999")
	t.Setenv("TEST_ENV_STR", "configured")
	t.Setenv("TEST_ENV_BOOL", "true")

	assert.Equal(t, 42, envInt("TEST_ENV_INT", 0))
	assert.Equal(t, int64(9999999999), envInt64("TEST_ENV_INT64", 0))
	assert.Equal(t, "configured", envOrDefault("TEST_ENV_STR", "default"))
	assert.Equal(t, true, envBool("TEST_ENV_BOOL", false))
}

func TestLoad_DefaultsAndRenormalization(t *testing.T) {
	cfg := Load()
	assert.Equal(t, int64(1_000_000), cfg.EconomyInitReserve)
	assert.Equal(t, 100, cfg.EconomyFeeBps)
	assert.Equal(t, 10000, cfg.ClaimTownBps+cfg.ClaimOpsBps+cfg.ClaimPvpBps+cfg.ClaimInsuranceBps)
	assert.Equal(t, 10000, cfg.BuildTownBps+cfg.BuildOpsBps+cfg.BuildPvpBps+cfg.BuildInsuranceBps)
}

func TestFundingVerifierAvailable(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.FundingVerifierAvailable())
	cfg.MonadRPCURL = "https://rpc.example"
	cfg.ArenaTokenAddress = "0xabc"
	assert.True(t, cfg.FundingVerifierAvailable())
}
