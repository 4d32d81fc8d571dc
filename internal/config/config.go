// Package config loads the environment configuration the core recognizes
// (spec §6). Follows the teacher's envOrDefault idiom, extended with
// .env loading the way AlejandroRuiz99-polybot's config package does.
package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every environment-recognized knob from spec §6.
type Config struct {
	EconomyInitReserve int64
	EconomyInitArena   int64
	EconomyFeeBps      int

	ClaimTownBps      int
	ClaimOpsBps       int
	ClaimPvpBps       int
	ClaimInsuranceBps int

	BuildTownBps      int
	BuildOpsBps       int
	BuildPvpBps       int
	BuildInsuranceBps int

	FeeInsuranceBps int // fraction of per-swap fee routed to insurance; remainder to ops

	PokerMaxHands int

	DisableWheel    bool
	EnableTestUtils bool
	TestUtilsKey    string

	MonadRPCURL       string
	ArenaTokenAddress string

	AnthropicAPIKey string
	DBPath          string

	ModelRegistryYAMLPath string
	VoiceCatalogYAMLPath  string
}

// Load reads .env (if present) then environment variables, applying the
// spec's defaults for anything unset.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := &Config{
		EconomyInitReserve: envInt64("ECONOMY_INIT_RESERVE", 1_000_000),
		EconomyInitArena:   envInt64("ECONOMY_INIT_ARENA", 1_000_000),
		EconomyFeeBps:      clampBps(envInt("ECONOMY_FEE_BPS", 100)),

		ClaimTownBps:      envInt("ECONOMY_CLAIM_TOWN_BPS", 5000),
		ClaimOpsBps:       envInt("ECONOMY_CLAIM_OPS_BPS", 2500),
		ClaimPvpBps:       envInt("ECONOMY_CLAIM_PVP_BPS", 1500),
		ClaimInsuranceBps: envInt("ECONOMY_CLAIM_INSURANCE_BPS", 1000),

		BuildTownBps:      envInt("ECONOMY_BUILD_TOWN_BPS", 5000),
		BuildOpsBps:       envInt("ECONOMY_BUILD_OPS_BPS", 2500),
		BuildPvpBps:       envInt("ECONOMY_BUILD_PVP_BPS", 1500),
		BuildInsuranceBps: envInt("ECONOMY_BUILD_INSURANCE_BPS", 1000),

		FeeInsuranceBps: envInt("ECONOMY_FEE_INSURANCE_BPS", 5000),

		PokerMaxHands: envInt("POKER_MAX_HANDS", 5),

		DisableWheel:    envBool("DISABLE_WHEEL", false),
		EnableTestUtils: envBool("ENABLE_TEST_UTILS", false),
		TestUtilsKey:    os.Getenv("TEST_UTILS_KEY"),

		MonadRPCURL:       os.Getenv("MONAD_RPC_URL"),
		ArenaTokenAddress: os.Getenv("ARENA_TOKEN_ADDRESS"),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		DBPath:          envOrDefault("TOWN_DB_PATH", "data/town.db"),

		ModelRegistryYAMLPath: os.Getenv("MODEL_REGISTRY_YAML_PATH"),
		VoiceCatalogYAMLPath:  os.Getenv("VOICE_CATALOG_YAML_PATH"),
	}

	cfg.ClaimTownBps, cfg.ClaimOpsBps, cfg.ClaimPvpBps, cfg.ClaimInsuranceBps =
		renormalize4(cfg.ClaimTownBps, cfg.ClaimOpsBps, cfg.ClaimPvpBps, cfg.ClaimInsuranceBps)
	cfg.BuildTownBps, cfg.BuildOpsBps, cfg.BuildPvpBps, cfg.BuildInsuranceBps =
		renormalize4(cfg.BuildTownBps, cfg.BuildOpsBps, cfg.BuildPvpBps, cfg.BuildInsuranceBps)

	return cfg
}

// FundingVerifierAvailable reports whether the on-chain funding verifier
// has enough configuration to operate (spec §6).
func (c *Config) FundingVerifierAvailable() bool {
	return c.MonadRPCURL != "" && c.ArenaTokenAddress != ""
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func clampBps(v int) int {
	if v < 0 {
		return 0
	}
	if v > 1000 {
		return 1000
	}
	return v
}

// renormalize4 scales four non-negative bps values so they sum to 10000,
// per spec §6 ("renormalized to 10000").
func renormalize4(a, b, c, d int) (int, int, int, int) {
	total := a + b + c + d
	if total <= 0 {
		return 5000, 2500, 1500, 1000
	}
	scale := func(v int) int { return v * 10000 / total }
	ra, rb, rc := scale(a), scale(b), scale(c)
	rd := 10000 - ra - rb - rc // absorb rounding remainder in the last bucket
	return ra, rb, rc, rd
}
