// config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything main needs to wire the platform together.
// It is built once at boot and handed to constructors; no package reads
// the environment after this point.
type Config struct {
	Port           string
	DatabaseURL    string
	AllowedOrigins string

	JWTSecret    string
	ChallengeTTL time.Duration
	// Wallets listed here become admins on their first login.
	AdminAddresses []string

	// Starknet side (reward token + platform contract, driven through starkli).
	StarknetRPCURL     string
	StarkliBin         string
	StarknetAccount    string
	StarknetKeystore   string
	StarknetKeystorePw string
	TokenAddress       string
	PlatformAddress    string
	StarkliTimeout     time.Duration

	// Lisk Sepolia side (reputation bookkeeping).
	LiskRPCURL        string
	LiskChainID       int64
	ReputationAddress string
	HotWalletKey      string

	// Object storage for submission payloads (Cloudflare R2 via the S3 API).
	// When the R2 credentials are absent the platform falls back to local disk.
	R2AccountID    string
	R2AccessKeyID  string
	R2AccessSecret string
	R2Bucket       string
	CDNBaseURL     string
}

// Load reads .env (if present) and the process environment into a Config.
// Boot fails loudly on anything the reward flow cannot run without.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg := &Config{
		Port:           getEnv("PORT", "4000"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		ChallengeTTL:   getDuration("CHALLENGE_TTL", 5*time.Minute),
		AdminAddresses: splitList(os.Getenv("ADMIN_ADDRESSES")),

		StarknetRPCURL:     getEnv("STARKNET_RPC_URL", "https://starknet-sepolia.public.blastapi.io/rpc/v0_7"),
		StarkliBin:         getEnv("STARKLI_BIN", "starkli"),
		StarknetAccount:    os.Getenv("STARKNET_ACCOUNT_FILE"),
		StarknetKeystore:   os.Getenv("STARKNET_KEYSTORE_FILE"),
		StarknetKeystorePw: os.Getenv("STARKNET_KEYSTORE_PASSWORD"),
		TokenAddress:       os.Getenv("MAD_TOKEN_ADDRESS"),
		PlatformAddress:    os.Getenv("KODATA_CONTRACT_ADDRESS"),
		StarkliTimeout:     getDuration("STARKLI_TIMEOUT", 60*time.Second),

		LiskRPCURL:        getEnv("LISK_RPC_URL", "https://rpc.sepolia-api.lisk.com"),
		LiskChainID:       getInt64("LISK_CHAIN_ID", 4202),
		ReputationAddress: os.Getenv("REPUTATION_CONTRACT_ADDRESS"),
		HotWalletKey:      os.Getenv("HOT_WALLET_PRIVATE_KEY"),

		R2AccountID:    os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		R2AccessKeyID:  os.Getenv("R2_ACCESS_KEY_ID"),
		R2AccessSecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
		R2Bucket:       os.Getenv("R2_BUCKET_NAME"),
		CDNBaseURL:     os.Getenv("CDN_BASE_URL"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable not set")
	}
	if cfg.TokenAddress == "" {
		log.Fatal("MAD_TOKEN_ADDRESS environment variable not set")
	}
	if cfg.PlatformAddress == "" {
		log.Fatal("KODATA_CONTRACT_ADDRESS environment variable not set")
	}

	return cfg
}

// R2Configured reports whether submission payloads go to R2 or local disk.
func (c *Config) R2Configured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2AccessSecret != "" && c.R2Bucket != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("⚠️  Invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("⚠️  Invalid %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
