package config

import (
	"fmt"
	"log/slog" // Use the new structured logger
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
)

type Config struct {
	Port string
	Env  string

	// Ledger
	RPCURL           string
	ChainID          uint64
	NetworkName      string
	ContractAddress  string
	WalletPrivateKey string
	ExplorerURL      string
	PublicBaseURL    string

	// Storage
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	// Notifications
	KafkaBroker      string
	KafkaTopic       string
	WebhookURL       string
	WebhookSecret    string
	DiscordBotToken  string
	DiscordChannelID string

	APIKeyHash   string
	TokensFile   string
	SyncInterval time.Duration

	Tokens []domain.Token
}

// DefaultTokens are the Base Sepolia assets offered when no token file exists.
var DefaultTokens = []domain.Token{
	{Symbol: "USDC", Address: "0x036CbD53842c5426634e7929541eC2318f3dCF7e"},
	{Symbol: "WETH", Address: "0x4200000000000000000000000000000000000006"},
}

// LoadConfig reads .env file and returns a Config struct
func LoadConfig() (*Config, error) {
	// Try loading .env file (it might not exist in Production, which is fine)
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on System Env Variables")
	}

	cfg := &Config{
		Port:             getEnv("PORT", "3000"),
		Env:              getEnv("ENV", "development"),
		RPCURL:           getEnv("RPC_URL", "https://sepolia.base.org"),
		NetworkName:      getEnv("NETWORK_NAME", "Base Sepolia"),
		ContractAddress:  getEnv("CONTRACT_ADDRESS", ""),
		WalletPrivateKey: getEnv("WALLET_PRIVATE_KEY", ""),
		ExplorerURL:      getEnv("EXPLORER_URL", "https://sepolia.basescan.org"),
		PublicBaseURL:    getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		SQLitePath:       getEnv("SQLITE_PATH", "proofly.db"),
		RedisURL:         getEnv("REDIS_URL", ""),
		KafkaBroker:      getEnv("KAFKA_BROKER", ""),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "receipt.created"),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		WebhookSecret:    getEnv("WEBHOOK_SECRET", ""),
		DiscordBotToken:  getEnv("DISCORD_BOT_TOKEN", ""),
		DiscordChannelID: getEnv("DISCORD_CHANNEL_ID", ""),
		APIKeyHash:       getEnv("API_KEY_HASH", ""),
		TokensFile:       getEnv("TOKENS_FILE", "tokens.yaml"),
	}

	chainID, err := strconv.ParseUint(getEnv("CHAIN_ID", "84532"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CHAIN_ID: %w", err)
	}
	cfg.ChainID = chainID

	seconds, err := strconv.Atoi(getEnv("SYNC_INTERVAL_SECONDS", "5"))
	if err != nil || seconds <= 0 {
		return nil, fmt.Errorf("invalid SYNC_INTERVAL_SECONDS: %q", os.Getenv("SYNC_INTERVAL_SECONDS"))
	}
	cfg.SyncInterval = time.Duration(seconds) * time.Second

	if _, ok := domain.ValidateAddress(cfg.ContractAddress); !ok {
		return nil, fmt.Errorf("CONTRACT_ADDRESS is missing or invalid")
	}

	cfg.Tokens, err = LoadTokens(cfg.TokensFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Network() domain.Network {
	return domain.Network{ChainID: c.ChainID, Name: c.NetworkName}
}

type tokenFile struct {
	Tokens []domain.Token `yaml:"tokens"`
}

// LoadTokens reads the selectable token list. A missing file yields the
// defaults; a malformed one is an error.
func LoadTokens(path string) ([]domain.Token, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultTokens, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token list: %w", err)
	}

	var file tokenFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse token list: %w", err)
	}
	for _, t := range file.Tokens {
		if t.Symbol == "" {
			return nil, fmt.Errorf("token %s has no symbol", t.Address)
		}
		if _, ok := domain.ValidateAddress(t.Address); !ok {
			return nil, fmt.Errorf("token %s has an invalid address %q", t.Symbol, t.Address)
		}
	}
	return file.Tokens, nil
}

// Helper to get env with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
