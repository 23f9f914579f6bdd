package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
)

type Config struct {
	AppPort string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs int

	// Ledger collaborator
	LedgerEndpoint string
	LedgerNetwork  string
	ExplorerBase   string

	// Custodial account: address plus an opaque signing-credential handle.
	// The handle is resolved by the external secret store; raw key material
	// never enters this process.
	PlatformAddress    string
	PlatformCredential string
	SimulateRepayments bool

	// Settlement retry budgets
	SubmitAttempts    int
	ConfirmAttempts   int
	SweepIntervalSecs int

	// Risk heuristic thresholds
	RiskPrincipalThreshold float64
	RiskRateCeilingPct     float64

	// Advisory-text collaborator
	AdvisoryEndpoint string
	AdvisoryAPIKey   string

	LogLevel string
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvFloat(k string, d float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return d
}

func getenvBool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

func Load() *Config {
	return &Config{
		AppPort:   getenv("APP_PORT", "8080"),
		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "microfi"),
		MySQLUser: getenv("MYSQL_USER", "microfi"),
		MySQLPass: getenv("MYSQL_PASS", "microfi"),

		RedisAddr:    getenv("REDIS_ADDR", "redis:6379"),
		RedisDB:      getenvInt("REDIS_DB", 0),
		IdempTTLSecs: getenvInt("IDEMPOTENCY_TTL_SECONDS", 300),

		LedgerEndpoint: getenv("LEDGER_RPC_ENDPOINT", "http://localhost:8899"),
		LedgerNetwork:  getenv("LEDGER_NETWORK", "devnet"),
		ExplorerBase:   getenv("LEDGER_EXPLORER_BASE", "https://explorer.example.org"),

		PlatformAddress:    os.Getenv("PLATFORM_ADDRESS"),
		PlatformCredential: os.Getenv("PLATFORM_CREDENTIAL"),
		SimulateRepayments: getenvBool("SIMULATE_REPAYMENTS", true),

		SubmitAttempts:    getenvInt("SETTLEMENT_SUBMIT_ATTEMPTS", 3),
		ConfirmAttempts:   getenvInt("SETTLEMENT_CONFIRM_ATTEMPTS", 10),
		SweepIntervalSecs: getenvInt("SETTLEMENT_SWEEP_INTERVAL_SECONDS", 30),

		RiskPrincipalThreshold: getenvFloat("RISK_PRINCIPAL_THRESHOLD", 100),
		RiskRateCeilingPct:     getenvFloat("RISK_RATE_CEILING_PCT", 15),

		AdvisoryEndpoint: os.Getenv("ADVISORY_ENDPOINT"),
		AdvisoryAPIKey:   os.Getenv("ADVISORY_API_KEY"),

		LogLevel: getenv("LOG_LEVEL", "info"),
	}
}

func (c *Config) Validate() error {
	if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
		return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
	}
	if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
		return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.LedgerEndpoint == "" {
		return errors.New("missing LEDGER_RPC_ENDPOINT")
	}
	if c.PlatformAddress == "" {
		return errors.New("missing PLATFORM_ADDRESS")
	}
	if c.SubmitAttempts <= 0 || c.ConfirmAttempts <= 0 {
		return errors.New("settlement attempt budgets must be positive")
	}
	return nil
}

// Production reports whether the configured ledger network refuses faucet
// funding.
func (c *Config) Production() bool { return c.LedgerNetwork == "mainnet" }

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// multiStatements=true is handy for migrations; parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
