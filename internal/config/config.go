package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultTeamIDs are the 1kD project teams whose members make up the roster
var DefaultTeamIDs = []string{
	"3436722", // 1kD_Connectome
	"3436721", // 1kD_InfantNaturalStatistics
	"3436720", // 1kD_BRAINRISE
	"3436718", // 1kD_KHULA
	"3436509", // 1kD_MicrobiomeBrainDevelopment
	"3436717", // 1kD_M4EFaD_LABS
	"3436716", // 1kD_Assembloids
	"3436713", // 1kD_DyadicSociometrics_NTU
	"3466183", // 1kD_DyadicSociometrics_Cambridge
	"3436714", // 1kD_First1000Daysdatabase
	"3458847", // 1kD_M4EFaD_BMT
	"3464137", // 1kD_Stanford_Yeung
	"3460645", // 1kD_M4EFaD_Auckland
}

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string

	// Platform access
	PlatformBaseURL string
	AuthToken       string
	TeamCacheTTL    time.Duration

	// Roster sources
	TeamIDs          []string
	AdminTeamID      string
	ACTTeamID        string
	FetchConcurrency int

	// Storage targets
	Tables          map[string]string // logical name → table id
	MemberTableName string
	ReportFolderID  string
	ReportPrefix    string
	UpdateTable     bool
}

// Load reads configuration from environment variables.
// Returns an error if required variables are missing or malformed.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	token, err := resolveAuthToken()
	if err != nil {
		return nil, err
	}

	tables, err := getMapping("TABLES", map[string]string{"1kD Team Members": "syn35048407"})
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: dbURL,

		PlatformBaseURL: getEnv("PLATFORM_BASE_URL", "https://repo-prod.prod.sagebase.org/repo/v1"),
		AuthToken:       token,
		TeamCacheTTL:    getDuration("TEAM_CACHE_TTL", 5*time.Minute),

		TeamIDs:          getList("TEAM_IDS", DefaultTeamIDs),
		AdminTeamID:      getEnv("ADMIN_TEAM_ID", "3433360"),
		ACTTeamID:        getEnv("ACT_TEAM_ID", "464532"),
		FetchConcurrency: getInt("FETCH_CONCURRENCY", 4),

		Tables:          tables,
		MemberTableName: getEnv("MEMBER_TABLE_NAME", "1kD Team Members"),
		ReportFolderID:  getEnv("REPORT_FOLDER_ID", "syn35023796"),
		ReportPrefix:    getEnv("REPORT_PREFIX", "1kD_membership_report"),
		UpdateTable:     getBool("UPDATE_TABLE", false),
	}

	if _, err := cfg.TableID(cfg.MemberTableName); err != nil {
		return nil, err
	}

	return cfg, nil
}

// TableID resolves a logical table name to its table id
func (c *Config) TableID(name string) (string, error) {
	id, ok := c.Tables[name]
	if !ok {
		return "", fmt.Errorf("no table id configured for %q", name)
	}
	return id, nil
}

// resolveAuthToken reads the platform token. A scheduled job receives its
// secrets as a JSON bundle in SCHEDULED_JOB_SECRETS, which takes precedence
// over SYNAPSE_AUTH_TOKEN. An empty token is not an error here; the session
// rejects it at login.
func resolveAuthToken() (string, error) {
	if raw := os.Getenv("SCHEDULED_JOB_SECRETS"); raw != "" {
		// Only the token is read; other entries may hold any JSON value
		var secrets struct {
			Token string `json:"SYNAPSE_AUTH_TOKEN"`
		}
		if err := json.Unmarshal([]byte(raw), &secrets); err != nil {
			return "", fmt.Errorf("SCHEDULED_JOB_SECRETS is not valid JSON: %w", err)
		}
		return secrets.Token, nil
	}
	return os.Getenv("SYNAPSE_AUTH_TOKEN"), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getList reads a comma-separated list, skipping blanks
func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getMapping reads "name=id;name=id" pairs
func getMapping(key string, defaultValue map[string]string) (map[string]string, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(value, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, id, ok := strings.Cut(pair, "=")
		name, id = strings.TrimSpace(name), strings.TrimSpace(id)
		if !ok || name == "" || id == "" {
			return nil, fmt.Errorf("%s: malformed entry %q (expected name=id)", key, pair)
		}
		out[name] = id
	}
	return out, nil
}
