package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"sla-status-tracking/pkg/constants"
)

type Config struct {
	RedisURL               string
	CheckIntervalMS        int64
	LeaderElectionTTL      int
	PodID                  string
	Port                   string
	ConsumerGroupName      string
	LogLevel               string
	StaleConversationHours int
	ReportHiddenMetrics    []string

	OpenAIAPIKey        string
	OpenAIBaseURL       string
	SummaryModel        string
	SummaryLargeModel   string
	SummarySystemPrompt string
}

func Load() *Config {
	config := &Config{
		RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379"),
		CheckIntervalMS:        getEnvInt64("CHECK_INTERVAL_MS", constants.DefaultCheckIntervalMS),
		LeaderElectionTTL:      getEnvInt("LEADER_ELECTION_TTL", constants.DefaultLeaderElectionTTLSeconds),
		PodID:                  getEnv("POD_ID", generatePodID()),
		Port:                   getEnv("PORT", "8080"),
		ConsumerGroupName:      getEnv("CONSUMER_GROUP_NAME", "sla-breach-notifiers"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		StaleConversationHours: getEnvInt("STALE_CONVERSATION_HOURS", constants.DefaultStaleConversationHours),
		ReportHiddenMetrics:    getEnvList("REPORT_HIDDEN_METRICS"),

		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
		SummaryModel:        getEnv("SUMMARY_MODEL", constants.DefaultSummaryModel),
		SummaryLargeModel:   getEnv("SUMMARY_LARGE_MODEL", constants.DefaultSummaryLargeModel),
		SummarySystemPrompt: getEnv("SUMMARY_SYSTEM_PROMPT", defaultSummaryPrompt),
	}

	return config
}

const defaultSummaryPrompt = "Summarize this customer support conversation for the agent taking it over. " +
	"Cover the customer's problem, what has been tried, and what is still outstanding."

func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMS) * time.Millisecond
}

func (c *Config) LeaderElectionTTLDuration() time.Duration {
	return time.Duration(c.LeaderElectionTTL) * time.Second
}

func (c *Config) StaleConversationAge() time.Duration {
	return time.Duration(c.StaleConversationHours) * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blank entries
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func generatePodID() string {
	hostname, err := os.Hostname()
	if err != nil {
		return uuid.New().String()
	}
	return hostname + "-" + uuid.New().String()[:8]
}
