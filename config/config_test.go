package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "user-service", cfg.AppName)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, 5, cfg.MongoConnectRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.MongoRetryBaseDelay)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Equal(t, 10*time.Second, cfg.ShutdownGrace)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("MONGO_CONNECT_RETRIES", "3")
	t.Setenv("MONGO_RETRY_BASE_DELAY", "2s")
	t.Setenv("MAIL_SEND_ENABLED", "false")

	cfg := Load()
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, 3, cfg.MongoConnectRetries)
	assert.Equal(t, 2*time.Second, cfg.MongoRetryBaseDelay)
	assert.False(t, cfg.MailSendEnabled)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("MONGO_CONNECT_RETRIES", "lots")
	t.Setenv("REQUEST_TIMEOUT", "soon")
	t.Setenv("MAIL_SEND_ENABLED", "maybe")

	cfg := Load()
	assert.Equal(t, 5, cfg.MongoConnectRetries)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.MailSendEnabled)
}

func TestListHelpers(t *testing.T) {
	cfg := &Config{
		CORSAllowedOrigins: " https://a.example.com , https://b.example.com,",
		ElasticsearchAddrs: "http://es1:9200,http://es2:9200",
	}
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins())
	assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, cfg.ESAddrs())

	empty := &Config{}
	assert.Empty(t, empty.CORSOrigins())
}
