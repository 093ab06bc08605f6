package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every ECHELON_ variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "ECHELON_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "echelon", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "echelon", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
		assert.Equal(t, 30*time.Second, cfg.Lock.TTL)
		assert.Equal(t, 5*time.Second, cfg.Lock.RetryTimeout)
		assert.True(t, cfg.Event.ProcessorEnabled)
		assert.Equal(t, 72*time.Hour, cfg.Event.IdempotencyTTL)
		assert.Equal(t, 5*time.Minute, cfg.Event.ProcessingLease)
		assert.Equal(t, "landed-costs", cfg.Storage.KeyPrefix)
		assert.Equal(t, "vendor", cfg.Jobs.Queue)
		assert.Equal(t, "USD", cfg.Allocation.DefaultCurrency)
		assert.True(t, cfg.Allocation.ArchiveSnapshots)
		assert.Equal(t, "echelon", cfg.Telemetry.ServiceName)
	})

	t.Run("loads values from environment variables with ECHELON prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ECHELON_APP_PORT", "9000")
		t.Setenv("ECHELON_DATABASE_HOST", "db.internal")
		t.Setenv("ECHELON_DATABASE_PORT", "5433")
		t.Setenv("ECHELON_DATABASE_PASSWORD", "p@ss")
		t.Setenv("ECHELON_REDIS_ENABLED", "true")
		t.Setenv("ECHELON_LOCK_TTL", "1m")
		t.Setenv("ECHELON_JOBS_ENABLED", "true")
		t.Setenv("ECHELON_JOBS_CONCURRENCY", "12")
		t.Setenv("ECHELON_STORAGE_ENABLED", "true")
		t.Setenv("ECHELON_STORAGE_BUCKET", "echelon-archive")
		t.Setenv("ECHELON_ALLOCATION_DEFAULT_CURRENCY", "EUR")
		t.Setenv("ECHELON_EVENT_PROCESSOR_ENABLED", "false")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "p@ss", cfg.Database.Password)
		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, time.Minute, cfg.Lock.TTL)
		assert.True(t, cfg.Jobs.Enabled)
		assert.Equal(t, 12, cfg.Jobs.Concurrency)
		assert.Equal(t, "echelon-archive", cfg.Storage.Bucket)
		assert.Equal(t, "EUR", cfg.Allocation.DefaultCurrency)
		assert.False(t, cfg.Event.ProcessorEnabled)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ECHELON_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("ECHELON_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("validates MaxIdleConns cannot be negative", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ECHELON_DATABASE_MAX_IDLE_CONNS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns cannot be negative")
	})

	t.Run("lock wait must be shorter than the lease", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ECHELON_LOCK_TTL", "2s")
		t.Setenv("ECHELON_LOCK_RETRY_TIMEOUT", "5s")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lock.retry_timeout")
	})

	t.Run("storage requires a bucket", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ECHELON_STORAGE_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.bucket")
	})

	t.Run("jobs require redis", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ECHELON_JOBS_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires redis.enabled")
	})

	t.Run("rejects a malformed currency", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ECHELON_ALLOCATION_DEFAULT_CURRENCY", "DOLLARS")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "default_currency")
	})

	t.Run("rejects sampling ratio out of range", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ECHELON_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ECHELON_APP_ENV", "production")
		t.Setenv("ECHELON_DATABASE_PASSWORD", "secure-password")
		t.Setenv("ECHELON_DATABASE_SSLMODE", "require")
		t.Setenv("ECHELON_REDIS_ENABLED", "true")
		t.Setenv("ECHELON_SWAGGER_ENABLED", "false")
	}

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})

	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"requires database.password", map[string]string{"ECHELON_DATABASE_PASSWORD": ""}, "database.password is required"},
		{"requires SSL", map[string]string{"ECHELON_DATABASE_SSLMODE": "disable"}, "database.sslmode cannot be 'disable'"},
		{"requires redis for the distributed lock", map[string]string{"ECHELON_REDIS_ENABLED": "false"}, "redis.enabled must be true"},
		{"rejects wildcard CORS", map[string]string{"ECHELON_HTTP_CORS_ALLOW_ORIGINS": "*"}, "cors_allow_origins"},
		{"rejects open swagger", map[string]string{"ECHELON_SWAGGER_ENABLED": "true"}, "swagger endpoint"},
		{"rejects full SQL logging", map[string]string{"ECHELON_TELEMETRY_DB_LOG_FULL_SQL": "true"}, "db_log_full_sql"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidProductionBase(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("swagger allowed behind an IP whitelist", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("ECHELON_SWAGGER_ENABLED", "true")
		t.Setenv("ECHELON_SWAGGER_ALLOWED_IPS", "10.0.0.1")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"10.0.0.1"}, cfg.Swagger.AllowedIPs)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{Host: "localhost", Port: 5432, User: "u", Password: "p", DBName: "echelon", SSLMode: "disable"}

		assert.Equal(t, "postgres://u:p@localhost:5432/echelon?sslmode=disable", cfg.DSN())
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{Host: "localhost", Port: 5432, User: "user", Password: "pass@word#123", DBName: "db", SSLMode: "disable"}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}
