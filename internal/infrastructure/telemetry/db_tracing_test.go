package telemetry

import (
	"testing"

	"github.com/cardshellz/echelon/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
)

func TestDBTracingConfigFrom(t *testing.T) {
	cfg := DBTracingConfigFrom(config.TelemetryConfig{Enabled: true, DBTraceEnabled: true, DBLogFullSQL: true}, "echelon")
	assert.Equal(t, DBTracingConfig{Enabled: true, DBName: "echelon", IncludeQueryVars: true}, cfg)

	cfg = DBTracingConfigFrom(config.TelemetryConfig{Enabled: false, DBTraceEnabled: true}, "echelon")
	assert.False(t, cfg.Enabled)
}

func TestNewDBTracingPlugin(t *testing.T) {
	assert.Nil(t, NewDBTracingPlugin(DBTracingConfig{}))

	p := NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBName: "echelon"})
	if assert.NotNil(t, p) {
		assert.NotEmpty(t, p.Name())
	}
}
