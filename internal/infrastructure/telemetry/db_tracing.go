package telemetry

import (
	"github.com/cardshellz/echelon/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// DBTracingConfig controls GORM span instrumentation
type DBTracingConfig struct {
	Enabled bool
	DBName  string
	// IncludeQueryVars keeps bound values in db.statement; development only
	IncludeQueryVars bool
}

// DBTracingConfigFrom picks the DB tracing settings out of the application config
func DBTracingConfigFrom(t config.TelemetryConfig, dbName string) DBTracingConfig {
	return DBTracingConfig{
		Enabled:          t.Enabled && t.DBTraceEnabled,
		DBName:           dbName,
		IncludeQueryVars: t.DBLogFullSQL,
	}
}

// NewDBTracingPlugin returns the otelgorm plugin, or nil when disabled.
// Pool metrics come from DBMetrics, so otelgorm's own are turned off.
func NewDBTracingPlugin(cfg DBTracingConfig) gorm.Plugin {
	if !cfg.Enabled {
		return nil
	}
	opts := []otelgorm.Option{
		otelgorm.WithDBName(cfg.DBName),
		otelgorm.WithAttributes(attribute.String("db.system", "postgresql")),
		otelgorm.WithoutMetrics(),
	}
	if !cfg.IncludeQueryVars {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	return otelgorm.NewPlugin(opts...)
}
