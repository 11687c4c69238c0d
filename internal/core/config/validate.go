package config

import (
	"fmt"

	"github.com/hay-kot/criterio"
)

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	return criterio.ValidateStruct(
		criterio.Run("report.period", c.Report.Period, isReportPeriod),
		criterio.Run("report.range", c.Report.Range, isRangePreset),
		criterio.Run("sync.timeout_ms", c.Sync.TimeoutMs, atLeastMs(1_000)),
		criterio.Run("watch.refresh_ms", c.Watch.RefreshMs, atLeastMs(100)),
	)
}

func isReportPeriod(period string) error {
	switch period {
	case "day", "week":
		return nil
	default:
		return fmt.Errorf("must be day or week, got %q", period)
	}
}

func isRangePreset(preset string) error {
	if !IsValidRange(preset) {
		return fmt.Errorf("unknown range preset %q", preset)
	}
	return nil
}

func atLeastMs(min int64) func(int64) error {
	return func(v int64) error {
		if v < min {
			return fmt.Errorf("must be at least %dms, got %dms", min, v)
		}
		return nil
	}
}
