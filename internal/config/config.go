// Package config loads the book's YAML configuration document: scale,
// snapshot cadence, top-k depth, and the trading-phase schedule.
package config

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	validator "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/abdoElHodaky/lobengine/internal/lob"
)

// schemaConstraint is the range of config schema versions this binary
// understands. Bumped only when a breaking field change ships.
const schemaConstraint = ">=1.0.0, <2.0.0"

// Config is the on-disk shape of a book's configuration document.
type Config struct {
	SchemaVersion string       `yaml:"schema_version" validate:"required"`
	DecimalPlaces int          `yaml:"decimal_places" validate:"gte=0,lte=8"`
	SnapshotGap   int64        `yaml:"snapshot_gap" validate:"gte=0"`
	TopK          int          `yaml:"topk" validate:"gte=0"`
	Seed          int64        `yaml:"seed"`
	Schedule      ScheduleSpec `yaml:"schedule"`
}

// ScheduleSpec names either a built-in preset or an inline list of
// periods. Preset, if set, takes precedence over Periods.
type ScheduleSpec struct {
	Preset  string       `yaml:"preset"`
	Periods []PeriodSpec `yaml:"periods" validate:"dive"`
}

// PeriodSpec is one inline (status, start, end) entry, start/end given
// in nanoseconds since the Unix epoch. A period that ends within the
// first day is taken by Book.Run as a time of day and shifted onto the
// day of the first replayed quote.
type PeriodSpec struct {
	Status string `yaml:"status" validate:"required,oneof=call_auction continuous_trading snapshot closed"`
	Start  int64  `yaml:"start"`
	End    int64  `yaml:"end" validate:"gtefield=Start"`
}

var validate = validator.New()

// Load reads and validates a Config document from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.checkSchema(); err != nil {
		return nil, err
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) checkSchema() error {
	v, err := semver.NewVersion(c.SchemaVersion)
	if err != nil {
		return fmt.Errorf("config: schema_version %q is not a valid semver: %w", c.SchemaVersion, err)
	}
	constraint, err := semver.NewConstraint(schemaConstraint)
	if err != nil {
		return fmt.Errorf("config: internal schema constraint %q is malformed: %w", schemaConstraint, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("config: schema_version %s does not satisfy %s", c.SchemaVersion, schemaConstraint)
	}
	return nil
}

// BookConfig converts the on-disk document into a lob.Config, leaving
// Logger/Metrics for the caller to attach.
func (c *Config) BookConfig() lob.Config {
	return lob.Config{
		DecimalPlaces: c.DecimalPlaces,
		SnapshotGap:   c.SnapshotGap,
		TopK:          c.TopK,
		Seed:          c.Seed,
	}
}

// Resolve builds the lob.Schedule this document describes, expanding a
// named preset if one is set.
func (c *Config) Resolve() (lob.Schedule, error) {
	if c.Schedule.Preset != "" {
		sched, ok := presets[c.Schedule.Preset]
		if !ok {
			return lob.Schedule{}, fmt.Errorf("config: unknown schedule preset %q", c.Schedule.Preset)
		}
		return sched, nil
	}
	periods := make([]lob.Period, 0, len(c.Schedule.Periods))
	for _, p := range c.Schedule.Periods {
		status, err := parseStatus(p.Status)
		if err != nil {
			return lob.Schedule{}, err
		}
		periods = append(periods, lob.Period{
			Status: status,
			Start:  lob.Timestamp(p.Start),
			End:    lob.Timestamp(p.End),
		})
	}
	return lob.Schedule{Periods: periods}, nil
}

func parseStatus(s string) (lob.TradingStatus, error) {
	switch s {
	case "call_auction":
		return lob.CallAuction, nil
	case "continuous_trading":
		return lob.ContinuousTrading, nil
	case "snapshot":
		return lob.Snapshot, nil
	case "closed":
		return lob.Closed, nil
	default:
		return 0, fmt.Errorf("config: unknown period status %q", s)
	}
}

// presets are the named schedules config.yaml's schedule.preset field
// can reference instead of an inline periods list.
var presets = map[string]lob.Schedule{
	// AShare mirrors the Shanghai/Shenzhen cash-equity session: a
	// morning call auction, a continuous session either side of the
	// midday break, and a closing call auction. Times are nanoseconds
	// since midnight; Book.Run shifts them onto the UTC day of the first
	// replayed quote.
	"AShare": {
		Periods: []lob.Period{
			{Status: lob.CallAuction, Start: ns(9, 15, 0), End: ns(9, 25, 0)},
			{Status: lob.ContinuousTrading, Start: ns(9, 30, 0), End: ns(11, 30, 0)},
			{Status: lob.ContinuousTrading, Start: ns(13, 0, 0), End: ns(14, 57, 0)},
			{Status: lob.CallAuction, Start: ns(14, 57, 0), End: ns(15, 0, 0)},
			{Status: lob.Closed, Start: ns(15, 0, 0), End: ns(24, 0, 0)},
		},
	},
}

func ns(hour, minute, second int) int64 {
	return int64(((hour*60+minute)*60 + second)) * 1e9
}
