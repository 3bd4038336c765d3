// Package config loads the run configuration from YAML, fills defaults from
// struct tags, applies ROLLCAST_* environment overrides and validates the
// result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/FlavioCFOliveira/rollcast/internal/activations"
	"github.com/FlavioCFOliveira/rollcast/internal/grid"
	"github.com/FlavioCFOliveira/rollcast/internal/logger"
	"github.com/FlavioCFOliveira/rollcast/internal/loss"
	"github.com/FlavioCFOliveira/rollcast/internal/predictor"
	"github.com/FlavioCFOliveira/rollcast/internal/sequence"
)

type Config struct {
	Data     Data     `yaml:"data"`
	Forecast Forecast `yaml:"forecast"`
	Grid     Grid     `yaml:"grid"`
	Training Training `yaml:"training"`
	Run      Run      `yaml:"run"`
	Logging  Logging  `yaml:"logging"`
	Store    Store    `yaml:"store"`
	Metrics  Metrics  `yaml:"metrics"`
	Schedule Schedule `yaml:"schedule"`
}

type Data struct {
	RootPath string `yaml:"root_path" default:"./data"`
	// DataPath is relative to RootPath unless absolute.
	DataPath     string `yaml:"data_path" default:"usd_jpy.csv" validate:"required"`
	TargetCol    string `yaml:"target_col" default:"rate" validate:"required"`
	TargetSuffix string `yaml:"target_suffix" default:"usd_jpy"`
	// DateCol defaults to "date" or "Date", whichever the file has.
	DateCol string `yaml:"date_col"`
}

type Forecast struct {
	TestSize    int    `yaml:"test_size" default:"150" validate:"gte=2"`
	PredLen     int    `yaml:"pred_len" default:"1" validate:"eq=1"`
	FeatureMode string `yaml:"feature_mode" default:"log_return" validate:"oneof=log_return tabular"`
}

type Grid struct {
	Lookbacks     []int     `yaml:"lookbacks" default:"[20,40,60]" validate:"min=1,dive,gte=1"`
	HiddenSizes   [][]int   `yaml:"hidden_sizes" default:"[[8],[16],[8,4],[16,8]]" validate:"min=1,dive,min=1,dive,gte=1"`
	LossTypes     []string  `yaml:"loss_types" default:"[\"SEL\"]" validate:"min=1,dive,loss"`
	Activations   []string  `yaml:"activations" default:"[\"tanh\"]" validate:"min=1,dive,activation"`
	LearningRates []float64 `yaml:"learning_rates" default:"[0.001,0.005,0.01]" validate:"min=1,dive,gt=0"`
	Momentums     []float64 `yaml:"momentums" default:"[0.9]" validate:"min=1,dive,gte=0,lt=1"`
	Epochs        []int     `yaml:"epochs" default:"[100,200]" validate:"min=1,dive,gte=1"`
	BatchSizes    []int     `yaml:"batch_sizes" default:"[32]" validate:"min=1,dive,gte=1"`
	WeightDecay   float64   `yaml:"weight_decay" validate:"gte=0"`
}

type Training struct {
	Patience        int     `yaml:"patience" default:"20" validate:"gte=0"`
	PlateauPatience int     `yaml:"plateau_patience" default:"10" validate:"gte=0"`
	PlateauFactor   float64 `yaml:"plateau_factor" default:"0.5" validate:"gt=0,lt=1"`
	MinLR           float64 `yaml:"min_lr" validate:"gte=0"`
	ClipNorm        float64 `yaml:"clip_norm" default:"1.0" validate:"gte=0"`
	LogInterval     int     `yaml:"log_interval" default:"10" validate:"gte=0"`
	Seed            int64   `yaml:"seed" default:"42"`
}

type Run struct {
	// Workers defaults to runtime.NumCPU().
	Workers       int           `yaml:"workers" validate:"gte=0"`
	ConfigTimeout time.Duration `yaml:"config_timeout" default:"10m" validate:"gte=0"`
	// ResultsDir defaults to ffnn_results_<suffix>_1step_last<T>test.
	ResultsDir string `yaml:"results_dir"`
	// SaveHistory writes a per-epoch fit CSV next to each model.
	SaveHistory bool `yaml:"save_history"`
}

type Logging struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stderr"`
}

type Store struct {
	// SQLitePath empty disables persistence.
	SQLitePath string `yaml:"sqlite_path"`
}

type Metrics struct {
	// Textfile empty disables the Prometheus textfile export.
	Textfile string `yaml:"textfile"`
}

type Schedule struct {
	// Cron empty runs the grid once and exits. Six fields, seconds first.
	Cron string `yaml:"cron"`
	// RunOnStart runs the grid once when the schedule starts instead of
	// waiting for the first tick.
	RunOnStart bool `yaml:"run_on_start" default:"true"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails on an empty tag or a nil function.
	_ = v.RegisterValidation("loss", func(fl validator.FieldLevel) bool {
		_, err := loss.Parse(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("activation", func(fl validator.FieldLevel) bool {
		_, err := activations.Parse(fl.Field().String())
		return err == nil
	})
	return v
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return cfg, nil
}

// Load reads path (a missing file is not an error), applies env overrides
// and validates.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("ROLLCAST_DATA_PATH"); v != "" {
		c.Data.DataPath = v
	}
	if v := os.Getenv("ROLLCAST_TARGET_COL"); v != "" {
		c.Data.TargetCol = v
	}
	if v := os.Getenv("ROLLCAST_TEST_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ROLLCAST_TEST_SIZE: %w", err)
		}
		c.Forecast.TestSize = n
	}
	if v := os.Getenv("ROLLCAST_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ROLLCAST_WORKERS: %w", err)
		}
		c.Run.Workers = n
	}
	if v := os.Getenv("ROLLCAST_SQLITE_PATH"); v != "" {
		c.Store.SQLitePath = v
	}
	if v := os.Getenv("ROLLCAST_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	return nil
}

// Validate checks every section. Call it again after overriding fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s fails %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value())
			}
			return fmt.Errorf("validate config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// DataFile resolves DataPath against RootPath.
func (c *Config) DataFile() string {
	if c.Data.RootPath == "" || filepath.IsAbs(c.Data.DataPath) {
		return c.Data.DataPath
	}
	return filepath.Join(c.Data.RootPath, c.Data.DataPath)
}

// Workers returns the configured pool size, NumCPU when unset.
func (c *Config) Workers() int {
	if c.Run.Workers > 0 {
		return c.Run.Workers
	}
	return runtime.NumCPU()
}

// Mode returns the sequence feature mode. Validate guarantees it parses.
func (c *Config) Mode() sequence.Mode {
	m, err := sequence.ParseMode(c.Forecast.FeatureMode)
	if err != nil {
		return sequence.LogReturnOnly
	}
	return m
}

// Space returns the hyperparameter grid.
func (c *Config) Space() grid.Space {
	return grid.Space{
		Lookbacks:     c.Grid.Lookbacks,
		Hidden:        c.Grid.HiddenSizes,
		Losses:        c.Grid.LossTypes,
		Activations:   c.Grid.Activations,
		LearningRates: c.Grid.LearningRates,
		Momentums:     c.Grid.Momentums,
		Epochs:        c.Grid.Epochs,
		BatchSizes:    c.Grid.BatchSizes,
		WeightDecay:   c.Grid.WeightDecay,
	}
}

// TrainingPolicy returns the fit policy shared by every configuration.
func (c *Config) TrainingPolicy() predictor.Training {
	return predictor.Training{
		Patience:        c.Training.Patience,
		PlateauPatience: c.Training.PlateauPatience,
		PlateauFactor:   c.Training.PlateauFactor,
		MinLR:           c.Training.MinLR,
		ClipNorm:        c.Training.ClipNorm,
		LogInterval:     c.Training.LogInterval,
	}
}

// Logger returns the logger settings.
func (c *Config) Logger() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}
