// Package config loads the YAML configuration of the command line tool and the cluster members it starts.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/gostonefire/exthashdb/internal/logging"
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"strings"
	"time"
)

// ErrInvalid is returned by Validate when a value is out of range or unknown.
var ErrInvalid = errors.New("config: invalid value")

var validate *validator.Validate

func init() {
	validate = validator.New()

	_ = validate.RegisterValidation("loglevel", validateLogLevel)
	_ = validate.RegisterValidation("logformat", validateLogFormat)
}

// validateLogLevel - Accepts the level names logging.ParseLevel knows
func validateLogLevel(fl validator.FieldLevel) bool {
	_, err := logging.ParseLevel(fl.Field().String())
	return err == nil
}

// validateLogFormat - Accepts text and json
func validateLogFormat(fl validator.FieldLevel) bool {
	f := logging.Format(fl.Field().String())
	return f == logging.FormatText || f == logging.FormatJSON
}

// Hash algorithm names accepted in IndexConfig.Hash
const (
	HashIdentity = "identity"
	HashMix      = "mix"
)

// Config - Root of the configuration file
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Index   IndexConfig   `yaml:"index"`
	Cluster ClusterConfig `yaml:"cluster"`
	OpLog   OpLogConfig   `yaml:"oplog"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig - Logging, level is one of debug, info, warn, error and format one of text, json
type LogConfig struct {
	Level  string `yaml:"level" validate:"loglevel"`
	Format string `yaml:"format" validate:"logformat"`
}

// IndexConfig - Hash table settings, an empty name gives in memory tables
type IndexConfig struct {
	Name           string `yaml:"name"`
	BucketCapacity int    `yaml:"bucket_capacity" validate:"min=1"`
	MaxLevelDepth  int    `yaml:"max_level_depth" validate:"min=1,max=8"`
	Hash           string `yaml:"hash" validate:"oneof=identity mix"`
}

// ClusterConfig - Coordination settings
//   - Database is the database replicated by the demo cluster
//   - Members are the member names, the first one leads
//   - TimeoutInterval is the period of the coordinator timeout check
//   - DrainTimeout bounds the wait for queued work at shutdown
type ClusterConfig struct {
	Database        string        `yaml:"database" validate:"required"`
	Members         []string      `yaml:"members" validate:"required,min=1,dive,required"`
	TimeoutInterval time.Duration `yaml:"timeout_interval" validate:"gt=0"`
	DrainTimeout    time.Duration `yaml:"drain_timeout" validate:"gt=0"`
}

// OpLogConfig - Operation log storage, one badger directory per member below Dir unless InMemory
type OpLogConfig struct {
	Dir        string `yaml:"dir" validate:"required_unless=InMemory true"`
	InMemory   bool   `yaml:"in_memory"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// MetricsConfig - Address of the prometheus endpoint, empty disables it
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Default - Returns the configuration used for anything a file leaves out
func Default() Config {
	return Config{
		Log:   LogConfig{Level: "info", Format: string(logging.FormatText)},
		Index: IndexConfig{BucketCapacity: 4, MaxLevelDepth: 8, Hash: HashIdentity},
		Cluster: ClusterConfig{
			Database:        "default",
			Members:         []string{"node-1", "node-2", "node-3"},
			TimeoutInterval: time.Second,
			DrainTimeout:    time.Hour,
		},
		OpLog: OpLogConfig{InMemory: true},
	}
}

// Load - Reads the file at path over the defaults
func Load(path string) (config Config, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("error while reading config file %s: %w", path, err)
		return
	}

	return Parse(data)
}

// Parse - Decodes data over the defaults and validates the result. Unknown fields are errors.
func Parse(data []byte) (config Config, err error) {
	config = Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	err = decoder.Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		err = fmt.Errorf("error while parsing config: %w", err)
		return
	}

	err = config.Validate()

	return
}

// Validate - Checks value ranges and names against the validate tags, every failing field is reported in one
// error wrapping ErrInvalid
func (C Config) Validate() error {
	err := validate.Struct(C)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("error while validating config: %w", err)
	}

	failures := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		failures = append(failures, fmt.Sprintf("%s=%v fails %s", fe.Namespace(), fe.Value(), rule))
	}

	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(failures, "; "))
}

// Logging - Returns the logging configuration for service
func (C Config) Logging(service string) logging.Config {
	level, _ := logging.ParseLevel(C.Log.Level)

	return logging.Config{Level: level, Format: logging.Format(C.Log.Format), Service: service}
}
