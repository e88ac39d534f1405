package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/hedisam/tiersync/lib/retry"
	"github.com/hedisam/tiersync/storage/tier"
)

const (
	DefaultEnvPrefix = "TIERSYNC"
	// DefaultSDKRegion is handed to the S3 client when no region is configured or derivable from the endpoint.
	DefaultSDKRegion = "us-east-1"
	UnknownRegion    = "unknown"
)

type CatalogConfig struct {
	URL      string        `json:"url"       mapstructure:"url"`
	Timeout  time.Duration `json:"timeout"   mapstructure:"timeout"`
	PageSize int           `json:"page_size" mapstructure:"page_size"`
}

type S3Config struct {
	Endpoint        string `json:"endpoint"          mapstructure:"endpoint"`
	Region          string `json:"region"            mapstructure:"region"`
	GatewayURL      string `json:"gateway_url"       mapstructure:"gateway_url"`
	PathStyle       bool   `json:"path_style"        mapstructure:"path_style"`
	MaxKeys         int32  `json:"max_keys"          mapstructure:"max_keys"`
	AccessKeyID     string `json:"-"                 mapstructure:"access_key_id"`
	SecretAccessKey string `json:"-"                 mapstructure:"secret_access_key"`
}

// SchemesConfig describes the scheme table written to items. Keys and storage classes are indexed by lower case tier
// name (standard, performance, archive); the mixed scheme key is Keys["mixed"].
type SchemesConfig struct {
	Platform       string            `json:"platform"        mapstructure:"platform"`
	Bucket         string            `json:"bucket"          mapstructure:"bucket"`
	Region         string            `json:"region"          mapstructure:"region"`
	Keys           map[string]string `json:"keys"            mapstructure:"keys"`
	StorageClasses map[string]string `json:"storage_classes" mapstructure:"storage_classes"`
}

type RetryConfig struct {
	MaxAttempts     uint          `json:"max_attempts"     mapstructure:"max_attempts"`
	InitialInterval time.Duration `json:"initial_interval" mapstructure:"initial_interval"`
	MaxInterval     time.Duration `json:"max_interval"     mapstructure:"max_interval"`
	Multiplier      float64       `json:"multiplier"       mapstructure:"multiplier"`
}

type ReportConfig struct {
	MaxExamples int `json:"max_examples" mapstructure:"max_examples"`
}

type JournalConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

type MetricsConfig struct {
	PushgatewayURL string `json:"pushgateway_url" mapstructure:"pushgateway_url"`
	Textfile       string `json:"textfile"        mapstructure:"textfile"`
}

type TracingConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Output  string `json:"output"  mapstructure:"output"`
}

type LogConfig struct {
	Level  string `json:"level"  mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

type Config struct {
	Catalog              CatalogConfig `json:"catalog"                mapstructure:"catalog"`
	S3                   S3Config      `json:"s3"                     mapstructure:"s3"`
	Schemes              SchemesConfig `json:"schemes"                mapstructure:"schemes"`
	Retry                RetryConfig   `json:"retry"                  mapstructure:"retry"`
	Workers              uint          `json:"workers"                mapstructure:"workers"`
	StrictStorageClasses bool          `json:"strict_storage_classes" mapstructure:"strict_storage_classes"`
	SampleSize           int           `json:"sample_size"            mapstructure:"sample_size"`
	Report               ReportConfig  `json:"report"                 mapstructure:"report"`
	Journal              JournalConfig `json:"journal"                mapstructure:"journal"`
	Metrics              MetricsConfig `json:"metrics"                mapstructure:"metrics"`
	Tracing              TracingConfig `json:"tracing"                mapstructure:"tracing"`
	Log                  LogConfig     `json:"log"                    mapstructure:"log"`
}

var defaults = map[string]any{
	"catalog.url":                         "",
	"catalog.timeout":                     "30s",
	"catalog.page_size":                   100,
	"s3.endpoint":                         "",
	"s3.region":                           "",
	"s3.gateway_url":                      "",
	"s3.path_style":                       false,
	"s3.max_keys":                         1000,
	"s3.access_key_id":                    "",
	"s3.secret_access_key":                "",
	"schemes.platform":                    "",
	"schemes.bucket":                      "",
	"schemes.region":                      "",
	"schemes.keys.standard":               "standard",
	"schemes.keys.performance":            "performance",
	"schemes.keys.archive":                "glacier",
	"schemes.keys.mixed":                  tier.DefaultMixedKey,
	"schemes.storage_classes.standard":    "STANDARD",
	"schemes.storage_classes.performance": "EXPRESS_ONEZONE",
	"schemes.storage_classes.archive":     "STANDARD_IA",
	"retry.max_attempts":                  5,
	"retry.initial_interval":              "200ms",
	"retry.max_interval":                  "10s",
	"retry.multiplier":                    2.0,
	"workers":                             1,
	"strict_storage_classes":              false,
	"sample_size":                         0,
	"report.max_examples":                 10,
	"journal.path":                        "",
	"metrics.pushgateway_url":             "",
	"metrics.textfile":                    "",
	"tracing.enabled":                     false,
	"tracing.output":                      "stderr",
	"log.level":                           "info",
	"log.format":                          "text",
}

// NewViper returns a viper instance with every key defaulted and bound to its TIERSYNC_ environment variable, e.g.
// catalog.url is read from TIERSYNC_CATALOG_URL.
func NewViper() *viper.Viper {
	v := viper.NewWithOptions(
		viper.KeyDelimiter("."),
		viper.EnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")),
	)

	v.SetEnvPrefix(DefaultEnvPrefix)
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	for key, val := range defaults {
		_ = v.BindEnv(key)
		v.SetDefault(key, val)
	}

	return v
}

// Load reads the optional config file at path into v and decodes the result. Flags bound to v take precedence over
// the environment, which takes precedence over the file.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	decodeHooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHooks)); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	var errs []error

	if c.Catalog.URL == "" {
		errs = append(errs, errors.New("catalog.url is required"))
	} else if u, err := url.Parse(c.Catalog.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("catalog.url %q must be an absolute url", c.Catalog.URL))
	}
	if c.Catalog.PageSize <= 0 {
		errs = append(errs, errors.New("catalog.page_size must be positive"))
	}
	if c.S3.MaxKeys <= 0 || c.S3.MaxKeys > 1000 {
		errs = append(errs, errors.New("s3.max_keys must be between 1 and 1000"))
	}
	for name := range c.Schemes.StorageClasses {
		if _, err := tier.Parse(name); err != nil {
			errs = append(errs, fmt.Errorf("schemes.storage_classes: %w", err))
		}
	}
	for name := range c.Schemes.Keys {
		if name == tier.DefaultMixedKey {
			continue
		}
		if _, err := tier.Parse(name); err != nil {
			errs = append(errs, fmt.Errorf("schemes.keys: %w", err))
		}
	}
	if c.Retry.MaxAttempts == 0 {
		errs = append(errs, errors.New("retry.max_attempts must be positive"))
	}
	if c.Retry.InitialInterval <= 0 || c.Retry.MaxInterval <= 0 {
		errs = append(errs, errors.New("retry intervals must be positive"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry.multiplier must be at least 1"))
	}
	if c.Workers == 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.SampleSize < 0 {
		errs = append(errs, errors.New("sample_size must not be negative"))
	}
	if c.Report.MaxExamples < 0 {
		errs = append(errs, errors.New("report.max_examples must not be negative"))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}

	return errors.Join(errs...)
}

// RetryPolicy builds the retry policy shared by catalog and object storage calls.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:         c.Retry.MaxAttempts,
		InitialInterval:     c.Retry.InitialInterval,
		MaxInterval:         c.Retry.MaxInterval,
		Multiplier:          c.Retry.Multiplier,
		RandomizationFactor: 0.2,
	}
}

// SDKRegion is the region handed to the S3 client.
func (c *Config) SDKRegion() string {
	if c.S3.Region != "" {
		return c.S3.Region
	}
	if r := RegionFromEndpoint(c.S3.Endpoint); r != "" {
		return r
	}
	return DefaultSDKRegion
}

// SchemeConfig builds the scheme table configuration. The platform defaults to the S3 endpoint and the region is
// derived from it when not configured.
func (c *Config) SchemeConfig() (tier.SchemeConfig, error) {
	platform := c.Schemes.Platform
	if platform == "" {
		platform = c.S3.Endpoint
	}
	region := c.Schemes.Region
	if region == "" {
		region = c.S3.Region
	}
	if region == "" {
		region = RegionFromEndpoint(platform)
	}
	if region == "" {
		region = UnknownRegion
	}

	out := tier.DefaultSchemeConfig(platform, c.Schemes.Bucket, region)
	for name, key := range c.Schemes.Keys {
		if name == tier.DefaultMixedKey {
			out.MixedKey = key
			continue
		}
		t, err := tier.Parse(name)
		if err != nil {
			return tier.SchemeConfig{}, fmt.Errorf("schemes.keys: %w", err)
		}
		out.Keys[t] = key
	}
	for name, class := range c.Schemes.StorageClasses {
		t, err := tier.Parse(name)
		if err != nil {
			return tier.SchemeConfig{}, fmt.Errorf("schemes.storage_classes: %w", err)
		}
		out.StorageClasses[t] = strings.ToUpper(class)
	}

	return out, nil
}

var regionMarkers = []string{"de", "gra", "sbg", "uk", "ca"}

// RegionFromEndpoint extracts the region code from endpoints such as https://s3.de.io.cloud.ovh.net. It returns an
// empty string when the endpoint names no known region.
func RegionFromEndpoint(endpoint string) string {
	host := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		host = u.Host
	}
	for _, r := range regionMarkers {
		if strings.Contains(host, "."+r+".") {
			return r
		}
	}
	return ""
}
