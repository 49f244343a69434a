package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Sources  SourcesConfig  `yaml:"sources" mapstructure:"sources"`
	Raster   RasterConfig   `yaml:"raster" mapstructure:"raster"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Download DownloadConfig `yaml:"download" mapstructure:"download"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the PostGIS backend.
type StoreConfig struct {
	DatabaseURL     string `yaml:"database_url" mapstructure:"database_url"`
	Schema          string `yaml:"schema" mapstructure:"schema"`
	ProcessedSchema string `yaml:"processed_schema" mapstructure:"processed_schema"`
}

// DataConfig configures the on-disk layout of pipeline artifacts.
type DataConfig struct {
	RawDir       string `yaml:"raw_dir" mapstructure:"raw_dir"`
	ProcessedDir string `yaml:"processed_dir" mapstructure:"processed_dir"`
}

// SourcesConfig holds the endpoints of the upstream data providers.
type SourcesConfig struct {
	WFSURL          string `yaml:"wfs_url" mapstructure:"wfs_url"`
	DPAURL          string `yaml:"dpa_url" mapstructure:"dpa_url"`
	NominatimURL    string `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	OverpassURL     string `yaml:"overpass_url" mapstructure:"overpass_url"`
	CensoManzanasURL string `yaml:"censo_manzanas_url" mapstructure:"censo_manzanas_url"`
	CensoMicroURL    string `yaml:"censo_micro_url" mapstructure:"censo_micro_url"`
	MinvuURL        string `yaml:"minvu_url" mapstructure:"minvu_url"`
	MinvuLocal      string `yaml:"minvu_local" mapstructure:"minvu_local"`
	STACURL         string `yaml:"stac_url" mapstructure:"stac_url"`
	STACSignURL     string `yaml:"stac_sign_url" mapstructure:"stac_sign_url"`
	OpenTopoURL     string `yaml:"opentopo_url" mapstructure:"opentopo_url"`
	OpenTopoAPIKey  string `yaml:"opentopo_api_key" mapstructure:"opentopo_api_key"`
	MaxCloudPercent int    `yaml:"max_cloud_percent" mapstructure:"max_cloud_percent"`
}

// RasterConfig configures reprojection targets and derivative defaults.
type RasterConfig struct {
	TargetSRID int     `yaml:"target_srid" mapstructure:"target_srid"`
	NoData     float64 `yaml:"nodata" mapstructure:"nodata"`
	BBoxMargin float64 `yaml:"bbox_margin" mapstructure:"bbox_margin"`
}

// FetchConfig configures HTTP/FTP client behavior.
type FetchConfig struct {
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries        int     `yaml:"retries" mapstructure:"retries"`
	RatePerSecond  float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	MinPayloadSize int64   `yaml:"min_payload_size" mapstructure:"min_payload_size"`
}

// DownloadConfig bounds the parallel source acquisition.
type DownloadConfig struct {
	MaxConcurrentSources int `yaml:"max_concurrent_sources" mapstructure:"max_concurrent_sources"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COMUNA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.schema", "raw_data")
	v.SetDefault("store.processed_schema", "processed_data")
	v.SetDefault("data.raw_dir", "data/raw")
	v.SetDefault("data.processed_dir", "data/processed")
	v.SetDefault("sources.wfs_url", "https://www.ide.cl/geoserver/wfs")
	v.SetDefault("sources.dpa_url", "https://www.geoportal.cl/geoportal/catalog/download/912598ad-ac92-35f6-8045-098f214bd9c2")
	v.SetDefault("sources.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("sources.overpass_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("sources.censo_manzanas_url", "https://services5.arcgis.com/hUyD8u3TeZLKPe4T/arcgis/rest/services/Manzana_2017_2/FeatureServer/0")
	v.SetDefault("sources.censo_micro_url", "https://www.ine.gob.cl/docs/default-source/censo-de-poblacion-y-vivienda/bbdd/censo-2017/csv/microdato_censo2017-manzanas.zip")
	v.SetDefault("sources.stac_url", "https://planetarycomputer.microsoft.com/api/stac/v1")
	v.SetDefault("sources.stac_sign_url", "https://planetarycomputer.microsoft.com/api/sas/v1/sign")
	v.SetDefault("sources.opentopo_url", "https://portal.opentopography.org/API/globaldem")
	v.SetDefault("sources.max_cloud_percent", 20)
	v.SetDefault("raster.target_srid", 32719)
	v.SetDefault("raster.nodata", -9999)
	v.SetDefault("raster.bbox_margin", 0.05)
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.retries", 2)
	v.SetDefault("fetch.rate_per_second", 2)
	v.SetDefault("fetch.user_agent", "laboratorio-integrador/1.0")
	v.SetDefault("fetch.min_payload_size", 64)
	v.SetDefault("download.max_concurrent_sources", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is complete for the given
// command mode ("download", "process" or "status").
func (c *Config) Validate(mode string) error {
	var missing []string

	switch mode {
	case "download":
		if c.Data.RawDir == "" {
			missing = append(missing, "data.raw_dir is required")
		}
		if c.Sources.NominatimURL == "" {
			missing = append(missing, "sources.nominatim_url is required")
		}
		if c.Sources.OverpassURL == "" {
			missing = append(missing, "sources.overpass_url is required")
		}
	case "process", "status":
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Fetch.Retries < 0 || c.Fetch.Retries > 10 {
		missing = append(missing, "fetch.retries must be between 0 and 10")
	}
	if c.Download.MaxConcurrentSources < 1 || c.Download.MaxConcurrentSources > 16 {
		missing = append(missing, "download.max_concurrent_sources must be between 1 and 16")
	}
	if c.Raster.TargetSRID <= 0 {
		missing = append(missing, "raster.target_srid must be > 0")
	}
	if c.Raster.BBoxMargin < 0 {
		missing = append(missing, "raster.bbox_margin must be >= 0")
	}

	if len(missing) > 0 {
		return eris.Errorf("config: invalid for %s mode: %s", mode, strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
