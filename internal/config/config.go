package config

import (
	"errors"
	"reflect"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Grid     GridConfig     `yaml:"grid" mapstructure:"grid"`
	Matrix   MatrixConfig   `yaml:"matrix" mapstructure:"matrix"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	RunLog   RunLogConfig   `yaml:"runlog" mapstructure:"runlog"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// GridConfig selects and describes the base grid geometry source.
type GridConfig struct {
	Source      string `yaml:"source" mapstructure:"source" validate:"oneof=shapefile postgis"`
	Path        string `yaml:"path" mapstructure:"path"`
	IDField     string `yaml:"id_field" mapstructure:"id_field" validate:"required"`
	SRID        int    `yaml:"srid" mapstructure:"srid" validate:"gt=0"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table" validate:"required"`
}

// MatrixConfig describes the travel-time matrix file collection.
type MatrixConfig struct {
	Root            string   `yaml:"root" mapstructure:"root" validate:"required"`
	Glob            string   `yaml:"glob" mapstructure:"glob" validate:"required"`
	Separator       string   `yaml:"separator" mapstructure:"separator" validate:"len=1"`
	Sentinel        float64  `yaml:"sentinel" mapstructure:"sentinel"`
	NoData          []string `yaml:"no_data" mapstructure:"no_data"`
	OriginField     string   `yaml:"origin_field" mapstructure:"origin_field" validate:"required"`
	DestField       string   `yaml:"dest_field" mapstructure:"dest_field" validate:"required"`
	IDOffset        int      `yaml:"id_offset" mapstructure:"id_offset"`
	IDLength        int      `yaml:"id_length" mapstructure:"id_length" validate:"gte=0"`
	IDPattern       string   `yaml:"id_pattern" mapstructure:"id_pattern"`
	Workers         int      `yaml:"workers" mapstructure:"workers" validate:"gt=0"`
	FileTimeoutSecs int      `yaml:"file_timeout_secs" mapstructure:"file_timeout_secs" validate:"gt=0"`
}

// ClassifyConfig holds classification defaults.
type ClassifyConfig struct {
	Classes   int     `yaml:"classes" mapstructure:"classes" validate:"gt=0"`
	BreakFrom float64 `yaml:"break_from" mapstructure:"break_from"`
	BreakTo   float64 `yaml:"break_to" mapstructure:"break_to" validate:"gtfield=BreakFrom"`
	BreakStep float64 `yaml:"break_step" mapstructure:"break_step" validate:"gt=0"`
}

// OutputConfig configures rendered output.
type OutputConfig struct {
	Dir          string  `yaml:"dir" mapstructure:"dir"`
	DPI          int     `yaml:"dpi" mapstructure:"dpi" validate:"gt=0"`
	WidthInches  float64 `yaml:"width_inches" mapstructure:"width_inches" validate:"gt=0"`
	HeightInches float64 `yaml:"height_inches" mapstructure:"height_inches" validate:"gt=0"`
	AssetsHost   string  `yaml:"assets_host" mapstructure:"assets_host"`
}

// RunLogConfig configures the SQLite run history. An empty path disables it.
type RunLogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port" validate:"gt=0,lt=65536"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ACCESSVIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("grid.source", "shapefile")
	v.SetDefault("grid.path", "MetropAccess_YKR_grid/MetropAccess_YKR_grid_EurefFIN.shp")
	v.SetDefault("grid.id_field", "YKR_ID")
	v.SetDefault("grid.srid", 3067)
	v.SetDefault("grid.table", "ykr_grid")
	v.SetDefault("matrix.root", "data/HelsinkiRegion_TravelTimeMatrix2015")
	v.SetDefault("matrix.glob", "*/*")
	v.SetDefault("matrix.separator", ";")
	v.SetDefault("matrix.sentinel", -1)
	v.SetDefault("matrix.no_data", []string{""})
	v.SetDefault("matrix.origin_field", "from_id")
	v.SetDefault("matrix.dest_field", "to_id")
	v.SetDefault("matrix.id_offset", -11)
	v.SetDefault("matrix.id_length", 7)
	v.SetDefault("matrix.workers", runtime.NumCPU())
	v.SetDefault("matrix.file_timeout_secs", 30)
	v.SetDefault("classify.classes", 6)
	v.SetDefault("classify.break_from", 5)
	v.SetDefault("classify.break_to", 200)
	v.SetDefault("classify.break_step", 5)
	v.SetDefault("output.dpi", 300)
	v.SetDefault("output.width_inches", 8)
	v.SetDefault("output.height_inches", 8)
	v.SetDefault("runlog.path", "accessviz.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

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

// Validate checks struct constraints plus the requirements of one command
// family ("grid", "serve", or "" for the matrix commands).
func (c *Config) Validate(mode string) error {
	var problems []string

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.Split(f.Tag.Get("mapstructure"), ",")[0]
	})

	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return eris.Wrap(err, "config: validate")
		}
		for _, fe := range verrs {
			problems = append(problems, fieldProblem(fe))
		}
	}

	switch c.Grid.Source {
	case "shapefile":
		if c.Grid.Path == "" {
			problems = append(problems, "grid.path is required for the shapefile source")
		}
	case "postgis":
		if c.Grid.DatabaseURL == "" {
			problems = append(problems, "grid.database_url is required for the postgis source")
		}
	}

	if c.Matrix.IDPattern == "" && c.Matrix.IDLength == 0 {
		problems = append(problems, "matrix.id_length or matrix.id_pattern is required")
	}

	if mode == "grid" && c.Grid.DatabaseURL == "" {
		problems = append(problems, "grid.database_url is required")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func fieldProblem(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	if fe.Tag() == "required" {
		return ns + " is required"
	}
	if fe.Param() != "" {
		return ns + " failed " + fe.Tag() + "=" + fe.Param()
	}
	return ns + " failed " + fe.Tag()
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
