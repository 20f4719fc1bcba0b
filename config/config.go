package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Repo        RepoConfig          `json:"repo" yaml:"repo"`
	Ingest      IngestConfig        `json:"ingest" yaml:"ingest"`
	Output      OutputConfig        `json:"output" yaml:"output"`
	Feeds       FeedsConfig         `json:"feeds" yaml:"feeds"`
	CommitKinds map[string][]string `json:"commitKinds" yaml:"commitKinds"` // extra regex patterns per kind
	Server      ServerConfig        `json:"server" yaml:"server"`
	Log         LogConfig           `json:"log" yaml:"log"`
}

// RepoConfig locates the mirrored repository.
type RepoConfig struct {
	Dir    string `json:"dir" yaml:"dir" validate:"required"`
	Origin string `json:"origin" yaml:"origin"`
	Reader string `json:"reader" yaml:"reader" validate:"oneof=gogit cli"`
}

// IngestConfig holds graph building and version assignment options.
type IngestConfig struct {
	BaseTag              string   `json:"baseTag" yaml:"baseTag" validate:"required"`
	FixedBranches        []string `json:"fixedBranches" yaml:"fixedBranches" validate:"dive,required"`
	ReleaseBranchPattern string   `json:"releaseBranchPattern" yaml:"releaseBranchPattern"`
	TagPattern           string   `json:"tagPattern" yaml:"tagPattern"`
	Concurrency          int      `json:"concurrency" yaml:"concurrency" validate:"gte=1"`
	VersionMode          string   `json:"versionMode" yaml:"versionMode" validate:"oneof=bfs describe"`
	DescribeWorkers      int      `json:"describeWorkers" yaml:"describeWorkers" validate:"gte=1"`
	DescribeBatch        int      `json:"describeBatch" yaml:"describeBatch" validate:"gte=1"`
	SupportRev           string   `json:"supportRev" yaml:"supportRev"`
	SupportPath          string   `json:"supportPath" yaml:"supportPath"`
}

// OutputConfig names the data files. Relative file names are joined to Dir.
type OutputConfig struct {
	Dir        string `json:"dir" yaml:"dir" validate:"required"`
	Commits    string `json:"commits" yaml:"commits" validate:"required"`
	Support    string `json:"support" yaml:"support"`
	Features   string `json:"features" yaml:"features" validate:"required"`
	Advisories string `json:"advisories" yaml:"advisories" validate:"required"`
}

// FeedsConfig holds the feature and advisory feed endpoints.
type FeedsConfig struct {
	FeaturesURL       string  `json:"featuresURL" yaml:"featuresURL" validate:"required,url"`
	AdvisoryAPIBase   string  `json:"advisoryAPIBase" yaml:"advisoryAPIBase" validate:"required,url"`
	Owner             string  `json:"owner" yaml:"owner" validate:"required"`
	Repo              string  `json:"repo" yaml:"repo" validate:"required"`
	RequestsPerSecond float64 `json:"requestsPerSecond" yaml:"requestsPerSecond" validate:"gte=0"`
	TimeoutSeconds    int     `json:"timeoutSeconds" yaml:"timeoutSeconds" validate:"gte=0"`

	// Token is read from GITHUB_TOKEN and never persisted.
	Token string `json:"-" yaml:"-"`
}

// ServerConfig holds HTTP API options.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" validate:"required"`
}

// LogConfig holds logging options.
type LogConfig struct {
	Level string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `json:"json" yaml:"json"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Repo: RepoConfig{
			Dir:    "repo",
			Origin: "https://github.com/discourse/discourse",
			Reader: "gogit",
		},
		Ingest: IngestConfig{
			BaseTag:              "v3.4.0",
			FixedBranches:        []string{"main", "stable", "latest"},
			ReleaseBranchPattern: "release/*",
			TagPattern:           "v*",
			Concurrency:          4,
			VersionMode:          "bfs",
			DescribeWorkers:      100,
			DescribeBatch:        500,
			SupportRev:           "main",
			SupportPath:          "versions.json",
		},
		Output: OutputConfig{
			Dir:        "data",
			Commits:    "commits.json",
			Support:    "version-support.json",
			Features:   "new-features.json",
			Advisories: "security-advisories.json",
		},
		Feeds: FeedsConfig{
			FeaturesURL:       "https://meta.discourse.org/new-features.json",
			AdvisoryAPIBase:   "https://api.github.com",
			Owner:             "discourse",
			Repo:              "discourse",
			RequestsPerSecond: 2,
			TimeoutSeconds:    30,
		},
		CommitKinds: map[string][]string{},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

var configNames = []string{".changelog.json", ".changelog.yaml", ".changelog.yml"}

// LoadConfig loads configuration from a file, merging with defaults. An empty path
// searches the working directory, then the home directory.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		var dirs []string
		dirs = append(dirs, ".")
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			dirs = append(dirs, home)
		} else if envHome := os.Getenv("HOME"); envHome != "" {
			dirs = append(dirs, envHome)
		}
	search:
		for _, dir := range dirs {
			for _, name := range configNames {
				p := filepath.Join(dir, name)
				if _, err := os.Stat(p); err == nil {
					path = p
					break search
				}
			}
		}
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadEnv reads a .env file, if present, and applies environment overrides.
// A missing or unreadable .env is reported through the returned warning.
func (c *Config) LoadEnv(files ...string) (warning error) {
	if err := godotenv.Load(files...); err != nil {
		warning = err
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		c.Feeds.Token = token
	}
	return warning
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Path joins name to the output directory unless it is absolute or empty.
func (c *Config) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Output.Dir, name)
}

// SaveConfig saves configuration to a file. The format follows the extension.
func SaveConfig(cfg *Config, path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
