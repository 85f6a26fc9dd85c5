package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/distkit/internal/errors"
	"github.com/vango-dev/distkit/internal/platform"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "distkit.json"

	// YAMLConfigFileName is the YAML alternative to ConfigFileName.
	YAMLConfigFileName = "distkit.yaml"

	// DotEnvFileName is read from the project root before environment lookups.
	DotEnvFileName = ".env"

	// DefaultToolchain uses whatever go is on PATH.
	DefaultToolchain = "go"

	// DefaultBuildDir is the default build output directory.
	DefaultBuildDir = "build"

	// DefaultCGOEnabled disables cgo.
	DefaultCGOEnabled = "0"

	// DefaultVersionVar is the -X target for the version tag.
	DefaultVersionVar = "main.version"

	// DefaultManifestName is the artifacts manifest written by dist-all.
	DefaultManifestName = "artifacts.txt"

	// DefaultServeAddr is the default mirror listen address.
	DefaultServeAddr = "localhost:8089"
)

// Environment variable names.
const (
	EnvToolchain  = "GO"
	EnvBuildDir   = "BUILDDIR"
	EnvCGOEnabled = "CGO_ENABLED"
	EnvGOOS       = "GOOS"
	EnvGOARCH     = "GOARCH"
	EnvVCS        = "DISTKIT_VCS"
	EnvLogLevel   = "DISTKIT_LOG_LEVEL"
	EnvLogFile    = "DISTKIT_LOG_FILE"
)

// Config is the resolved configuration for one run. Treat it as immutable
// once loaded; use WithPlatform to derive per-target copies.
type Config struct {
	// Binary is the artifact base name. Defaults to the project directory name.
	Binary string `json:"binary,omitempty" yaml:"binary,omitempty"`

	// Main is the entry-point package. Defaults to ./cmd/<binary>.
	Main string `json:"main,omitempty" yaml:"main,omitempty"`

	// VersionVar is the import-path-qualified variable set with -X.
	VersionVar string `json:"versionVar,omitempty" yaml:"versionVar,omitempty"`

	// BuildDir is the build output directory, relative to the project root.
	BuildDir string `json:"buildDir,omitempty" yaml:"buildDir,omitempty"`

	// Manifest is the artifacts manifest file name inside BuildDir.
	Manifest string `json:"manifest,omitempty" yaml:"manifest,omitempty"`

	// Toolchain is the go command to use, or "latest".
	Toolchain string `json:"toolchain,omitempty" yaml:"toolchain,omitempty"`

	// CGOEnabled is passed through as CGO_ENABLED.
	CGOEnabled string `json:"cgoEnabled,omitempty" yaml:"cgoEnabled,omitempty"`

	// GOOS and GOARCH select the dist target. Empty means the toolchain's host.
	GOOS   string `json:"goos,omitempty" yaml:"goos,omitempty"`
	GOARCH string `json:"goarch,omitempty" yaml:"goarch,omitempty"`

	// VCS selects the version describer: "git" (default) or "go-git".
	VCS string `json:"vcs,omitempty" yaml:"vcs,omitempty"`

	// Publish contains S3 publishing configuration.
	Publish PublishConfig `json:"publish,omitempty" yaml:"publish,omitempty"`

	// Serve contains release mirror configuration.
	Serve ServeConfig `json:"serve,omitempty" yaml:"serve,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	// root is the project root directory.
	root string

	// configPath stores the path where the config was loaded from.
	configPath string
}

// PublishConfig contains S3 publishing settings.
type PublishConfig struct {
	// Bucket is the destination bucket.
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`

	// Prefix is prepended to every object key.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Region overrides the AWS region from the shared config.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Endpoint overrides the S3 endpoint (S3-compatible stores).
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// ServeConfig contains release mirror settings.
type ServeConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// File is a JSON log file path. Empty disables file logging.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// New creates a Config with default values rooted at dir.
func New(dir string) *Config {
	c := &Config{root: dir}
	c.applyDefaults()
	return c
}

// Load reads configuration from the project root dir. The config file is
// optional; the .env file and the process environment are always applied.
func Load(dir string) (*Config, error) {
	return LoadWithEnv(dir, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(dir string, lookup func(string) (string, bool)) (*Config, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.New("D601").Wrap(err)
	}

	cfg := &Config{root: abs}
	if path, ok := findConfigFile(abs); ok {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	dotenv, err := readDotEnv(abs)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv(func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New("D601").Wrap(err)
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return errors.New("D601").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that " + filepath.Base(path) + " is well-formed")
	}

	c.configPath = path
	return nil
}

func readDotEnv(dir string) (map[string]string, error) {
	path := filepath.Join(dir, DotEnvFileName)
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.New("D601").
			WithDetail("Failed to parse " + path).
			Wrap(err)
	}
	return env, nil
}

// applyEnv overrides file values with set environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Toolchain, EnvToolchain)
	set(&c.BuildDir, EnvBuildDir)
	set(&c.CGOEnabled, EnvCGOEnabled)
	set(&c.GOOS, EnvGOOS)
	set(&c.GOARCH, EnvGOARCH)
	set(&c.VCS, EnvVCS)
	set(&c.Log.Level, EnvLogLevel)
	set(&c.Log.File, EnvLogFile)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Binary == "" {
		c.Binary = filepath.Base(c.root)
	}
	if c.Main == "" {
		c.Main = "./cmd/" + c.Binary
	}
	if c.VersionVar == "" {
		c.VersionVar = DefaultVersionVar
	}
	if c.BuildDir == "" {
		c.BuildDir = DefaultBuildDir
	}
	if c.Manifest == "" {
		c.Manifest = DefaultManifestName
	}
	if c.Toolchain == "" {
		c.Toolchain = DefaultToolchain
	}
	if c.CGOEnabled == "" {
		c.CGOEnabled = DefaultCGOEnabled
	}
	if c.VCS == "" {
		c.VCS = "git"
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = DefaultServeAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Binary == "" || strings.ContainsAny(c.Binary, `/\`) {
		return errors.New("D602").
			WithDetail("binary must be a plain file name, got " + quote(c.Binary))
	}
	if c.CGOEnabled != "0" && c.CGOEnabled != "1" {
		return errors.New("D602").
			WithDetail("CGO_ENABLED must be 0 or 1, got " + quote(c.CGOEnabled))
	}
	if c.VCS != "git" && c.VCS != "go-git" {
		return errors.New("D602").
			WithDetail("vcs must be git or go-git, got " + quote(c.VCS))
	}
	return nil
}

// WithPlatform returns a copy of c targeting p. c is left untouched.
func (c *Config) WithPlatform(p platform.Platform) *Config {
	cp := *c
	cp.GOOS = p.OS
	cp.GOARCH = p.Arch
	return &cp
}

// Root returns the project root directory.
func (c *Config) Root() string {
	return c.root
}

// Path returns the path where the config was loaded from, or "".
func (c *Config) Path() string {
	return c.configPath
}

// BuildPath returns the absolute path to the build output directory.
func (c *Config) BuildPath() string {
	if filepath.IsAbs(c.BuildDir) {
		return c.BuildDir
	}
	return filepath.Join(c.root, c.BuildDir)
}

// ManifestPath returns the absolute path to the artifacts manifest.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.BuildPath(), c.Manifest)
}

// CGOEnv returns the CGO_ENABLED environment entry.
func (c *Config) CGOEnv() string {
	return EnvCGOEnabled + "=" + c.CGOEnabled
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, ok := findConfigFile(dir)
	return ok
}

func findConfigFile(dir string) (string, bool) {
	for _, name := range []string{ConfigFileName, YAMLConfigFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// FindProjectRoot walks up directories to find the project root: the first
// directory holding a distkit config file or, failing that, a go.mod.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	moduleRoot := ""
	for {
		if Exists(dir) {
			return dir, nil
		}
		if moduleRoot == "" {
			if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
				moduleRoot = dir
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			if moduleRoot != "" {
				return moduleRoot, nil
			}
			return "", errors.New("D601").
				WithDetail("No " + ConfigFileName + " or go.mod found in " + startDir + " or any parent directory").
				WithSuggestion("Run distkit from inside a Go module")
		}
		dir = parent
	}
}

// LoadProject finds the project containing startDir and loads its
// configuration with lookup as the environment.
func LoadProject(startDir string, lookup func(string) (string, bool)) (*Config, error) {
	root, err := FindProjectRoot(startDir)
	if err != nil {
		return nil, err
	}
	return LoadWithEnv(root, lookup)
}

func quote(s string) string {
	return `"` + s + `"`
}
