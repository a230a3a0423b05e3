// Package config loads the tmscope configuration file.
//
// The file is HCL by default:
//
//	grammars      = ["grammars/**/*.tmLanguage.json"]
//	themes        = ["themes/*.hcl"]
//	bundles       = ["vendor/extra.tar.gz"]
//	default_theme = "alone"
//	match_timeout = "250ms"
//
//	association "**/*.tmpl" {
//	  language = "go"
//	}
//
//	tracing {
//	  enabled  = true
//	  exporter = "stderr"
//	}
//
// HCL files can read the environment as env.NAME.
// The same shape is accepted as YAML (.yaml, .yml) or TOML (.toml).
package config

import (
	"bytes"
	"os"
	"path"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.Base("invalid config")

// DefaultMatchTimeout bounds a single pattern match when the config sets none.
const DefaultMatchTimeout = time.Second

// DefaultNames are the file names Discover looks for, in order.
var DefaultNames = []string{"tmscope.hcl", ".tmscope.hcl", "tmscope.yaml", "tmscope.yml", "tmscope.toml"}

type Config struct {
	// Grammars and Themes are doublestar patterns relative to the config file.
	Grammars []string `json:"grammars,omitempty" yaml:"grammars,omitempty" toml:"grammars,omitempty" hcl:"grammars,optional"`
	Themes   []string `json:"themes,omitempty" yaml:"themes,omitempty" toml:"themes,omitempty" hcl:"themes,optional"`
	// Bundles are tar.gz archives holding grammars and themes.
	Bundles      []string `json:"bundles,omitempty" yaml:"bundles,omitempty" toml:"bundles,omitempty" hcl:"bundles,optional"`
	DefaultTheme string   `json:"default_theme,omitempty" yaml:"default_theme,omitempty" toml:"default_theme,omitempty" hcl:"default_theme,optional"`
	MatchTimeout string   `json:"match_timeout,omitempty" yaml:"match_timeout,omitempty" toml:"match_timeout,omitempty" hcl:"match_timeout,optional"`
	// Builtin controls the embedded grammars and theme; nil means enabled.
	Builtin      *bool          `json:"builtin,omitempty" yaml:"builtin,omitempty" toml:"builtin,omitempty" hcl:"builtin,optional"`
	Associations []*Association `json:"associations,omitempty" yaml:"associations,omitempty" toml:"association,omitempty" hcl:"association,block"`
	Tracing      *TracingBlock  `json:"tracing,omitempty" yaml:"tracing,omitempty" toml:"tracing,omitempty" hcl:"tracing,block"`

	// Dir is the directory of the loaded file, "." for the default config.
	Dir string `json:"-" yaml:"-" toml:"-"`
}

// Association maps files matching a doublestar pattern to a language id.
type Association struct {
	Pattern  string `json:"pattern" yaml:"pattern" toml:"pattern" hcl:"pattern,label"`
	Language string `json:"language" yaml:"language" toml:"language" hcl:"language,attr"`
}

type TracingBlock struct {
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled" hcl:"enabled,optional"`
	// Exporter is "stdout" (default) or "stderr".
	Exporter string `json:"exporter,omitempty" yaml:"exporter,omitempty" toml:"exporter,omitempty" hcl:"exporter,optional"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{Dir: "."}
}

// Discover looks for one of DefaultNames in dir. It returns the default
// configuration when there is none.
func Discover(fs afero.Fs, dir string) (*Config, error) {
	for _, name := range DefaultNames {
		p := path.Join(dir, name)
		ok, err := afero.Exists(fs, p)
		if err != nil {
			return nil, errors.Errorf("checking %s: %w", p, err)
		}
		if ok {
			return Load(fs, p)
		}
	}
	return Default(), nil
}

// Load reads and validates a config file, picking the format from its extension.
func Load(fs afero.Fs, file string) (*Config, error) {
	data, err := afero.ReadFile(fs, file)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(file, data)
	if err != nil {
		return nil, err
	}
	cfg.Dir = path.Dir(file)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data without validating it.
func Parse(file string, data []byte) (*Config, error) {
	var cfg Config

	switch strings.ToLower(path.Ext(file)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, errors.Errorf("%w: parsing YAML: %v", ErrInvalidConfig, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, errors.Errorf("%w: parsing TOML: %v", ErrInvalidConfig, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Errorf("%w: unknown TOML keys %v", ErrInvalidConfig, undecoded)
		}
	default:
		parser := hclparse.NewParser()
		hclFile, diags := parser.ParseHCL(data, file)
		if diags.HasErrors() {
			return nil, errors.Errorf("%w: parsing HCL: %s", ErrInvalidConfig, diags.Error())
		}

		ctx := &hcl.EvalContext{
			Variables: map[string]cty.Value{
				"env": environment(),
			},
		}

		diags = gohcl.DecodeBody(hclFile.Body, ctx, &cfg)
		if diags.HasErrors() {
			return nil, errors.Errorf("%w: decoding HCL: %s", ErrInvalidConfig, diags.Error())
		}
	}

	return &cfg, nil
}

// environment exposes the process environment to HCL as env.NAME.
func environment() cty.Value {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && hclsyntax.ValidIdentifier(k) {
			vars[k] = cty.StringVal(v)
		}
	}
	if len(vars) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vars)
}

// Validate reports every problem of the configuration at once.
func (c *Config) Validate() error {
	var errs *multierror.Error
	fail := func(format string, args ...any) {
		errs = multierror.Append(errs, errors.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.MatchTimeout != "" {
		d, err := time.ParseDuration(c.MatchTimeout)
		if err != nil {
			fail("match_timeout %q: %v", c.MatchTimeout, err)
		} else if d <= 0 {
			fail("match_timeout must be positive, got %s", d)
		}
	}

	for _, group := range []struct {
		key      string
		patterns []string
	}{{"grammars", c.Grammars}, {"themes", c.Themes}} {
		for _, p := range group.patterns {
			if !doublestar.ValidatePattern(p) {
				fail("%s: invalid pattern %q", group.key, p)
			}
		}
	}

	for i, a := range c.Associations {
		switch {
		case a == nil:
			fail("association %d is empty", i)
		case a.Pattern == "":
			fail("association %d: empty pattern", i)
		case !doublestar.ValidatePattern(a.Pattern):
			fail("association %d: invalid pattern %q", i, a.Pattern)
		case a.Language == "":
			fail("association %q: empty language", a.Pattern)
		}
	}

	if c.Tracing != nil {
		switch c.Tracing.Exporter {
		case "", "stdout", "stderr":
		default:
			fail("tracing: unknown exporter %q", c.Tracing.Exporter)
		}
	}

	return errs.ErrorOrNil()
}

// Timeout returns the parsed match timeout or DefaultMatchTimeout.
func (c *Config) Timeout() time.Duration {
	if c.MatchTimeout == "" {
		return DefaultMatchTimeout
	}
	d, err := time.ParseDuration(c.MatchTimeout)
	if err != nil || d <= 0 {
		return DefaultMatchTimeout
	}
	return d
}

func (c *Config) UseBuiltin() bool {
	return c.Builtin == nil || *c.Builtin
}

func (c *Config) TracingEnabled() bool {
	return c.Tracing != nil && c.Tracing.Enabled
}

// Resolve makes a pattern or file from the config relative to the working
// directory.
func (c *Config) Resolve(p string) string {
	if path.IsAbs(p) || c.Dir == "" || c.Dir == "." {
		return p
	}
	return path.Join(c.Dir, p)
}
