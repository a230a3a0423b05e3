package theme

import (
	"encoding/json"
	"path"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// vscodeTheme is the color theme format of VS Code, also accepted as YAML.
type vscodeTheme struct {
	Name        string            `json:"name" yaml:"name"`
	Type        string            `json:"type" yaml:"type"`
	Colors      map[string]string `json:"colors" yaml:"colors"`
	TokenColors []vscodeRule      `json:"tokenColors" yaml:"tokenColors"`
}

type vscodeRule struct {
	Name     string         `json:"name" yaml:"name"`
	Scope    scopeList      `json:"scope" yaml:"scope"`
	Settings vscodeSettings `json:"settings" yaml:"settings"`
}

type vscodeSettings struct {
	Foreground string  `json:"foreground" yaml:"foreground"`
	Background string  `json:"background" yaml:"background"`
	FontStyle  *string `json:"fontStyle" yaml:"fontStyle"`
}

// scopeList is written either as one comma separated string or as a list.
type scopeList []string

func (s *scopeList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = scopeList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.Errorf("scope must be a string or a list of strings: %w", err)
	}
	*s = many
	return nil
}

func (s *scopeList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*s = scopeList{node.Value}
		return nil
	}
	var many []string
	if err := node.Decode(&many); err != nil {
		return errors.Errorf("scope must be a string or a list of strings: %w", err)
	}
	*s = many
	return nil
}

// hclTheme is the HCL theme format:
//
//	name       = "alone"
//	type       = "dark"
//	foreground = "#d4d4d4"
//	background = "#1e1e1e"
//
//	rule "keyword.control" {
//	  foreground = "#c586c0"
//	  font_style = "bold"
//	}
type hclTheme struct {
	Name       string    `hcl:"name,optional"`
	Type       string    `hcl:"type,optional"`
	Foreground string    `hcl:"foreground,optional"`
	Background string    `hcl:"background,optional"`
	Rules      []hclRule `hcl:"rule,block"`
}

type hclRule struct {
	Scope      string  `hcl:"scope,label"`
	Foreground string  `hcl:"foreground,optional"`
	Background string  `hcl:"background,optional"`
	FontStyle  *string `hcl:"font_style,optional"`
}

// Decode parses a theme file, picking the format from its extension:
// ".hcl" for HCL, ".yaml"/".yml" for YAML and VS Code JSON otherwise.
func Decode(name string, data []byte) (*Theme, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".hcl":
		return decodeHCL(name, data)
	case ".yaml", ".yml":
		var raw vscodeTheme
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.Errorf("%w: parsing YAML: %v", ErrMalformedTheme, err)
		}
		return raw.theme()
	default:
		var raw vscodeTheme
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.Errorf("%w: parsing JSON: %v", ErrMalformedTheme, err)
		}
		return raw.theme()
	}
}

func (raw *vscodeTheme) theme() (*Theme, error) {
	var errs *multierror.Error
	t := &Theme{Name: raw.Name, Type: raw.Type}

	var err error
	if t.Default.Foreground, err = NormalizeColor(raw.Colors["editor.foreground"]); err != nil {
		errs = multierror.Append(errs, errors.Errorf("colors.editor.foreground: %w", err))
	}
	if t.Default.Background, err = NormalizeColor(raw.Colors["editor.background"]); err != nil {
		errs = multierror.Append(errs, errors.Errorf("colors.editor.background: %w", err))
	}

	for i, tc := range raw.TokenColors {
		fontStyle := ""
		if tc.Settings.FontStyle != nil {
			fontStyle = *tc.Settings.FontStyle
		}
		if strings.TrimSpace(strings.Join(tc.Scope, "")) == "" {
			// an entry without scope sets the defaults
			if err := t.setDefaults(tc.Settings.Foreground, tc.Settings.Background, fontStyle); err != nil {
				errs = multierror.Append(errs, errors.Errorf("tokenColors[%d]: %w", i, err))
			}
			continue
		}
		r, err := NewRule(i, strings.Join(tc.Scope, ","), tc.Settings.Foreground, tc.Settings.Background, fontStyle, tc.Settings.FontStyle != nil)
		if err != nil {
			errs = multierror.Append(errs, errors.Errorf("tokenColors[%d]: %w", i, err))
			continue
		}
		t.Rules = append(t.Rules, r)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Theme) setDefaults(fg, bg, fontStyle string) error {
	var err error
	if fg, err = NormalizeColor(fg); err != nil {
		return err
	}
	if bg, err = NormalizeColor(bg); err != nil {
		return err
	}
	fs, err := ParseFontStyle(fontStyle)
	if err != nil {
		return err
	}
	if fg != "" {
		t.Default.Foreground = fg
	}
	if bg != "" {
		t.Default.Background = bg
	}
	t.Default.FontStyle = fs
	return nil
}

func decodeHCL(name string, data []byte) (*Theme, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, name)
	if diags.HasErrors() {
		return nil, errors.Errorf("%w: parsing HCL: %s", ErrMalformedTheme, diags.Error())
	}

	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
	}

	var raw hclTheme
	diags = gohcl.DecodeBody(file.Body, ctx, &raw)
	if diags.HasErrors() {
		return nil, errors.Errorf("%w: decoding HCL: %s", ErrMalformedTheme, diags.Error())
	}

	var errs *multierror.Error
	t := &Theme{Name: raw.Name, Type: raw.Type}
	if err := t.setDefaults(raw.Foreground, raw.Background, ""); err != nil {
		errs = multierror.Append(errs, err)
	}
	for i, hr := range raw.Rules {
		fontStyle := ""
		if hr.FontStyle != nil {
			fontStyle = *hr.FontStyle
		}
		r, err := NewRule(i, hr.Scope, hr.Foreground, hr.Background, fontStyle, hr.FontStyle != nil)
		if err != nil {
			errs = multierror.Append(errs, errors.Errorf("rule %q: %w", hr.Scope, err))
			continue
		}
		t.Rules = append(t.Rules, r)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return t, nil
}
