package model

import (
	_ "embed"
	"fmt"
	"io"
	"regexp"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}
	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
}

// CoordinatorConfig addresses the shared queue/KV store.
type CoordinatorConfig struct {
	Addr string `json:"addr" yaml:"addr"`
	DB   int    `json:"db" yaml:"db"`
}

// RawLimits is the as-configured document shape of the limits block:
// time_to_live/distribution are duration expressions (bare seconds,
// ISO8601, or a cron schedule — see ParseBudget), not plain integers,
// since Go's cue.Value.Decode has no hook to run that parsing itself.
type RawLimits struct {
	MaxFiles     int    `json:"max_files" yaml:"max_files"`
	TimeToLive   string `json:"time_to_live" yaml:"time_to_live"`
	MaxDepth     int    `json:"max_depth" yaml:"max_depth"`
	Distribution string `json:"distribution" yaml:"distribution"`
}

// Resolve parses the document's duration expressions into Limits, the
// runtime form the worker loop (§4.6) and distributor (§4.5) consume.
func (r RawLimits) Resolve() (Limits, error) {
	ttl, err := ParseBudget(r.TimeToLive)
	if err != nil {
		return Limits{}, fmt.Errorf("limits.time_to_live: %w", err)
	}
	dist, err := ParseBudget(r.Distribution)
	if err != nil {
		return Limits{}, fmt.Errorf("limits.distribution: %w", err)
	}
	return Limits{
		MaxFiles:     r.MaxFiles,
		TimeToLive:   ttl,
		MaxDepth:     r.MaxDepth,
		Distribution: dist,
	}, nil
}

// Limits bounds the worker loop (§4.6) and the per-file distributor (§4.5),
// resolved from a RawLimits document value.
type Limits struct {
	MaxFiles     int
	TimeToLive   time.Duration // worker retirement budget
	MaxDepth     int           // files past this depth are skipped
	Distribution time.Duration // per-file classify+scan budget
}

// Tasting configures the classifier (§4.2). MimeDB is accepted for
// operator-facing config compatibility but unused: content sniffing needs
// no external database.
type Tasting struct {
	MimeDB    string `json:"mime_db,omitempty" yaml:"mime_db,omitempty"`
	RuleFiles string `json:"rule_files" yaml:"rule_files"` // path to a file, or a directory of rule files
	RuleGlob  string `json:"rule_glob,omitempty" yaml:"rule_glob,omitempty"`
}

// rawMatch mirrors Match but with uncompiled regex strings, the shape a
// config document can actually express.
type rawMatch struct {
	Flavors  []string `json:"flavors,omitempty" yaml:"flavors,omitempty"`
	Filename string   `json:"filename,omitempty" yaml:"filename,omitempty"`
	Source   string   `json:"source,omitempty" yaml:"source,omitempty"`
}

type rawRule struct {
	Positive *rawMatch      `json:"positive,omitempty" yaml:"positive,omitempty"`
	Negative *rawMatch      `json:"negative,omitempty" yaml:"negative,omitempty"`
	Priority *int           `json:"priority,omitempty" yaml:"priority,omitempty"`
	Options  map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// Config is the top-level document loaded from --worker-config.
type Config struct {
	Coordinator CoordinatorConfig `json:"coordinator" yaml:"coordinator"`
	// LoggingCfg is a slog level name, e.g. "debug"; --verbose overrides it
	// to debug regardless of what the document says.
	LoggingCfg string               `json:"logging_cfg,omitempty" yaml:"logging_cfg,omitempty"`
	Limits     RawLimits            `json:"limits" yaml:"limits"`
	Tasting    Tasting              `json:"tasting" yaml:"tasting"`
	Scanners   map[string][]rawRule `json:"scanners,omitempty" yaml:"scanners,omitempty"`

	// ScannerNames preserves the document's declared scanner order. Go maps
	// don't, and assignment tie-breaking depends on configured order (spec
	// invariant 6), so LoadConfig captures it from the CUE value directly
	// before decoding Scanners into a map.
	ScannerNames []string `json:"-" yaml:"-"`
}

// CompiledScanners compiles every configured scanner's rule list, resolving
// filename/source regexes and defaulting priority, ready for the assignment
// engine.
func (c Config) CompiledScanners() (map[string][]ScannerRule, error) {
	out := make(map[string][]ScannerRule, len(c.Scanners))
	for name, rules := range c.Scanners {
		compiled := make([]ScannerRule, 0, len(rules))
		for i, r := range rules {
			cr, err := compileRule(r)
			if err != nil {
				return nil, fmt.Errorf("scanners.%s[%d]: %w", name, i, err)
			}
			compiled = append(compiled, cr)
		}
		out[name] = compiled
	}
	return out, nil
}

// DefaultConfig returns a usable starting document, written to disk on
// first run when --worker-config points at a path that doesn't exist yet
// (mirrors the teacher's "seed a default config, don't just fail" flow in
// cmd/seeker/main.go's initSeeker).
func DefaultConfig() Config {
	lowPriority := 1
	return Config{
		Coordinator:  CoordinatorConfig{Addr: "127.0.0.1:6379", DB: 0},
		Limits:       RawLimits{MaxFiles: 1000, TimeToLive: "PT1H", MaxDepth: 8, Distribution: "@every 30s"},
		Tasting:      Tasting{RuleFiles: "/etc/fleetscan/rules", RuleGlob: "*.rules"},
		ScannerNames: []string{"ScanZip", "ScanX509", "ScanLeaks", "ScanOCIImage"},
		Scanners: map[string][]rawRule{
			"ScanZip":      {{Positive: &rawMatch{Flavors: []string{"application/zip"}}}},
			"ScanX509":     {{Positive: &rawMatch{Flavors: []string{"application/x-pem-file"}}}},
			"ScanLeaks":    {{Positive: &rawMatch{Flavors: []string{"*"}}, Priority: &lowPriority}},
			"ScanOCIImage": {{Positive: &rawMatch{Flavors: []string{"application/x-tar"}}}},
		},
	}
}

func compileRule(r rawRule) (ScannerRule, error) {
	var out ScannerRule
	out.Priority = defaultPriority
	if r.Priority != nil {
		out.Priority = *r.Priority
	}
	out.Options = r.Options

	var err error
	if out.Positive, err = compileMatch(r.Positive); err != nil {
		return out, fmt.Errorf("positive: %w", err)
	}
	if out.Negative, err = compileMatch(r.Negative); err != nil {
		return out, fmt.Errorf("negative: %w", err)
	}
	return out, nil
}

func compileMatch(m *rawMatch) (*Match, error) {
	if m == nil {
		return nil, nil
	}
	out := &Match{Flavors: m.Flavors}
	if m.Filename != "" {
		re, err := regexp.Compile(m.Filename)
		if err != nil {
			return nil, fmt.Errorf("filename regex: %w", err)
		}
		out.Filename = re
	}
	if m.Source != "" {
		re, err := regexp.Compile(m.Source)
		if err != nil {
			return nil, fmt.Errorf("source regex: %w", err)
		}
		out.Source = re
	}
	return out, nil
}

// LoadConfig validates YAML from r against the embedded CUE schema and
// decodes it to Config.
func LoadConfig(r io.Reader) (Config, error) {
	var out Config
	yamlFile, err := yaml.Extract("worker.yaml", r)
	if err != nil {
		return out, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(cue.All(), cue.Concrete(true)); err != nil {
		return out, humanizeErr(err, schema)
	}

	if err := unified.Decode(&out); err != nil {
		return out, err
	}

	if scanners := unified.LookupPath(cue.ParsePath("scanners")); scanners.Exists() {
		iter, err := scanners.Fields()
		if err != nil {
			return out, err
		}
		for iter.Next() {
			out.ScannerNames = append(out.ScannerNames, iter.Selector().Unquoted())
		}
	}
	return out, nil
}
