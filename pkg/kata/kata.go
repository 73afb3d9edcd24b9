// Package kata loads kata directories.
//
// A kata directory holds a meta.yaml file, the public test file, an
// optional hidden test file and, for judged katas, a rubric:
//
//	slug: reverse-words
//	title: Reverse the words
//	language: py
//	type: code
//	timeout_ms: 5000
//	entry: entry.py          # optional, defaults per language
//	test:
//	  file: tests.py         # optional, defaults per language
//	hidden:
//	  file: hidden_tests.py  # optional
//	rubric:
//	  keys: [correctness, clarity]
//	  weights: {correctness: 2, clarity: 1}
//	  threshold:
//	    min_total: 70
//	    per_key: {correctness: 60}
package kata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/dojo/pkg/api"
)

// MetaFile is the metadata file name inside a kata directory.
const MetaFile = "meta.yaml"

// ErrNoTests is returned when a kata has no public test file for a language.
var ErrNoTests = errors.New("kata has no test file")

// FileRef points at a file relative to the kata directory.
type FileRef struct {
	File string `yaml:"file"`
}

// Threshold holds the rubric pass thresholds.
type Threshold struct {
	MinTotal int            `yaml:"min_total"`
	PerKey   map[string]int `yaml:"per_key"`
}

// RubricMeta is the rubric as written in meta.yaml.
type RubricMeta struct {
	Keys         []string           `yaml:"keys"`
	Weights      map[string]float64 `yaml:"weights"`
	Descriptions map[string]string  `yaml:"descriptions"`
	Threshold    Threshold          `yaml:"threshold"`
}

// Meta is the parsed meta.yaml.
type Meta struct {
	Slug        string       `yaml:"slug"`
	Title       string       `yaml:"title"`
	Language    string       `yaml:"language"`
	Type        api.KataType `yaml:"type"`
	TimeoutMs   int          `yaml:"timeout_ms"`
	Entry       string       `yaml:"entry"`
	Test        FileRef      `yaml:"test"`
	Hidden      FileRef      `yaml:"hidden"`
	Topic       string       `yaml:"topic"`
	Description string       `yaml:"description"`
	Rubric      *RubricMeta  `yaml:"rubric"`
}

// Kata is a loaded kata directory.
type Kata struct {
	Dir      string
	Meta     Meta
	Language api.Language
}

// Load reads and validates dir/meta.yaml.
func Load(dir string) (*Kata, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("kata path is empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving kata path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("kata directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("kata path %s is not a directory", abs)
	}

	data, err := os.ReadFile(filepath.Join(abs, MetaFile))
	if err != nil {
		return nil, fmt.Errorf("reading kata metadata: %w", err)
	}

	var meta Meta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", MetaFile, err)
	}

	k := &Kata{Dir: abs, Meta: meta}
	if err := k.validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", MetaFile, err)
	}
	return k, nil
}

func (k *Kata) validate() error {
	var errs []error

	if k.Meta.Type == "" {
		k.Meta.Type = api.KataTypeCode
	}
	if !k.Meta.Type.Valid() {
		errs = append(errs, fmt.Errorf("type must be one of code, explanation, template, codebase, got %q", k.Meta.Type))
	}

	if k.Meta.Language != "" {
		lang, err := api.ParseLanguage(k.Meta.Language)
		if err != nil {
			errs = append(errs, fmt.Errorf("language: %w", err))
		}
		k.Language = lang
	} else if k.Meta.Type == api.KataTypeCode {
		errs = append(errs, errors.New("language is required for code katas"))
	}

	switch k.Meta.Type {
	case api.KataTypeCode, api.KataTypeTemplate:
		if k.Meta.TimeoutMs <= 0 {
			errs = append(errs, fmt.Errorf("timeout_ms must be > 0 for %s katas, got %d", k.Meta.Type, k.Meta.TimeoutMs))
		}
	default:
		if k.Meta.TimeoutMs < 0 {
			errs = append(errs, fmt.Errorf("timeout_ms must not be negative, got %d", k.Meta.TimeoutMs))
		}
	}

	for _, name := range []string{k.Meta.Entry, k.Meta.Test.File, k.Meta.Hidden.File} {
		if name != "" && !filepath.IsLocal(name) {
			errs = append(errs, fmt.Errorf("file %q must be a relative path inside the kata", name))
		}
	}

	if k.Meta.Rubric != nil {
		if _, err := k.Meta.Rubric.toRubric(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Timeout returns the kata's default run timeout, or 0 when unset.
func (k *Kata) Timeout() time.Duration {
	return time.Duration(k.Meta.TimeoutMs) * time.Millisecond
}

// EntryFile returns the learner file name for lang.
func (k *Kata) EntryFile(lang api.Language) string {
	if k.Meta.Entry != "" && lang == k.Language {
		return k.Meta.Entry
	}
	return "entry" + Extension(lang)
}

// TestFile returns the absolute path of the public test file for lang.
func (k *Kata) TestFile(lang api.Language) (string, error) {
	name := "tests" + Extension(lang)
	if k.Meta.Test.File != "" && lang == k.Language {
		name = k.Meta.Test.File
	}
	path := filepath.Join(k.Dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w for %s: %s", ErrNoTests, lang.DisplayName(), name)
	}
	return path, nil
}

// HiddenFile returns the absolute path of the hidden test file for lang.
// The boolean is false when the kata has no hidden tests.
func (k *Kata) HiddenFile(lang api.Language) (string, bool) {
	name := "hidden_tests" + Extension(lang)
	if k.Meta.Hidden.File != "" && lang == k.Language {
		name = k.Meta.Hidden.File
	}
	path := filepath.Join(k.Dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Rubric converts the metadata rubric into an api.Rubric. It returns nil
// when the kata declares none.
func (k *Kata) Rubric() (*api.Rubric, error) {
	if k.Meta.Rubric == nil {
		return nil, nil
	}
	return k.Meta.Rubric.toRubric()
}

func (m *RubricMeta) toRubric() (*api.Rubric, error) {
	if len(m.Keys) == 0 {
		return nil, errors.New("rubric.keys must not be empty")
	}
	for key := range m.Weights {
		if !slices.Contains(m.Keys, key) {
			return nil, fmt.Errorf("rubric.weights names unknown key %q", key)
		}
	}
	for key := range m.Threshold.PerKey {
		if !slices.Contains(m.Keys, key) {
			return nil, fmt.Errorf("rubric.threshold.per_key names unknown key %q", key)
		}
	}

	r := &api.Rubric{MinTotalScore: m.Threshold.MinTotal}
	for _, key := range m.Keys {
		c := api.Criterion{Name: key, Weight: 1, Description: m.Descriptions[key]}
		if w, ok := m.Weights[key]; ok {
			c.Weight = w
		}
		if minScore, ok := m.Threshold.PerKey[key]; ok {
			c.MinScore = &minScore
		}
		r.Criteria = append(r.Criteria, c)
	}

	if apiErr := api.ValidateRubric(r); apiErr != nil {
		return nil, fmt.Errorf("rubric: %s", apiErr.Message)
	}
	return r, nil
}

// Extension returns the source file extension for lang.
func Extension(lang api.Language) string {
	switch lang {
	case api.LanguagePython:
		return ".py"
	case api.LanguageJavaScript:
		return ".js"
	case api.LanguageTypeScript:
		return ".ts"
	case api.LanguageCPP:
		return ".cpp"
	default:
		return ""
	}
}
