package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SearchPaths are tried in order when LoadAppConfig gets no explicit path.
var SearchPaths = []string{"config.yml", "./config/config.yml"}

// LoadAppConfig decodes the YAML file at path over Default(). With an empty
// path the SearchPaths are tried and, if none exists, Default() is returned
// unchanged. Default table lists are narrowed to the selected schema; lists
// set in the file are kept as written. The result is not validated; call
// Validate after ApplyEnv.
func LoadAppConfig(path string) (AppConfig, error) {
	cfg := Default()
	candidates := SearchPaths
	if path != "" {
		candidates = []string{path}
	}
	var data []byte
	var err error
	for _, p := range candidates {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		if path == "" && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return AppConfig{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg.fitDefaultTables(), nil
}

// ApplyEnv overlays the GitHub Action inputs and context variables read
// through getenv and returns the updated copy. Publishing is enabled when a
// token and a repository are both known.
func (c AppConfig) ApplyEnv(getenv func(string) string) AppConfig {
	out := c
	out.Sources = append([]string(nil), c.Sources...)
	out.Tables.Common = append([]string(nil), c.Tables.Common...)
	out.Tables.Source = append([]string(nil), c.Tables.Source...)

	if v := getenv("GITHUB_WORKSPACE"); v != "" {
		out.Paths.Workspace = v
	}
	if v := getenv("INPUT_GTFS-COMMON-FILES-DIRECTORY"); v != "" {
		out.Paths.CommonDir = v
	}
	if v := getenv("INPUT_FILES-TO-MERGE"); v != "" {
		out.Sources = splitList(v)
	}
	if v := getenv("INPUT_TOKEN"); v != "" {
		out.Publish.Token = v
	}
	if v := getenv("GITHUB_REPOSITORY"); v != "" {
		if owner, repo, ok := strings.Cut(v, "/"); ok {
			out.Publish.Owner, out.Publish.Repo = owner, repo
		}
	}
	if v := getenv("GITHUB_SHA"); v != "" {
		out.Publish.CommitSHA = v
	}
	if out.Publish.Token != "" && out.Publish.Owner != "" && out.Publish.Repo != "" {
		out.Publish.Enabled = true
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks struct tags, the timezone and the table selection against
// the registry the configuration builds.
func Validate(c AppConfig) error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid config: timezone %q: %w", c.Timezone, err)
	}
	reg := c.Registry()
	seen := map[string]string{}
	for _, group := range []struct {
		name   string
		tables []string
	}{{"common", c.Tables.Common}, {"source", c.Tables.Source}} {
		if len(group.tables) == 0 {
			return fmt.Errorf("invalid config: tables.%s is empty", group.name)
		}
		if missing, ok := reg.Has(group.tables...); !ok {
			return fmt.Errorf("invalid config: tables.%s: unknown table %q", group.name, missing)
		}
		for _, t := range group.tables {
			if prev, dup := seen[t]; dup {
				return fmt.Errorf("invalid config: table %q listed in tables.%s and tables.%s", t, prev, group.name)
			}
			seen[t] = group.name
		}
	}
	return nil
}
