package config

import (
	"path/filepath"
	"slices"

	"github.com/theoremus-urban-solutions/gtfs-regional-merge/schema"
)

// Schema variants.
const (
	SchemaReference = "reference"
	SchemaBasic     = "basic"
)

// PathsConfig locates inputs and outputs. Relative paths resolve against
// Workspace.
type PathsConfig struct {
	Workspace   string `yaml:"workspace"`
	CommonDir   string `yaml:"common_dir" validate:"required"`
	OutputDir   string `yaml:"output_dir" validate:"required"`
	TempDir     string `yaml:"temp_dir"`
	ArchiveName string `yaml:"archive_name" validate:"required,excludesall=/\\"`
}

// TablesConfig selects which tables come from the common directory and which
// from every source feed.
type TablesConfig struct {
	Common []string `yaml:"common" validate:"dive,required"`
	Source []string `yaml:"source" validate:"dive,required"`
}

// ValidationConfig toggles optional column rules.
type ValidationConfig struct {
	RouteShortName bool `yaml:"route_short_name"`
}

// PublishConfig points at the repository file the archive is committed to.
type PublishConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Owner          string `yaml:"owner" validate:"required_if=Enabled true"`
	Repo           string `yaml:"repo" validate:"required_if=Enabled true"`
	Path           string `yaml:"path" validate:"required_if=Enabled true"`
	Branch         string `yaml:"branch"`
	CommitSHA      string `yaml:"commit_sha"`
	Token          string `yaml:"token"`
	DefaultMessage string `yaml:"default_message"`
	// LocalDest receives a copy of the archive on dry runs.
	LocalDest string `yaml:"local_dest"`
}

// MetricsConfig enables Pushgateway metrics when PushgatewayURL is set.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" validate:"omitempty,url"`
	Job            string `yaml:"job"`
}

// SQLiteConfig enables the SQLite mirror when Path is set.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Paths      PathsConfig      `yaml:"paths" validate:"required"`
	Sources    []string         `yaml:"sources" validate:"min=1,dive,required"`
	Tables     TablesConfig     `yaml:"tables"`
	Schema     string           `yaml:"schema" validate:"oneof=reference basic"`
	AgencyID   string           `yaml:"agency_id" validate:"required"`
	Timezone   string           `yaml:"timezone" validate:"required"`
	Validation ValidationConfig `yaml:"validation"`
	Publish    PublishConfig    `yaml:"publish"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
}

// Default returns the configuration of the regional merge action.
func Default() AppConfig {
	return AppConfig{
		Paths: PathsConfig{
			Workspace:   ".",
			CommonDir:   "common",
			OutputDir:   "output",
			ArchiveName: "regional-merge.zip",
		},
		Tables: TablesConfig{
			Common: append([]string(nil), schema.CommonTables...),
			Source: append([]string(nil), schema.SourceTables...),
		},
		Schema:   SchemaReference,
		AgencyID: schema.DefaultAgencyID,
		Timezone: "Europe/Lisbon",
		Publish: PublishConfig{
			Path:           "CarrisMetropolitana.zip",
			DefaultMessage: "Atualização Automática",
		},
		Metrics: MetricsConfig{Job: "gtfs_merge"},
	}
}

// Resolve makes p absolute-or-workspace-relative.
func (c AppConfig) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Paths.Workspace, p)
}

// RegistryOptions maps the configuration onto schema options.
func (c AppConfig) RegistryOptions() schema.Options {
	return schema.Options{AgencyID: c.AgencyID, RouteShortNameCheck: c.Validation.RouteShortName}
}

// Registry builds the table registry this configuration selects.
func (c AppConfig) Registry() *schema.Registry {
	if c.Schema == SchemaBasic {
		return schema.Basic()
	}
	return schema.NewRegistry(c.RegistryOptions())
}

// fitDefaultTables drops tables the selected registry does not declare from
// untouched default lists, so schema: basic works without a tables section.
func (c AppConfig) fitDefaultTables() AppConfig {
	def := Default().Tables
	if !slices.Equal(c.Tables.Common, def.Common) || !slices.Equal(c.Tables.Source, def.Source) {
		return c
	}
	reg := c.Registry()
	keep := func(names []string) []string {
		var out []string
		for _, n := range names {
			if _, ok := reg.Lookup(n); ok {
				out = append(out, n)
			}
		}
		return out
	}
	c.Tables = TablesConfig{Common: keep(def.Common), Source: keep(def.Source)}
	return c
}
