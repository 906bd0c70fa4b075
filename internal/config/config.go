// Package config loads an esbulk action configuration from YAML, using
// the parameter names of spec.md §6 ("Configuration parameters").
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/rsyslog/esbulk/pkg/esbulk"
)

// dynamicFieldYAML pairs a static value with its "dyn" flag while a File
// is converted to an esbulk.ActionConfig; the spec's config surface keeps
// the two as sibling top-level keys rather than a nested object, so File
// holds them as separate fields and this type is used only inside
// toActionConfig, never exposed to esbulk.
type dynamicFieldYAML struct {
	Static  string
	Dynamic bool
}

func (d dynamicFieldYAML) toField() esbulk.DynamicField {
	return esbulk.DynamicField{Static: d.Static, Dynamic: d.Dynamic}
}

// TLS mirrors the tls.* configuration keys of spec.md §6.
type TLS struct {
	CACert     string `yaml:"cacert"`
	ClientCert string `yaml:"mycert"`
	ClientKey  string `yaml:"myprivkey"`
}

// File is the on-disk shape of one action's YAML configuration.
type File struct {
	Server      []string `yaml:"server"`
	ServerPort  int      `yaml:"serverport"`
	UseHTTPS    bool     `yaml:"usehttps"`
	UID         string   `yaml:"uid"`
	PWD         string   `yaml:"pwd"`

	SearchIndex    string `yaml:"searchindex"`
	DynSearchIndex bool   `yaml:"dynsearchindex"`
	SearchType     string `yaml:"searchtype"`
	DynSearchType  bool   `yaml:"dynsearchtype"`
	PipelineName   string `yaml:"pipelinename"`
	DynPipelineName bool  `yaml:"dynpipelinename"`
	SkipPipelineIfEmpty bool `yaml:"skippipelineifempty"`
	Parent         string `yaml:"parent"`
	DynParent      bool   `yaml:"dynparent"`
	BulkID         string `yaml:"bulkid"`
	DynBulkID      bool   `yaml:"dynbulkid"`

	WriteOperation string `yaml:"writeoperation"`

	BulkMode bool `yaml:"bulkmode"`
	MaxBytes int  `yaml:"maxbytes"`

	HealthCheckTimeoutMS int `yaml:"healthchecktimeout"`
	IndexTimeoutMS       int `yaml:"indextimeout"`
	RebindInterval       int `yaml:"rebindinterval"`

	AllowUnsignedCerts bool `yaml:"allowunsignedcerts"`
	SkipVerifyHost     bool `yaml:"skipverifyhost"`
	TLS                TLS  `yaml:"tls"`

	ErrorFile     string `yaml:"errorfile"`
	ErrorOnly     bool   `yaml:"erroronly"`
	Interleaved   bool   `yaml:"interleaved"`
	RetryFailures bool   `yaml:"retryfailures"`
	RetryRuleset  string `yaml:"retryruleset"`

	RateLimitIntervalSec int `yaml:"ratelimit.interval"`
	RateLimitBurst       int `yaml:"ratelimit.burst"`

	ESVersionMajor int `yaml:"esversion.major"`

	// AsyncRepl is accepted for backward compatibility but ignored
	// (spec.md §6).
	AsyncRepl bool `yaml:"asyncrepl"`
}

// Load reads and parses one action configuration file, applying the
// same defaulting and validation esbulk.NewAction performs, and
// returns a ready-to-use ActionConfig. The RetryRuleset collaborator is
// not wired here since it is an external, host-supplied registry
// (spec.md §1); callers that enable retryfailures should set
// ActionConfig.Retry themselves before the action is put into service.
// With retryfailures set, NewAction builds a default token-bucket
// RateLimiter from ratelimit.interval/ratelimit.burst.
func Load(path string) (*esbulk.ActionConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	cfg, err := toActionConfig(&f)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return esbulk.NewAction(cfg)
}

func toActionConfig(f *File) (*esbulk.ActionConfig, error) {
	writeOp, err := parseWriteOperation(f.WriteOperation)
	if err != nil {
		return nil, err
	}

	cfg := &esbulk.ActionConfig{
		Servers:     f.Server,
		DefaultPort: f.ServerPort,
		UseHTTPS:    f.UseHTTPS,

		Username: f.UID,
		Password: f.PWD,

		Index:    dynamicFieldYAML{f.SearchIndex, f.DynSearchIndex}.toField(),
		Type:     dynamicFieldYAML{f.SearchType, f.DynSearchType}.toField(),
		Pipeline: dynamicFieldYAML{f.PipelineName, f.DynPipelineName}.toField(),
		Parent:   dynamicFieldYAML{f.Parent, f.DynParent}.toField(),
		BulkID:   dynamicFieldYAML{f.BulkID, f.DynBulkID}.toField(),

		SkipPipelineIfEmpty: f.SkipPipelineIfEmpty,

		WriteOperation: writeOp,

		BulkMode: f.BulkMode,
		MaxBytes: f.MaxBytes,

		HealthCheckTimeout: time.Duration(f.HealthCheckTimeoutMS) * time.Millisecond,
		IndexTimeout:       time.Duration(f.IndexTimeoutMS) * time.Millisecond,
		RebindInterval:     f.RebindInterval,

		TLS: esbulk.TLSConfig{
			CACert:             f.TLS.CACert,
			ClientCert:         f.TLS.ClientCert,
			ClientKey:          f.TLS.ClientKey,
			AllowUnsignedCerts: f.AllowUnsignedCerts,
			SkipVerifyHost:     f.SkipVerifyHost,
		},

		ErrorFile: f.ErrorFile,
		ErrorMode: esbulk.ErrorMode{
			ErrorOnly:   f.ErrorOnly,
			Interleaved: f.Interleaved,
		},
		RetryFailures:    f.RetryFailures,
		RetryRulesetName: f.RetryRuleset,

		RateLimitInterval: time.Duration(f.RateLimitIntervalSec) * time.Second,
		RateLimitBurst:    f.RateLimitBurst,

		ESVersionMajor: f.ESVersionMajor,
	}

	return cfg, nil
}

func parseWriteOperation(s string) (esbulk.WriteOperation, error) {
	switch s {
	case "", "index":
		return esbulk.WriteIndex, nil
	case "create":
		return esbulk.WriteCreate, nil
	default:
		return 0, fmt.Errorf("unknown writeoperation %q (must be \"index\" or \"create\")", s)
	}
}
