package app

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// hclConfigFile is the layout of the optional server configuration file:
//
//	server  { listen = ":8080"  cors_origins = ["*"] }
//	log     { level = "debug"  format = "text" }
//	engine  { max_steps = 10000  workers = 16  queue = 64 }
//	storage { traces = "sqlite"  sqlite_path = "traces.db"  capacity = 500 }
//	graphs  { path = "./graphs" }
//	agent   { inventory = { cobblestone = 64 } }
type hclConfigFile struct {
	Server  *hclServer  `hcl:"server,block"`
	Log     *hclLog     `hcl:"log,block"`
	Engine  *hclEngine  `hcl:"engine,block"`
	Storage *hclStorage `hcl:"storage,block"`
	Graphs  *hclGraphs  `hcl:"graphs,block"`
	Agent   *hclAgent   `hcl:"agent,block"`
}

type hclServer struct {
	Listen      *string  `hcl:"listen,optional"`
	CORSOrigins []string `hcl:"cors_origins,optional"`
}

type hclLog struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

type hclEngine struct {
	MaxSteps *int `hcl:"max_steps,optional"`
	Workers  *int `hcl:"workers,optional"`
	Queue    *int `hcl:"queue,optional"`
}

type hclStorage struct {
	Traces     *string `hcl:"traces,optional"`
	SQLitePath *string `hcl:"sqlite_path,optional"`
	Capacity   *int    `hcl:"capacity,optional"`
}

type hclGraphs struct {
	Path string `hcl:"path"`
}

type hclAgent struct {
	Inventory map[string]int `hcl:"inventory,optional"`
}

// ApplyFile overlays the settings found in the HCL file at path onto cfg.
// Settings the file leaves out keep their current value.
func ApplyFile(path string, cfg *Config) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}

	var parsed hclConfigFile
	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode config file %s: %w", path, diags)
	}

	if s := parsed.Server; s != nil {
		set(&cfg.Listen, s.Listen)
		if s.CORSOrigins != nil {
			cfg.CORSOrigins = s.CORSOrigins
		}
	}
	if l := parsed.Log; l != nil {
		set(&cfg.LogLevel, l.Level)
		set(&cfg.LogFormat, l.Format)
	}
	if e := parsed.Engine; e != nil {
		set(&cfg.MaxSteps, e.MaxSteps)
		set(&cfg.Workers, e.Workers)
		set(&cfg.Queue, e.Queue)
	}
	if s := parsed.Storage; s != nil {
		set(&cfg.Traces, s.Traces)
		set(&cfg.SQLitePath, s.SQLitePath)
		set(&cfg.TraceCapacity, s.Capacity)
	}
	if g := parsed.Graphs; g != nil {
		cfg.GraphsPath = g.Path
	}
	if a := parsed.Agent; a != nil && a.Inventory != nil {
		cfg.Inventory = a.Inventory
	}
	cfg.ConfigFile = path
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
