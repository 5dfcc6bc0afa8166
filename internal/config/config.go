// Package config loads pipeline configuration files.
//
// The file keeps the pipeline layout of the CDP workflow:
//
//	logging: {level: info, format: json}
//	api: {addr: ":8080"}
//	pipelines:
//	  assets:
//	    indexer:
//	      store: {type: leveldb, path: ./data/graph}
//	      chain: {rpc_url: "${RPC_URL}"}
//	      data_sources:
//	        - {address: "0x…", kind: bond_factory, start_block: 1}
//	      checkpoint: {dir: ./checkpoints}
//	    source: {type: FileEventSource, config: {path: events.jsonl.gz}}
//	    processors:
//	      - type: AssetProjection
//	    consumers:
//	      - type: PublishChangesToRedis
//	        config: {redis_address: "localhost:6379"}
//
// ${VAR} and ${VAR:-default} references are expanded from the environment
// before parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/withObsrvr/asset-graph-indexer/consumer"
	"github.com/withObsrvr/asset-graph-indexer/internal/logging"
	"github.com/withObsrvr/asset-graph-indexer/pkg/chain"
	"github.com/withObsrvr/asset-graph-indexer/pkg/manifest"
	"github.com/withObsrvr/asset-graph-indexer/pkg/store"
	"github.com/withObsrvr/asset-graph-indexer/processor"
)

type Config struct {
	Logging   logging.Options           `yaml:"logging"`
	API       APIConfig                 `yaml:"api"`
	Pipelines map[string]PipelineConfig `yaml:"pipelines"`
}

type APIConfig struct {
	Addr string `yaml:"addr"`
	// DefaultLimit and MaxLimit bound list queries.
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

type PipelineConfig struct {
	Name       string                      `yaml:"name"`
	Indexer    IndexerConfig               `yaml:"indexer"`
	Source     SourceConfig                `yaml:"source"`
	Processors []processor.ProcessorConfig `yaml:"processors"`
	Consumers  []consumer.ConsumerConfig   `yaml:"consumers"`
}

type SourceConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}

// IndexerConfig describes the projection engine shared by a pipeline.
type IndexerConfig struct {
	Store       StoreConfig        `yaml:"store"`
	Chain       ChainConfig        `yaml:"chain"`
	Manifests   ManifestConfig     `yaml:"manifests"`
	DataSources []DataSourceConfig `yaml:"data_sources"`
	Checkpoint  CheckpointConfig   `yaml:"checkpoint"`
}

type StoreConfig struct {
	Type  string `yaml:"type"`
	Path  string `yaml:"path"`
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
	Sync  bool   `yaml:"sync"`
}

// Backend returns the store settings.
func (s StoreConfig) Backend() store.Config {
	return store.Config{Type: s.Type, Path: s.Path, DSN: s.DSN, Table: s.Table, Sync: s.Sync}
}

// ChainConfig selects the view-call reader. Without an rpc_url every view
// call returns its default.
type ChainConfig struct {
	RPCURL            string        `yaml:"rpc_url"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
}

func (c ChainConfig) RPC() chain.RPCConfig {
	return chain.RPCConfig{URL: c.RPCURL, RequestsPerSecond: c.RequestsPerSecond, Burst: c.Burst, Timeout: c.Timeout}
}

type ManifestConfig struct {
	IPFSGateway string        `yaml:"ipfs_gateway"`
	S3Region    string        `yaml:"s3_region"`
	S3Endpoint  string        `yaml:"s3_endpoint"`
	Timeout     time.Duration `yaml:"timeout"`
}

func (m ManifestConfig) Router() manifest.Config {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return manifest.Config{IPFSGateway: m.IPFSGateway, S3Region: m.S3Region, S3Endpoint: m.S3Endpoint, Timeout: timeout}
}

type DataSourceConfig struct {
	Address    string `yaml:"address"`
	Kind       string `yaml:"kind"`
	StartBlock uint64 `yaml:"start_block"`
}

type CheckpointConfig struct {
	Dir      string        `yaml:"dir"`
	Interval time.Duration `yaml:"interval"`
}

// Load reads, expands and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse expands and decodes a configuration document without validating
// component types.
func Parse(data []byte) (*Config, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	expanded, err := yaml.Marshal(expandEnvVars(raw))
	if err != nil {
		return nil, fmt.Errorf("re-encoding expanded config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	for name, p := range cfg.Pipelines {
		if p.Name == "" {
			p.Name = name
			cfg.Pipelines[name] = p
		}
	}
	return &cfg, nil
}
