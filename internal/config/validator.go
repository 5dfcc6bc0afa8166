package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/withObsrvr/asset-graph-indexer/internal/logging"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
)

// ValidationError represents a configuration validation error with helpful information
type ValidationError struct {
	Field       string
	Value       interface{}
	Problem     string
	Suggestion  string
	ValidValues []string
}

func (e ValidationError) Error() string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "%s: %v: %s", e.Field, e.Value, e.Problem)
	if e.Suggestion != "" {
		fmt.Fprintf(&msg, " (did you mean %q?)", e.Suggestion)
	}
	if len(e.ValidValues) > 0 {
		fmt.Fprintf(&msg, " (valid: %s)", strings.Join(e.ValidValues, ", "))
	}
	return msg.String()
}

// ValidationResult holds multiple validation errors
type ValidationResult struct {
	Errors   []error
	Warnings []string
}

func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

func (r *ValidationResult) AddError(err error) {
	r.Errors = append(r.Errors, err)
}

func (r *ValidationResult) AddWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Err joins every error into one, or returns nil.
func (r *ValidationResult) Err() error {
	if !r.HasErrors() {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, err := range r.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
}

// Registry lists the component types the binary can build.
type Registry struct {
	Sources    []string
	Processors []string
	Consumers  []string
}

var storeTypes = []string{"memory", "leveldb", "sqlite", "postgres"}

// Validate checks cfg against the known component types.
func Validate(cfg *Config, reg Registry) *ValidationResult {
	result := &ValidationResult{}
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		result.AddError(ValidationError{Field: "logging.level", Value: cfg.Logging.Level, Problem: "unknown level",
			ValidValues: []string{"debug", "info", "warn", "error"}})
	}
	if f := strings.ToLower(cfg.Logging.Format); f != "" && f != "json" && f != "console" {
		result.AddError(ValidationError{Field: "logging.format", Value: cfg.Logging.Format, Problem: "unknown format",
			ValidValues: []string{"json", "console"}})
	}
	if len(cfg.Pipelines) == 0 {
		result.AddError(fmt.Errorf("no pipelines defined"))
		return result
	}

	names := make([]string, 0, len(cfg.Pipelines))
	for name := range cfg.Pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		validatePipeline(name, cfg.Pipelines[name], reg, result)
	}
	return result
}

func validatePipeline(name string, p PipelineConfig, reg Registry, result *ValidationResult) {
	prefix := "pipelines." + name
	checkType(prefix+".source.type", p.Source.Type, reg.Sources, result)
	for i, proc := range p.Processors {
		checkType(fmt.Sprintf("%s.processors[%d].type", prefix, i), proc.Type, reg.Processors, result)
	}
	for i, cons := range p.Consumers {
		checkType(fmt.Sprintf("%s.consumers[%d].type", prefix, i), cons.Type, reg.Consumers, result)
	}
	if len(p.Processors) == 0 && len(p.Consumers) == 0 {
		result.AddWarning("%s has no processors or consumers; events will be read and dropped", prefix)
	}

	validateIndexer(prefix+".indexer", p.Indexer, result)
}

func validateIndexer(prefix string, idx IndexerConfig, result *ValidationResult) {
	st := idx.Store
	switch st.Type {
	case "", "memory":
		result.AddWarning("%s.store is in memory; the graph is lost on exit", prefix)
	case "leveldb", "sqlite":
		if st.Path == "" {
			result.AddError(ValidationError{Field: prefix + ".store.path", Value: "", Problem: "required for " + st.Type})
		}
	case "postgres":
		if st.DSN == "" {
			result.AddError(ValidationError{Field: prefix + ".store.dsn", Value: "", Problem: "required for postgres"})
		}
	default:
		result.AddError(ValidationError{Field: prefix + ".store.type", Value: st.Type, Problem: "unsupported store",
			Suggestion: findSimilar(st.Type, storeTypes), ValidValues: storeTypes})
	}

	if idx.Chain.RPCURL == "" {
		result.AddWarning("%s.chain.rpc_url is empty; asset metadata falls back to defaults", prefix)
	}
	if idx.Chain.RequestsPerSecond < 0 {
		result.AddError(ValidationError{Field: prefix + ".chain.requests_per_second", Value: idx.Chain.RequestsPerSecond,
			Problem: "must not be negative"})
	}

	seen := make(map[common.Address]bool, len(idx.DataSources))
	for i, ds := range idx.DataSources {
		field := fmt.Sprintf("%s.data_sources[%d]", prefix, i)
		if !common.IsHexAddress(ds.Address) {
			result.AddError(ValidationError{Field: field + ".address", Value: ds.Address, Problem: "not a hex address"})
			continue
		}
		addr := common.HexToAddress(ds.Address)
		if seen[addr] {
			result.AddError(ValidationError{Field: field + ".address", Value: ds.Address, Problem: "listed twice"})
		}
		seen[addr] = true
		if !event.ContractKind(ds.Kind).IsValid() {
			known := event.KnownKinds()
			result.AddError(ValidationError{Field: field + ".kind", Value: ds.Kind, Problem: "unknown contract kind",
				Suggestion: findSimilar(ds.Kind, known), ValidValues: known})
		}
	}
	if len(idx.DataSources) == 0 {
		result.AddWarning("%s.data_sources is empty; no contract will be watched", prefix)
	}
}

func checkType(field, value string, known []string, result *ValidationResult) {
	if value == "" {
		result.AddError(ValidationError{Field: field, Value: "", Problem: "missing type", ValidValues: known})
		return
	}
	for _, k := range known {
		if k == value {
			return
		}
	}
	result.AddError(ValidationError{Field: field, Value: value, Problem: "unknown type",
		Suggestion: findSimilar(value, known), ValidValues: known})
}

// findSimilar returns the known value sharing the longest prefix with value,
// or one that contains it.
func findSimilar(value string, known []string) string {
	v := strings.ToLower(value)
	if v == "" {
		return ""
	}
	best, bestLen := "", 2
	for _, k := range known {
		if n := commonPrefix(v, strings.ToLower(k)); n > bestLen {
			best, bestLen = k, n
		}
	}
	if best != "" {
		return best
	}
	for _, k := range known {
		kl := strings.ToLower(k)
		if strings.Contains(kl, v) || strings.Contains(v, kl) {
			return k
		}
	}
	return ""
}

func commonPrefix(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
