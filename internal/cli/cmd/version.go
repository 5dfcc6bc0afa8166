package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/withObsrvr/asset-graph-indexer/pkg/checkpoint"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/projection"
	"github.com/withObsrvr/asset-graph-indexer/pkg/store"
)

// Version information injected via main package
var (
	Version   string
	GitCommit string
	BuildDate string
)

type buildInfo struct {
	Version          string   `json:"version"`
	GitCommit        string   `json:"git_commit"`
	BuildDate        string   `json:"build_date"`
	GoVersion        string   `json:"go_version"`
	Platform         string   `json:"platform"`
	CheckpointFormat string   `json:"checkpoint_format"`
	StoreBackends    []string `json:"store_backends"`
	AssetTypes       []string `json:"asset_types"`
	ContractKinds    []string `json:"contract_kinds"`
}

func currentBuild() buildInfo {
	info := buildInfo{
		Version:          orDefault(Version, "dev"),
		GitCommit:        orDefault(GitCommit, "unknown"),
		BuildDate:        orDefault(BuildDate, "unknown"),
		GoVersion:        runtime.Version(),
		Platform:         runtime.GOOS + "/" + runtime.GOARCH,
		CheckpointFormat: checkpoint.CheckpointVersion,
		StoreBackends:    store.Backends,
		ContractKinds:    event.KnownKinds(),
	}
	for _, k := range projection.AssetKinds {
		info.AssetTypes = append(info.AssetTypes, string(k.Type))
	}
	return info
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Long:  "Display the graphctl build along with the store backends, checkpoint format and contract kinds it supports",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return writeVersion(cmd.OutOrStdout(), currentBuild(), asJSON)
	},
}

func init() {
	versionCmd.Flags().Bool("json", false, "print build information as JSON")
	rootCmd.AddCommand(versionCmd)
}

func writeVersion(w io.Writer, info buildInfo, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	title := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgGreen)

	title.Fprintf(w, "graphctl %s\n\n", info.Version)
	rows := []struct{ name, value string }{
		{"Git commit:", info.GitCommit},
		{"Built:", info.BuildDate},
		{"Go version:", info.GoVersion},
		{"OS/Arch:", info.Platform},
		{"Checkpoints:", "format " + info.CheckpointFormat},
		{"Stores:", strings.Join(info.StoreBackends, ", ")},
		{"Assets:", strings.Join(info.AssetTypes, ", ")},
		{"Contracts:", fmt.Sprintf("%d kinds", len(info.ContractKinds))},
	}
	for _, r := range rows {
		label.Fprintf(w, "%-13s", r.name)
		fmt.Fprintln(w, r.value)
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// SetVersionInfo sets the version information from the main package
func SetVersionInfo(version, gitCommit, buildDate string) {
	Version = version
	GitCommit = gitCommit
	BuildDate = buildDate
}
