package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/withObsrvr/asset-graph-indexer/internal/cli/runner"
	"github.com/withObsrvr/asset-graph-indexer/internal/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

// validateCmd validates a configuration file
var validateCmd = &cobra.Command{
	Use:   "validate [config file]",
	Short: "Validate a configuration file",
	Long:  `Validate a pipeline configuration file and report any errors or warnings.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRunner(args[0], runner.Options{})
		if err != nil {
			return err
		}
		if err := validate(r); err != nil {
			return err
		}
		color.Green("✅ Configuration is valid!")
		return nil
	},
}

// explainCmd explains what a configuration does
var explainCmd = &cobra.Command{
	Use:   "explain [config file]",
	Short: "Explain what a configuration does",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(args[0])
		if err != nil {
			return err
		}
		explain(cfg)
		return nil
	},
}

func init() {
	configCmd.AddCommand(explainCmd)
	configCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(&cobra.Command{
		Use:   validateCmd.Use,
		Short: validateCmd.Short,
		Args:  validateCmd.Args,
		RunE:  validateCmd.RunE,
	})
}

func validate(r *runner.Runner) error {
	warnings, err := r.Validate()
	if err != nil {
		color.Red("❌ Configuration has errors:")
		fmt.Fprintln(os.Stderr, err)
		return fmt.Errorf("configuration validation failed")
	}
	if len(warnings) > 0 {
		color.Yellow("⚠️  Configuration has warnings:")
		for _, w := range warnings {
			fmt.Printf("  • %s\n", w)
		}
	}
	return nil
}

func explain(cfg *config.Config) {
	title := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgGreen)

	names := make([]string, 0, len(cfg.Pipelines))
	for name := range cfg.Pipelines {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := cfg.Pipelines[name]
		title.Printf("Pipeline %s\n", name)

		storeType := p.Indexer.Store.Type
		if storeType == "" {
			storeType = "memory"
		}
		label.Print("  Store:        ")
		fmt.Println(storeType)
		label.Print("  View calls:   ")
		if p.Indexer.Chain.RPCURL != "" {
			fmt.Println(p.Indexer.Chain.RPCURL)
		} else {
			fmt.Println("disabled, defaults only")
		}
		label.Print("  Source:       ")
		fmt.Println(p.Source.Type)
		for _, proc := range p.Processors {
			label.Print("  Processor:    ")
			fmt.Println(proc.Type)
		}
		for _, cons := range p.Consumers {
			label.Print("  Consumer:     ")
			fmt.Println(cons.Type)
		}
		for _, ds := range p.Indexer.DataSources {
			label.Print("  Data source:  ")
			fmt.Printf("%s %s from block %d\n", ds.Kind, ds.Address, ds.StartBlock)
		}
		if p.Indexer.Checkpoint.Dir != "" {
			label.Print("  Checkpoints:  ")
			fmt.Println(p.Indexer.Checkpoint.Dir)
		}
		fmt.Println()
	}
}
