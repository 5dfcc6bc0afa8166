package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/withObsrvr/asset-graph-indexer/internal/cli/runner"
)

var serveCmd = &cobra.Command{
	Use:   "serve [config file]",
	Short: "Serve the read API over an existing store",
	Long:  "Open the store of one pipeline and serve it over HTTP without indexing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRunner(args[0], runner.Options{HTTPAddr: viper.GetString("addr")})
		if err != nil {
			return err
		}
		fmt.Println(color.GreenString("🌐 Serving graph from %s", args[0]))
		ctx, cancel := signalContext()
		defer cancel()
		return r.Serve(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: api.addr or :8080)")
	viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	rootCmd.AddCommand(serveCmd)
}
