package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/markstur/caikit/pkg/types"
)

// buildRootCmd constructs the Cobra command tree for the caikitctl client.
func buildRootCmd() *cobra.Command {
	defaultServer := "http://localhost:8080"
	if v := os.Getenv("CAIKIT_SERVER"); v != "" {
		defaultServer = v
	}

	var server string
	root := &cobra.Command{
		Use:           "caikitctl",
		Short:         "Client for the caikitd model runtime API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&server, "server", defaultServer, "Base URL of the caikitd server (defaults CAIKIT_SERVER or http://localhost:8080)")

	models := &cobra.Command{Use: "models", Short: "List loaded models", RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(server)
		resp, err := c.listModels()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tBACKEND\tBATCHED\tSIZE\tPATH")
		for _, m := range resp.Models {
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%d\t%s\n", m.ID, m.ModelType, m.Backend, m.Batched, m.SizeBytes, m.Path)
		}
		return w.Flush()
	}}

	var loadPath, loadType, loadBackend string
	load := &cobra.Command{Use: "load <id>", Short: "Load a model from a directory or zip archive", Args: cobra.ExactArgs(1), Example: "  caikitctl load greeter --path ./models/greeter\n  caikitctl load greeter --path ./greeter.zip --backend MOCK", RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(server)
		info, err := c.loadModel(args[0], types.LoadRequest{Path: loadPath, ModelType: loadType, Backend: loadBackend})
		if err != nil {
			return err
		}
		return printJSON(info)
	}}
	load.Flags().StringVar(&loadPath, "path", "", "Path to the model artifact (required)")
	load.Flags().StringVar(&loadType, "type", "", "Declared model type (overrides the manifest)")
	load.Flags().StringVar(&loadBackend, "backend", "", "Backend kind override, e.g. LOCAL or MOCK")
	load.MarkFlagRequired("path")

	var inputJSON string
	predict := &cobra.Command{Use: "predict <id>", Short: "Run inference on a loaded model", Args: cobra.ExactArgs(1), Example: `  caikitctl predict greeter --input '{"name": "world"}'`, RunE: func(cmd *cobra.Command, args []string) error {
		var inputs map[string]any
		if err := json.Unmarshal([]byte(inputJSON), &inputs); err != nil {
			return fmt.Errorf("--input must be a JSON object: %w", err)
		}
		c := newClient(server)
		resp, err := c.predict(args[0], types.PredictRequest{Inputs: inputs})
		if err != nil {
			return err
		}
		return printJSON(resp.Outputs)
	}}
	predict.Flags().StringVar(&inputJSON, "input", "{}", "Inference inputs as a JSON object")

	unload := &cobra.Command{Use: "unload <id>", Short: "Unload a model and release its resources", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(server)
		return c.unloadModel(args[0])
	}}

	statusCmd := &cobra.Command{Use: "status", Short: "Show runtime status", RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(server)
		st, err := c.status()
		if err != nil {
			return err
		}
		return printJSON(st)
	}}

	root.AddCommand(models, load, predict, unload, statusCmd)
	return root
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
