package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/caffeineduck/scriptexec/dispatch"
	"github.com/caffeineduck/scriptexec/logger"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Run a script once",
		Long: `Validate and execute a script, printing its output or result.

Code can be provided via:
  - File argument: scriptexec run script.star
  - Inline flag: scriptexec run -c 'print(1+1)'
  - Stdin: echo 'print(1+1)' | scriptexec run
  - Remote: scriptexec run --url https://example.com/script.star

With --param the script's custom function is called with the given values
(each parsed as JSON) and its return value is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRun,
	}
	addRunFlags(cmd)
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("code", "c", "", "Code to execute")
	cmd.Flags().StringArrayP("param", "p", nil, "Call custom with this parameter, JSON (repeatable)")
	cmd.Flags().String("url", "", "Fetch the script from this URL")
	addEngineFlags(cmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := configFromFlags(cmd)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.log)
	if err != nil {
		return err
	}
	defer log.Sync()

	rawParams, _ := cmd.Flags().GetStringArray("param")
	url, _ := cmd.Flags().GetString("url")

	sub := dispatch.Submission{URL: url}
	if url == "" {
		sub.Script, err = readScript(cmd, args)
		if errors.Is(err, errNoInput) {
			return cmd.Help()
		}
		if err != nil {
			return err
		}
	}
	for _, raw := range rawParams {
		sub.Parameters = append(sub.Parameters, parseParam(raw))
	}

	r, err := buildRunner(cmd, log)
	if err != nil {
		return err
	}
	defer r.Close()

	d := buildDispatcher(cmd, cfg, r, log)
	out, err := d.Execute(commandContext(cmd), sub)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if text, ok := out.Result.(string); ok && out.Mode == dispatch.ModePlain {
		fmt.Fprint(w, text)
		return nil
	}
	data, err := json.Marshal(out.Result)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}
