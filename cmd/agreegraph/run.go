package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aadityasp/agreegraph/config"
	"github.com/aadityasp/agreegraph/internal/cache"
	"github.com/aadityasp/agreegraph/internal/pipeline"
	"github.com/aadityasp/agreegraph/internal/telemetry"
	"github.com/aadityasp/agreegraph/repository"
)

func runCMD() *cobra.Command {
	var cfgPath string
	var sessionID string
	var run = &cobra.Command{
		Use:   "run [text]",
		Short: "Run the pipeline once over the given text and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			repo, err := repository.NewGraphRepository(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			c := cache.New(cfg.Cache, nil)
			recorder := telemetry.NewRecorder(cfg.Telemetry, cfg.General.LogFormat, os.Stderr)

			orch, err := pipeline.NewOrchestrator(cfg, c, repo, recorder, nil, nil)
			if err != nil {
				return err
			}

			state, err := orch.Run(context.Background(), sessionID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	run.Flags().StringVar(&sessionID, "session", "", "session id to reuse")
	run.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return run
}
