package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zeusync/finder/internal/config"
	"github.com/zeusync/finder/internal/injector"
	"github.com/zeusync/finder/internal/persistence/episodes"
)

var (
	configPath string
	envFiles   []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "finder",
		Short:        "Finder trains and serves a goal-seeking agent in a walled room.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env", "../../.env"}, "dotenv files, first readable wins")

	rootCmd.AddCommand(serveCmd(), trainCmd(), episodesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath, envFiles...)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose environments to remote trainers over websocket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.ListenAddr = listen
			}

			srv, cleanup, err := injector.InitializeServer(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signalContext()
			defer stop()
			if err := srv.Start(ctx); err != nil {
				return fmt.Errorf("start server: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "listening on ws://%s/env\n", srv.Addr())

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides the config")
	return cmd
}

func trainCmd() *cobra.Command {
	var (
		agents   int
		episodes int
		seed     uint64
		policy   string
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run episodes for several agents concurrently and record them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("agents") {
				cfg.Trainer.Agents = agents
			}
			if flags.Changed("episodes") {
				cfg.Trainer.Episodes = episodes
			}
			if flags.Changed("seed") {
				cfg.Trainer.Seed = seed
			}
			if flags.Changed("policy") {
				cfg.Trainer.Policy = policy
			}

			runner, cleanup, err := injector.InitializeRunner(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signalContext()
			defer stop()
			stats, err := runner.Run(ctx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"run":          runner.RunID(),
				"stats":        stats,
				"success_rate": stats.SuccessRate(),
				"mean_reward":  stats.MeanReward(),
				"events":       runner.Events(),
			})
		},
	}
	cmd.Flags().IntVar(&agents, "agents", 0, "number of concurrent agents")
	cmd.Flags().IntVar(&episodes, "episodes", 0, "episodes per agent")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "base random seed")
	cmd.Flags().StringVar(&policy, "policy", "", "random or greedy")
	return cmd
}

func episodesCmd() *cobra.Command {
	var (
		agentID string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "episodes",
		Short: "List recorded episodes and outcome counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			idx, err := episodes.OpenSQLite(cfg.Persistence.DBPath)
			if err != nil {
				return err
			}
			defer idx.Close()

			ctx := cmd.Context()
			sums, err := idx.Summaries(ctx, agentID, limit)
			if err != nil {
				return err
			}
			counts, err := idx.Outcomes(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, s := range sums {
				fmt.Fprintf(out, "%s  %-10s ep=%-5d steps=%-5d reward=%8.3f  %s\n",
					s.FinishedAt.Format(time.RFC3339), s.AgentID, s.Episode, s.Steps, s.Reward, s.Outcome)
			}
			fmt.Fprintf(out, "goal=%d deathzone=%d timeout=%d\n",
				counts[episodes.OutcomeGoal], counts[episodes.OutcomeDeathzone], counts[episodes.OutcomeTimeout])
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "only this agent")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows, 0 for all")
	return cmd
}
