package cmd

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalnine/tagteam/internal/config"
	"github.com/signalnine/tagteam/internal/runner"
)

func newEvaluateCmd() *cobra.Command {
	var (
		tf      taskFlags
		sf      sandboxFlags
		seed    uint64
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "evaluate [agent-output...]",
		Short: "Assemble, test and score one task",
		Long: `Evaluate one set of agent outputs and print the evaluation as JSON.

With --task the skeleton, tests, outputs and sandbox settings come from the
config file, and sandbox flags given explicitly override it. Otherwise pass --skeleton, --class and --tests, and one file per
agent as arguments.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				in     *runner.Input
				sb     config.Sandbox
				reward config.Reward
				err    error
			)
			if tf.fromConfig() {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				task, err := tf.configTask(cfg)
				if err != nil {
					return err
				}
				if in, err = runner.LoadInput(task); err != nil {
					return err
				}
				sb, reward = cfg.Sandbox, cfg.Reward
				if err := sf.apply(cmd, &sb); err != nil {
					return err
				}
				if seed == 0 {
					seed = cfg.Seed
				}
			} else {
				if in, err = tf.input(args); err != nil {
					return err
				}
				sb = sf.Sandbox
				if err := sb.ApplyDefaults(); err != nil {
					return err
				}
			}
			if timeout > 0 {
				in.Timeout = timeout
			}

			ev := newEvaluator(sb, reward, seed).Evaluate(context.Background(), in)
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ev)
		},
	}
	tf.register(cmd)
	sf.register(cmd)
	cmd.Flags().Uint64Var(&seed, "seed", 0, "tie-break seed (0 picks at random)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "sandbox timeout override")
	return cmd
}
