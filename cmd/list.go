package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("Sandbox: %s (timeout %ds)\n", cfg.Sandbox.Backend, cfg.Sandbox.TimeoutSeconds)
			fmt.Println("\nTasks:")
			for _, t := range cfg.Tasks {
				mode := "self-selection"
				if len(t.Assignment) > 0 {
					mode = "assigned"
				}
				fmt.Printf("  - %s: %s in %s, %d agents, %s [%s]\n",
					t.ID, t.ClassName, filepath.Base(t.Skeleton), len(t.Outputs), mode, t.Category)
			}
			return nil
		},
	}
}
