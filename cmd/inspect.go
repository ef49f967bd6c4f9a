package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalnine/tagteam/internal/pyast"
	"github.com/signalnine/tagteam/internal/runner"
)

type inspection struct {
	Class       string              `json:"class"`
	Required    []string            `json:"required"`
	Stubs       []string            `json:"stubs"`
	CallGroups  [][]string          `json:"call_groups"`
	TestTargets map[string][]string `json:"test_targets,omitempty"`
	Docstrings  map[string]string   `json:"docstrings,omitempty"`
}

func newInspectCmd() *cobra.Command {
	var tf taskFlags
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show a task's required methods, call groups and test targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				in  *runner.Input
				err error
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
			} else if in, err = tf.input(nil); err != nil {
				return err
			}

			out, err := inspect(context.Background(), in)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	tf.register(cmd)
	return cmd
}

func inspect(ctx context.Context, in *runner.Input) (*inspection, error) {
	skel, err := pyast.Parse(ctx, []byte(in.Skeleton))
	if err != nil {
		return nil, fmt.Errorf("parsing skeleton: %w", err)
	}
	defer skel.Close()
	cls, ok := skel.Class(in.ClassName)
	if !ok {
		return nil, fmt.Errorf("class %s not found in skeleton", in.ClassName)
	}

	out := &inspection{Class: in.ClassName, Stubs: cls.StubMethods(), Docstrings: map[string]string{}}
	out.Required = in.Required
	if len(out.Required) == 0 {
		out.Required = out.Stubs
	}
	out.CallGroups = cls.CallGroups(out.Required)
	for _, name := range out.Required {
		if doc := cls.Docstring(name); doc != "" {
			out.Docstrings[name] = doc
		}
	}

	if in.Tests != "" {
		tests, err := pyast.Parse(ctx, []byte(in.Tests))
		if err != nil {
			return nil, fmt.Errorf("parsing tests: %w", err)
		}
		defer tests.Close()
		out.TestTargets = tests.TestTargets(out.Required)
	}
	return out, nil
}
