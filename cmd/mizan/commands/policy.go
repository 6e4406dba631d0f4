package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wonny/mizan/internal/policy"
)

// policyCmd represents the policy command
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect the decision policy",
	Long: `Show the active policy constants or their hash.

The hash is recorded on every pipeline response so a verdict can be tied
to the exact constants that produced it.

Example:
  go run ./cmd/mizan policy show
  go run ./cmd/mizan policy hash --policy ./policy.yaml`,
}

var (
	policyShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the active policy as YAML",
		RunE:  runPolicyShow,
	}

	policyHashCmd = &cobra.Command{
		Use:   "hash",
		Short: "Print the policy id and SHA256 hash",
		RunE:  runPolicyHash,
	}
)

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyHashCmd)
}

// activePolicy resolves --policy, then POLICY_FILE, then the built-in default
func activePolicy() (policy.Policy, error) {
	cfg, err := loadConfig()
	if err != nil {
		return policy.Policy{}, err
	}
	return policy.LoadOrDefault(cfg.Pipeline.PolicyFile)
}

func runPolicyShow(cmd *cobra.Command, args []string) error {
	p, err := activePolicy()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))

	for _, w := range policy.Warn(p) {
		PrintWarning(cmd.ErrOrStderr(), fmt.Sprintf("%s: %s", w.Code, w.Message))
	}
	return nil
}

func runPolicyHash(cmd *cobra.Command, args []string) error {
	p, err := activePolicy()
	if err != nil {
		return err
	}

	stamp, err := policy.NewStamp(p)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s v%s %s\n", stamp.PolicyID, stamp.Version, stamp.Hash)
	return nil
}
