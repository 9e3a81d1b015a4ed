package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion script for apy. Resource names are completed
from the configured schema file.

Bash:

  $ source <(apy completion bash)

Zsh:

  $ apy completion zsh > "${fpath[1]}/_apy"

Fish:

  $ apy completion fish | source

PowerShell:

  PS> apy completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		// scripts are generated without configuration
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			out := cmd.OutOrStdout()

			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(out, true)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			default:
				return root.GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}

// completeResources completes the first argument with resource names.
// Completion runs without the persistent pre-run, so configuration is
// loaded here.
func completeResources(a *app) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		if a.cfg == nil {
			if err := a.setup(cmd); err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
		}
		reg, err := a.schemas()
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}

		var out []cobra.Completion
		for _, name := range reg.Names() {
			if !strings.HasPrefix(name, toComplete) {
				continue
			}
			desc := ""
			if res, err := reg.Get(name); err == nil {
				desc = fmt.Sprintf("%d fields", len(res.Fields))
			}
			out = append(out, cobra.CompletionWithDesc(name, desc))
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	}
}
