package main

import (
	"io"

	"github.com/spf13/cobra"
)

var completionWriters = map[string]func(cmd *cobra.Command, w io.Writer) error{
	"bash": func(cmd *cobra.Command, w io.Writer) error { return cmd.Root().GenBashCompletionV2(w, true) },
	"zsh":  func(cmd *cobra.Command, w io.Writer) error { return cmd.Root().GenZshCompletion(w) },
	"fish": func(cmd *cobra.Command, w io.Writer) error { return cmd.Root().GenFishCompletion(w, true) },
	"powershell": func(cmd *cobra.Command, w io.Writer) error {
		return cmd.Root().GenPowerShellCompletionWithDesc(w)
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion SHELL",
	Short: "Print a shell completion script",
	Long: `Print a completion script for cuse subcommands and flags, such as
"cuse captures export --route" or "cuse decode --mode".

  $ source <(cuse completion bash)
  $ cuse completion zsh > "${fpath[1]}/_cuse"
  $ cuse completion fish | source`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		return completionWriters[args[0]](cmd, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(completionCmd)
}
