package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/edelkas/cuse/pkg/cli"
	"github.com/edelkas/cuse/pkg/config"
	"github.com/edelkas/cuse/pkg/patcher"
)

var patchFlags struct {
	library string
	local   string
}

var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Point the client library at the local proxy",
	Long: `Replace the server address compiled into the client library with the
proxy address. "cuse run" does this on startup; use this command to patch
by hand, for example when the proxy runs elsewhere.

Examples:
  cuse patch
  cuse patch --local 127.0.0.1:8130 --library ~/games/N++/lib64/libnpp.so`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, local, err := newPatcher()
		if err != nil {
			return err
		}
		n, err := p.Patch(local)
		if err != nil {
			return cli.NewCommandError("patch", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Patched %s (%d occurrences)\n", p.Path(), n)
		return nil
	},
}

var unpatchCmd = &cobra.Command{
	Use:   "unpatch",
	Short: "Restore the original server address in the client library",
	Long: `Undo "cuse patch". Use this if the proxy did not exit cleanly and the
game can no longer reach its server. The local address must match the one
the library was patched with.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, local, err := newPatcher()
		if err != nil {
			return err
		}
		n, err := p.Unpatch(local)
		if err != nil {
			return cli.NewCommandError("unpatch", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %s (%d occurrences)\n", p.Path(), n)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the client library is patched",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, local, err := newPatcher()
		if err != nil {
			return err
		}
		state, err := p.Status(local)
		if err != nil {
			return cli.NewCommandError("status", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Library: %s\n", p.Path())
		fmt.Fprintf(out, "Original address: %d\n", state.Original)
		fmt.Fprintf(out, "Local address (%s): %d\n", local, state.Patched)
		if state.IsPatched() {
			fmt.Fprintln(out, "Status: patched")
		} else {
			fmt.Fprintln(out, "Status: not patched")
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{patchCmd, unpatchCmd, statusCmd} {
		c.Flags().StringVar(&patchFlags.library, "library", "", "client library path (default: Steam install)")
		c.Flags().StringVar(&patchFlags.local, "local", "", "proxy address written into the library (default: proxy.listen_address)")
		rootCmd.AddCommand(c)
	}
}

func newPatcher() (*patcher.Patcher, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	if patchFlags.library != "" {
		cfg.Patcher.LibraryPath = patchFlags.library
	}
	local := cfg.Proxy.ListenAddress
	if patchFlags.local != "" {
		local = patchFlags.local
	}

	path, err := libraryPath(cfg.Patcher)
	if err != nil {
		return nil, "", err
	}
	logger := commandLogger(cfg, rootCmd.ErrOrStderr())
	return patcher.New(path, cfg.Patcher.TargetAddress, patcher.WithLogger(logger)), local, nil
}

func libraryPath(cfg config.PatcherConfig) (string, error) {
	if cfg.LibraryPath != "" {
		return cfg.LibraryPath, nil
	}
	path, err := patcher.DefaultLibraryPath()
	if err != nil {
		return "", cli.NewConfigError("patcher.library_path", err.Error())
	}
	return path, nil
}

// clientAddress is the address the game should dial to reach a listener
// bound at addr. Wildcard hosts are replaced by the loopback address.
func clientAddress(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return addr.String()
	}
	ip := tcp.IP
	if ip == nil || ip.IsUnspecified() {
		ip = net.IPv4(127, 0, 0, 1)
	}
	return net.JoinHostPort(ip.String(), fmt.Sprint(tcp.Port))
}
