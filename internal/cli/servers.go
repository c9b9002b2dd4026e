package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vikashloomba/mcp-connection-manager-go/internal/store"
)

func newServersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Manage stored server configs",
		Long: `Manage the server configs kept in the local store. The store is
shared with "mcpconn serve", which holds it open while running.`,
	}
	cmd.AddCommand(newServersListCmd(a))
	cmd.AddCommand(newServersAddCmd(a))
	cmd.AddCommand(newServersRemoveCmd(a))
	cmd.AddCommand(newServersExportCmd(a))
	cmd.AddCommand(newServersImportCmd(a))
	return cmd
}

// withStore opens the store for the duration of fn.
func (a *app) withStore(fn func(*store.Store) error) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func newServersListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored server configs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(st *store.Store) error {
				configs, err := st.List(cmd.Context())
				if err != nil {
					return err
				}
				for i := range configs {
					configs[i] = configs[i].Redacted()
				}
				if asJSON {
					return a.out.PrintJSON(configs)
				}
				if len(configs) == 0 {
					a.out.Muted("No servers stored.")
					return nil
				}
				for _, c := range configs {
					target := c.URL
					if c.IsStdio() {
						target = strings.TrimSpace(c.Command + " " + strings.Join(c.Args, " "))
					}
					active := ""
					if c.IsActive {
						active = " (active)"
					}
					a.out.Print("%-24s %-6s %s%s\n", c.ID, c.Transport, target, active)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newServersAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "add <file>",
		Short:   "Store a server config read from a JSON or YAML file",
		Example: `  mcpconn servers add filesystem.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerFile(args[0])
			if err != nil {
				return err
			}
			return a.withStore(func(st *store.Store) error {
				created, err := st.Create(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				a.out.Success("stored server %s", created.ID)
				return nil
			})
		},
	}
}

func newServersRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored server config",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(st *store.Store) error {
				if err := st.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.out.Success("removed server %s", args[0])
				return nil
			})
		},
	}
}

func newServersExportCmd(a *app) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored server configs",
		Example: `  mcpconn servers export > servers.json
  mcpconn servers export --format yaml --output servers.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := store.ParseFormat(format)
			if err != nil {
				return err
			}
			return a.withStore(func(st *store.Store) error {
				data, err := st.Export(cmd.Context(), f)
				if err != nil {
					return err
				}
				if output == "" {
					_, err = a.out.Out.Write(data)
					return err
				}
				return os.WriteFile(output, data, 0o600)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format (json|yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}

func newServersImportCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import server configs",
		Long: `Import configs from an export document. Entries that fail validation are
skipped and reported. The format defaults to the file extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
				if format == "" {
					format = strings.TrimPrefix(filepath.Ext(args[0]), ".")
				}
			}
			if err != nil {
				return err
			}
			f, err := store.ParseFormat(format)
			if err != nil {
				return err
			}
			return a.withStore(func(st *store.Store) error {
				res, err := st.Import(cmd.Context(), data, f)
				if err != nil {
					return err
				}
				a.out.Success("imported %d server(s), skipped %d", res.Imported, res.Skipped)
				for _, msg := range res.Errors {
					a.out.Muted("  %s", msg)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "input format (json|yaml)")
	return cmd
}
