package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"library-catalog/config"
	"library-catalog/library"
	"library-catalog/logger"
)

var (
	cfg *config.Config
	log *zap.Logger
	mgr *library.LibraryManager

	flagConfig  string
	flagDB      string
	flagNoColor bool
)

var rootCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage a small library catalog of books, members and loans",
	Long: `library keeps books, members and loans in a local SQLite file.

Run 'library' with no arguments to start the interactive menu, or use one
of the subcommands for scripted use.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interactive := term.IsTerminal(int(os.Stdin.Fd()))
		newSession(cmd.InOrStdin(), cmd.OutOrStdout(), mgr, interactive).run(cmd.Context())
		return nil
	},
}

func main() {
	Execute()
}

// Execute runs the root command and exits 1 on failure.
func Execute() {
	err := rootCmd.Execute()
	shutdown()
	if err != nil {
		if !errors.Is(err, errRefused) {
			fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: $LIBRARY_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Database file, or :memory: (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if flagNoColor {
			color.NoColor = true
		}

		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return errors.Wrap(err, "loading config")
		}
		if flagDB != "" {
			cfg.Database.Path = flagDB
		}
		cfg.Database.Path = config.ExpandHome(cfg.Database.Path)

		log, err = logger.New(cfg.Log, "library")
		if err != nil {
			return errors.Wrap(err, "building logger")
		}

		if !needsCatalog(cmd) {
			return nil
		}

		lifetime, err := library.ParseLifetime(cfg.Database.Lifetime)
		if err != nil {
			return err
		}
		mgr, err = library.Open(cmd.Context(), library.Options{
			Path:        cfg.Database.Path,
			Lifetime:    lifetime,
			BusyTimeout: cfg.Database.BusyTimeout,
		}, log)
		if err != nil {
			return errors.Wrap(err, "opening catalog")
		}
		return nil
	}

	rootCmd.AddCommand(
		newAddBookCmd(),
		newAddMemberCmd(),
		newSearchBooksCmd(),
		newSearchMembersCmd(),
		newLendCmd(),
		newReturnCmd(),
		newLoansCmd(),
		newStatsCmd(),
		newConfigCmd(),
	)
}

// needsCatalog reports whether cmd reads or writes the catalog. config, help
// and shell completion must not create a database file.
func needsCatalog(cmd *cobra.Command) bool {
	for c := cmd; c != nil && c.HasParent(); c = c.Parent() {
		switch c.Name() {
		case "config", "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

func shutdown() {
	if mgr != nil {
		if err := mgr.Close(); err != nil && log != nil {
			log.Warn("closing catalog", zap.Error(err))
		}
	}
	if log != nil {
		_ = log.Sync()
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
