// Command import_books loads books and members from a YAML manifest:
//
//	books:
//	  - {title: "1984", author: George Orwell, isbn: "9780451524935"}
//	members:
//	  - {name: Per, email: per@test.no, member_number: P01}
//
// Entries already in the catalog are skipped, invalid entries are reported,
// and the run continues. A storage failure aborts the import.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"library-catalog/config"
	"library-catalog/forms"
	"library-catalog/library"
	"library-catalog/logger"
)

type manifest struct {
	Books   []forms.BookInput   `yaml:"books"`
	Members []forms.MemberInput `yaml:"members"`
}

type summary struct {
	Added, Skipped, Invalid int
}

func (s summary) String() string {
	return fmt.Sprintf("%d added, %d skipped, %d invalid", s.Added, s.Skipped, s.Invalid)
}

func main() {
	var (
		flagConfig string
		flagDB     string
		flagFresh  bool
	)
	cmd := &cobra.Command{
		Use:           "import_books <manifest.yml>",
		Short:         "Import books and members from a YAML manifest",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return errors.Wrap(err, "loading config")
			}
			if flagDB != "" {
				cfg.Database.Path = flagDB
			}
			cfg.Database.Path = config.ExpandHome(cfg.Database.Path)

			log, err := logger.New(cfg.Log, "import")
			if err != nil {
				return errors.Wrap(err, "building logger")
			}
			defer func() { _ = log.Sync() }()

			lifetime, err := library.ParseLifetime(cfg.Database.Lifetime)
			if err != nil {
				return err
			}
			_, err = runImport(cmd.Context(), cmd.OutOrStdout(), log, importRun{
				Manifest: args[0],
				Fresh:    flagFresh,
				Options: library.Options{
					Path:        cfg.Database.Path,
					Lifetime:    lifetime,
					BusyTimeout: cfg.Database.BusyTimeout,
				},
			})
			return err
		},
	}
	cmd.Flags().StringVar(&flagConfig, "config", "", "Config file path (default: $LIBRARY_CONFIG)")
	cmd.Flags().StringVar(&flagDB, "db", "", "Database file (overrides config)")
	cmd.Flags().BoolVar(&flagFresh, "fresh", false, "Delete the database file before importing")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

type importRun struct {
	Manifest string
	Fresh    bool
	Options  library.Options
}

// runImport decodes the whole manifest before Fresh removes the database.
func runImport(ctx context.Context, w io.Writer, log *zap.Logger, run importRun) (summary, error) {
	f, err := os.Open(run.Manifest)
	if err != nil {
		return summary{}, err
	}
	m, err := loadManifest(f)
	f.Close()
	if err != nil {
		return summary{}, errors.Wrapf(err, "reading %s", run.Manifest)
	}

	if run.Fresh {
		removeDatabase(w, run.Options.Path)
	}

	mgr, err := library.Open(ctx, run.Options, log)
	if err != nil {
		return summary{}, errors.Wrap(err, "opening catalog")
	}
	defer mgr.Close()

	sum, err := importManifest(ctx, w, mgr, m)
	fmt.Fprintf(w, "\nImport complete: %s\n", sum)
	log.Info("import finished",
		zap.String("manifest", run.Manifest),
		zap.Int("added", sum.Added),
		zap.Int("skipped", sum.Skipped),
		zap.Int("invalid", sum.Invalid))
	return sum, err
}

// loadManifest decodes a manifest, rejecting unknown keys. Empty input is an
// empty manifest.
func loadManifest(r io.Reader) (*manifest, error) {
	var m manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &m, nil
}

func importManifest(ctx context.Context, w io.Writer, mgr *library.LibraryManager, m *manifest) (summary, error) {
	var sum summary
	for i, b := range m.Books {
		b.Normalize()
		if err := forms.Validate(b); err != nil {
			fmt.Fprintf(w, "%s book #%d: %v\n", color.YellowString("INVALID"), i+1, err)
			sum.Invalid++
			continue
		}
		bookID, err := mgr.RegisterBook(ctx, b.Title, b.Author, b.ISBN)
		switch {
		case library.IsIntegrityViolation(err):
			fmt.Fprintf(w, "%s %s: ISBN %s already registered\n", color.YellowString("SKIP"), b.Title, b.ISBN)
			sum.Skipped++
		case err != nil:
			return sum, errors.Wrapf(err, "importing %q", b.Title)
		default:
			fmt.Fprintf(w, "%s %s by %s (ID: %d)\n", color.GreenString("OK"), b.Title, b.Author, bookID)
			sum.Added++
		}
	}
	for i, mb := range m.Members {
		mb.Normalize()
		if err := forms.Validate(mb); err != nil {
			fmt.Fprintf(w, "%s member #%d: %v\n", color.YellowString("INVALID"), i+1, err)
			sum.Invalid++
			continue
		}
		memberID, err := mgr.RegisterMember(ctx, mb.Name, mb.Email, mb.MemberNumber)
		switch {
		case library.IsIntegrityViolation(err):
			fmt.Fprintf(w, "%s %s: member number %s already in use\n", color.YellowString("SKIP"), mb.Name, mb.MemberNumber)
			sum.Skipped++
		case err != nil:
			return sum, errors.Wrapf(err, "importing member %q", mb.Name)
		default:
			fmt.Fprintf(w, "%s %s <%s> %s (ID: %d)\n", color.GreenString("OK"), mb.Name, mb.Email, mb.MemberNumber, memberID)
			sum.Added++
		}
	}
	return sum, nil
}

func removeDatabase(w io.Writer, path string) {
	if path == library.MemoryPath {
		return
	}
	for _, file := range []string{path, path + "-shm", path + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(w, "Warning: could not remove %s: %v\n", file, err)
		}
	}
}
