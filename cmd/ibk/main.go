package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ibk-go/internal/app"
	"ibk-go/internal/config"
	"ibk-go/internal/hasher"
)

// Exit codes.
const (
	exitClean    = 0
	exitFailure  = 1
	exitFindings = 2
)

// exitError carries the process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and maps the outcome to an exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitClean
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "ibk: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "ibk: %v\n", err)
	return exitFailure
}

// loadConfig reads the config file, falling back to defaults when it does not exist.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.Load(defaults["config_path"], defaults["base_dir"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp creates an App from cfg. The caller must defer app.Close().
func newApp(cmd *cobra.Command, cfg *config.Config) (*app.App, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.New(cfg, app.Options{Verbose: verbose, Stderr: cmd.ErrOrStderr()})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// passphrase reads IBK_PASSPHRASE or prompts on the terminal.
func passphrase(cmd *cobra.Command) app.PassphraseFunc {
	return func() (string, error) {
		if p, ok := os.LookupEnv("IBK_PASSPHRASE"); ok {
			return p, nil
		}
		return prompt(cmd, "Passphrase: ")
	}
}

func prompt(cmd *cobra.Command, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal to prompt for a passphrase (set IBK_PASSPHRASE)")
	}
	fmt.Fprint(cmd.ErrOrStderr(), label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ibk",
		Short:         "Incremental file backup",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "Log debug details to stderr")

	root.AddCommand(newBackupCmd(), newVerifyCmd(), newRestoreCmd(), newHistoryCmd(), newConfigCmd())
	return root
}

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup SOURCE DEST",
		Short: "Copy new and changed files from SOURCE into DEST",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if err := applyBackupFlags(cmd, &cfg.Backup); err != nil {
				return err
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			exclude, _ := cmd.Flags().GetStringArray("exclude")

			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.Backup(app.BackupRequest{
				Source:      args[0],
				Destination: args[1],
				DryRun:      dryRun,
				Exclude:     exclude,
			})
			if summary != nil {
				printSummary(cmd.OutOrStdout(), summary)
			}
			if err != nil {
				return &exitError{code: exitFailure, err: fmt.Errorf("backup failed: %w", err)}
			}
			if !summary.Clean() {
				return &exitError{code: exitFailure}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolP("dry-run", "n", false, "Report what would be copied without writing anything")
	f.StringArrayP("exclude", "e", nil, "Exclude paths matching PATTERN (repeatable)")
	f.IntP("threads", "t", 0, "Number of parallel workers (default: one per CPU)")
	f.BoolP("compress", "c", false, "Gzip stored copies above the compression threshold")
	f.Int64("compress-threshold", 0, "Only compress files larger than BYTES")
	f.StringP("algorithm", "a", "", "Hash algorithm: "+algorithmList())
	f.Duration("mtime-tolerance", 0, "Largest modification time difference treated as unchanged")
	f.Bool("encrypt", false, "Encrypt stored copies with the configured age key")
	return cmd
}

// applyBackupFlags overrides config values with flags set on the command line.
func applyBackupFlags(cmd *cobra.Command, bc *config.BackupConfig) error {
	f := cmd.Flags()
	if f.Changed("threads") {
		bc.Threads, _ = f.GetInt("threads")
	}
	if f.Changed("compress") {
		bc.Compress, _ = f.GetBool("compress")
	}
	if f.Changed("compress-threshold") {
		bc.CompressThreshold, _ = f.GetInt64("compress-threshold")
	}
	if f.Changed("algorithm") {
		name, _ := f.GetString("algorithm")
		algo, err := hasher.ParseAlgorithm(name)
		if err != nil {
			return err
		}
		bc.Algorithm = string(algo)
	}
	if f.Changed("mtime-tolerance") {
		bc.MTimeTolerance.Duration, _ = f.GetDuration("mtime-tolerance")
	}
	if f.Changed("encrypt") {
		bc.Encrypt, _ = f.GetBool("encrypt")
	}
	return nil
}

func algorithmList() string {
	var names []string
	for _, a := range hasher.Algorithms() {
		names = append(names, string(a))
	}
	return strings.Join(names, ", ")
}

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify MANIFEST",
		Short: "Re-hash stored copies and compare them with a manifest",
		Long:  "Re-hash stored copies and compare them with a manifest.\nMANIFEST may be the manifest file or the destination directory holding it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("output")
			if format != "table" && format != "json" {
				return fmt.Errorf("unknown output format %q (want table or json)", format)
			}
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("threads") {
				cfg.Backup.Threads, _ = cmd.Flags().GetInt("threads")
			}
			destination, _ := cmd.Flags().GetString("destination")
			prefix, _ := cmd.Flags().GetString("path")

			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Verify(app.VerifyRequest{
				Manifest:    args[0],
				Destination: destination,
				Prefix:      prefix,
				Passphrase:  passphrase(cmd),
			})
			if err != nil {
				return &exitError{code: exitFailure, err: fmt.Errorf("verify failed: %w", err)}
			}
			if err := printReport(cmd.OutOrStdout(), report, format); err != nil {
				return err
			}
			if !report.Clean() {
				return &exitError{code: exitFindings}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.String("destination", "", "Directory holding the stored copies (default: the manifest's directory)")
	f.String("path", "", "Only verify entries at or below this relative path")
	f.IntP("threads", "t", 0, "Number of parallel workers (default: one per CPU)")
	f.StringP("output", "o", "table", "Output format: table or json")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore MANIFEST TARGET",
		Short: "Restore the files recorded in a manifest under TARGET",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("threads") {
				cfg.Backup.Threads, _ = cmd.Flags().GetInt("threads")
			}
			prefix, _ := cmd.Flags().GetString("path")
			overwrite, _ := cmd.Flags().GetBool("overwrite")

			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.Restore(app.RestoreRequest{
				Manifest:   args[0],
				Target:     args[1],
				Prefix:     prefix,
				Overwrite:  overwrite,
				Passphrase: passphrase(cmd),
			})
			if err != nil {
				return &exitError{code: exitFailure, err: fmt.Errorf("restore failed: %w", err)}
			}
			printRestore(cmd.OutOrStdout(), summary)
			if !summary.Clean() {
				return &exitError{code: exitFailure}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.String("path", "", "Only restore entries at or below this relative path")
	f.IntP("threads", "t", 0, "Number of parallel workers (default: one per CPU)")
	f.Bool("overwrite", false, "Replace files that already exist under TARGET")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "View recorded backup, verify and restore operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			failuresOf, _ := cmd.Flags().GetInt64("failures")

			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if failuresOf > 0 {
				failures, err := a.OperationFailures(failuresOf)
				if err != nil {
					return err
				}
				printFailures(cmd.OutOrStdout(), failures)
				return nil
			}

			ops, err := a.History(limit)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), ops)
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	cmd.Flags().Int64("failures", 0, "Show the per-file failures of operation ID")

	exportCmd := &cobra.Command{
		Use:   "export PATH",
		Short: "Write a snapshot of the history database to PATH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ExportHistory(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "History exported to %s\n", args[0])
			return nil
		},
	}
	cmd.AddCommand(exportCmd)
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults, err := app.GetDefaults()
			if err != nil {
				return fmt.Errorf("failed to get defaults: %w", err)
			}
			cfg := config.NewConfig(defaults["base_dir"])
			if err := config.Init(defaults["config_path"], cfg); err != nil {
				return fmt.Errorf("failed to initialize config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration initialized at %s\n", defaults["config_path"])
			fmt.Fprintf(out, "Base Dir: %s\n", defaults["base_dir"])
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "View the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# Configuration from %s\n\n", path)
			m := &config.Manager{}
			return m.Write(cmd.OutOrStdout(), cfg)
		},
	}

	keygenCmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate the age key pair used by --encrypt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}

			pass, ok := os.LookupEnv("IBK_PASSPHRASE")
			if !ok {
				if pass, err = prompt(cmd, "New passphrase: "); err != nil {
					return err
				}
				again, err := prompt(cmd, "Repeat passphrase: ")
				if err != nil {
					return err
				}
				if again != pass {
					return errors.New("passphrases do not match")
				}
			}

			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.SetupEncryption(pass); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Public key:  %s\nPrivate key: %s (passphrase protected)\n",
				cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
			return nil
		},
	}

	cmd.AddCommand(initCmd, listCmd, keygenCmd)
	return cmd
}
