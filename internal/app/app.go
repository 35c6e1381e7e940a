package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ibk-go/internal/compression"
	"ibk-go/internal/config"
	"ibk-go/internal/database"
	"ibk-go/internal/encryption"
	"ibk-go/internal/fs"
	"ibk-go/internal/hasher"
	"ibk-go/internal/ibk"
	"ibk-go/internal/manifest"
	"ibk-go/internal/vault"
)

// Options tune how an App is constructed.
type Options struct {
	// Verbose enables debug records and mirrors the log to Stderr.
	Verbose bool
	Stderr  io.Writer
	// Clock defaults to the wall clock.
	Clock ibk.Clock
}

// PassphraseFunc supplies the passphrase that unlocks the private key.
// It is only called when encrypted copies have to be read.
type PassphraseFunc func() (string, error)

// App is the application layer between the CLI and BackupService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, records every operation in the history
// database and manages resource lifecycles on Close.
type App struct {
	cfg        *config.Config
	fsmgr      *fs.OSFilesystemManager
	store      *manifest.JSONStore
	compressor *compression.GzipCompressor
	encryptor  ibk.Encryptor
	history    ibk.History
	logger     ibk.Logger
	clock      ibk.Clock
	logFile    *os.File
}

// New creates a fully wired App from cfg. The caller must call Close when done.
func New(cfg *config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = ibk.RealClock{}
	}

	gz, err := compression.NewGzipCompressor(cfg.Backup.CompressLevel)
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	opID := clock.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, opts.Verbose, opts.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	return &App{
		cfg:        cfg,
		fsmgr:      fs.NewOSFilesystemManager(),
		store:      manifest.NewJSONStore(),
		compressor: gz,
		encryptor:  enc,
		history:    db,
		logger:     &slogAdapter{l: logger},
		clock:      clock,
		logFile:    logFile,
	}, nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config {
	return a.cfg
}

func (a *App) service(v ibk.Vault) *ibk.BackupService {
	return ibk.NewBackupService(a.fsmgr, v, a.store, a.compressor, a.encryptor, a.logger, a.clock, ibk.UUIDGenerator{})
}

// BackupRequest names the trees of one backup run. Everything else comes
// from the backup section of the config.
type BackupRequest struct {
	Source      string
	Destination string
	DryRun      bool
	// Exclude patterns are added to the configured ones and to those in
	// the source's exclude file.
	Exclude []string
}

// Backup resolves both paths and runs one incremental backup.
// The Summary is non-nil whenever the run was started.
func (a *App) Backup(req BackupRequest) (*ibk.Summary, error) {
	src, err := a.fsmgr.Resolve(req.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ibk.ErrSourceUnreadable, err)
	}
	dst, err := a.fsmgr.Resolve(req.Destination)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ibk.ErrDestinationUnwritable, err)
	}

	bc := a.cfg.Backup
	algo, err := hasher.ParseAlgorithm(bc.Algorithm)
	if err != nil {
		return nil, err
	}
	exclude, err := a.excludeFunc(src, req.Exclude)
	if err != nil {
		return nil, err
	}
	v, err := vault.NewVaultFromConfig(bc, dst)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	op := NewOperation(KindBackup, fmt.Sprintf("%s -> %s", src, dst), a.clock.Now())
	a.begin(op)

	summary, err := a.service(v).Backup(ibk.BackupOptions{
		SourceRoot:        src,
		DestinationRoot:   dst,
		ManifestName:      bc.ManifestName,
		DryRun:            req.DryRun,
		Exclude:           exclude,
		Threads:           bc.Threads,
		Compress:          bc.Compress,
		CompressThreshold: bc.CompressThreshold,
		Algorithm:         algo,
		ModTimeTolerance:  bc.MTimeTolerance.Duration,
		Encrypt:           bc.Encrypt,
	})
	a.end(op, operationStatus(err, summary.Clean()), summary, summary.Failures)
	return summary, err
}

// excludeFunc merges configured, requested and exclude-file patterns.
// It returns nil when there is nothing to exclude.
func (a *App) excludeFunc(sourceRoot string, extra []string) (ibk.ExcludeFunc, error) {
	patterns := append(append([]string(nil), a.cfg.Backup.Exclude...), extra...)
	if name := a.cfg.Backup.ExcludeFile; name != "" {
		fromFile, err := fs.ParseExcludeFile(filepath.Join(sourceRoot, name))
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, fromFile...)
	}

	m, err := fs.NewExcludeMatcher(patterns)
	if err != nil {
		return nil, fmt.Errorf("parsing exclude patterns: %w", err)
	}
	if m.Len() == 0 {
		return nil, nil
	}
	return m.Func(), nil
}

// VerifyRequest selects a manifest and the stored copies to check against it.
type VerifyRequest struct {
	// Manifest is the manifest file, or a destination directory holding
	// one under the configured manifest name.
	Manifest string
	// Destination overrides the directory holding the stored copies.
	// It defaults to the manifest's directory.
	Destination string
	Prefix      string
	Passphrase  PassphraseFunc
}

// Verify re-hashes the stored copies recorded in a manifest.
func (a *App) Verify(req VerifyRequest) (*ibk.VerificationReport, error) {
	path, m, err := a.loadManifest(req.Manifest)
	if err != nil {
		return nil, err
	}
	root := req.Destination
	if root == "" {
		root = filepath.Dir(path)
	}
	if root, err = a.fsmgr.Resolve(root); err != nil {
		return nil, err
	}

	op := NewOperation(KindVerify, path, a.clock.Now())
	a.begin(op)

	dec, err := a.unlock(m, req.Prefix, req.Passphrase)
	if err != nil {
		a.end(op, ibk.OperationError, map[string]string{"error": err.Error()}, nil)
		return nil, err
	}

	report := a.service(vault.NewFileSystemVault(root)).Verify(m, ibk.VerifyOptions{
		Threads:    a.cfg.Backup.Threads,
		Prefix:     req.Prefix,
		Decryption: dec,
	})

	var findings []ibk.Failure
	for _, f := range report.Findings() {
		findings = append(findings, ibk.Failure{RelativePath: f.RelativePath, Reason: fmt.Sprintf("%s: %s", f.Status, f.Detail)})
	}
	a.end(op, operationStatus(nil, report.Clean()), report, findings)
	return report, nil
}

// RestoreRequest selects a manifest and where to restore its files.
type RestoreRequest struct {
	Manifest   string
	Target     string
	Prefix     string
	Overwrite  bool
	Passphrase PassphraseFunc
}

// Restore writes the files recorded in a manifest back under Target.
// The stored copies are read from the manifest's directory.
func (a *App) Restore(req RestoreRequest) (*ibk.RestoreSummary, error) {
	path, m, err := a.loadManifest(req.Manifest)
	if err != nil {
		return nil, err
	}
	target, err := filepath.Abs(req.Target)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	op := NewOperation(KindRestore, fmt.Sprintf("%s -> %s", path, target), a.clock.Now())
	a.begin(op)

	dec, err := a.unlock(m, req.Prefix, req.Passphrase)
	if err != nil {
		a.end(op, ibk.OperationError, map[string]string{"error": err.Error()}, nil)
		return nil, err
	}

	summary, err := a.service(vault.NewFileSystemVault(filepath.Dir(path))).Restore(m, ibk.RestoreOptions{
		TargetRoot: target,
		Prefix:     req.Prefix,
		Threads:    a.cfg.Backup.Threads,
		Overwrite:  req.Overwrite,
		Decryption: dec,
	})
	if err != nil {
		a.end(op, ibk.OperationError, map[string]string{"error": err.Error()}, nil)
		return nil, err
	}
	a.end(op, operationStatus(nil, summary.Clean()), summary, summary.Failures)
	return summary, nil
}

// loadManifest resolves a manifest file or a directory holding one.
// A manifest that does not exist is an error here, unlike during backup.
func (a *App) loadManifest(raw string) (string, *ibk.Manifest, error) {
	path, err := a.fsmgr.Resolve(raw)
	if err != nil {
		return "", nil, fmt.Errorf("resolving path: %w", err)
	}
	info, err := a.fsmgr.Stat(path)
	if err != nil {
		return "", nil, fmt.Errorf("manifest %s: %w", path, ibk.ErrNotFound)
	}
	if info.IsDir {
		path = filepath.Join(path, a.cfg.Backup.ManifestName)
		if _, err := a.fsmgr.Stat(path); err != nil {
			return "", nil, fmt.Errorf("manifest %s: %w", path, ibk.ErrNotFound)
		}
	}

	m, err := a.store.Load(path)
	if err != nil {
		return "", nil, err
	}
	return path, m, nil
}

// unlock asks for the passphrase only when an encrypted entry is selected.
// Without a PassphraseFunc encrypted entries stay locked.
func (a *App) unlock(m *ibk.Manifest, prefix string, passphrase PassphraseFunc) (ibk.DecryptionContext, error) {
	needed := false
	for _, e := range m.Select(prefix) {
		if e.Encrypted {
			needed = true
			break
		}
	}
	if !needed || passphrase == nil {
		return nil, nil
	}
	if !a.encryptor.IsConfigured() {
		return nil, errors.New("manifest has encrypted entries but no keys are configured (run `ibk config keygen`)")
	}

	p, err := passphrase()
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	dec, err := a.encryptor.Unlock(p)
	if err != nil {
		return nil, fmt.Errorf("unlocking private key: %w", err)
	}
	return dec, nil
}

// SetupEncryption generates the key pair used for encrypted backups.
func (a *App) SetupEncryption(passphrase string) error {
	if err := a.encryptor.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up encryption: %w", err)
	}
	a.logger.Info("encryption keys generated", "public_key", a.cfg.Encryption.PublicKeyPath)
	return nil
}

// History returns the most recent operations, newest first.
func (a *App) History(limit int) ([]ibk.Operation, error) {
	return a.history.ListOperations(limit)
}

// OperationFailures returns the per-file failures recorded for one operation.
func (a *App) OperationFailures(id int64) ([]ibk.Failure, error) {
	return a.history.OperationFailures(id)
}

// ExportHistory snapshots the history database into a new file at path.
func (a *App) ExportHistory(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err == nil {
		return fmt.Errorf("%s already exists", abs)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	if err := a.history.BackupTo(abs); err != nil {
		return fmt.Errorf("exporting history: %w", err)
	}
	a.logger.Info("history exported", "path", abs)
	return nil
}

// Close closes the history database and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.history.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}
