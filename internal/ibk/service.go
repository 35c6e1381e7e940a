package ibk

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ibk-go/internal/hasher"
)

// DefaultCompressThreshold is the size in bytes a file must exceed before it
// is compressed.
const DefaultCompressThreshold = 1024

// RunState is the lifecycle state of a backup run.
type RunState string

const (
	StateIdle        RunState = "idle"
	StateScanning    RunState = "scanning"
	StateDispatching RunState = "dispatching"
	StateDraining    RunState = "draining"
	StatePersisting  RunState = "persisting"
	StateDone        RunState = "done"
	StateFailed      RunState = "failed"
)

// BackupOptions configures a single backup run.
type BackupOptions struct {
	// SourceRoot and DestinationRoot are absolute paths.
	SourceRoot      string
	DestinationRoot string
	// ManifestName is the manifest file name inside DestinationRoot.
	ManifestName string
	DryRun       bool
	Exclude      ExcludeFunc
	Threads      int
	Compress     bool
	// CompressThreshold is the size a file must exceed to be compressed.
	CompressThreshold int64
	Algorithm         hasher.Algorithm
	ModTimeTolerance  time.Duration
	Encrypt           bool
}

func (o BackupOptions) manifestName() string {
	if o.ManifestName == "" {
		return DefaultManifestName
	}
	return o.ManifestName
}

// ManifestPath is the absolute path of the manifest file.
func (o BackupOptions) ManifestPath() string {
	return filepath.Join(o.DestinationRoot, o.manifestName())
}

// Failure records why one path could not be backed up.
type Failure struct {
	RelativePath string
	Reason       string
}

// PlannedAction is what a dry run would have done for one path.
type PlannedAction struct {
	RelativePath string
	Reason       Reason
}

// Summary is the outcome of a backup run. An excluded directory counts as
// one excluded entry; everything else counts regular files.
type Summary struct {
	BackupID string
	DryRun   bool
	State    RunState
	Scanned  int
	Copied   int
	Skipped  int
	// Refreshed counts skipped files whose modification time changed but
	// whose content did not.
	Refreshed   int
	Failed      int
	Excluded    int
	Removed     int
	BytesCopied int64
	Failures    []Failure
	Planned     []PlannedAction
	// ManifestWarning is set when the prior manifest could not be used.
	ManifestWarning string
	StartedAt       time.Time
	Duration        time.Duration
}

// Clean reports whether every file was handled without error.
func (s *Summary) Clean() bool {
	return s.State == StateDone && s.Failed == 0
}

// BackupService is the orchestration layer that coordinates the walker, the
// change detector, the worker pool and the vault for one destination.
type BackupService struct {
	fsmgr      FilesystemManager
	vault      Vault
	store      ManifestStore
	compressor Compressor
	encryptor  Encryptor
	logger     Logger
	clock      Clock
	idgen      IDGenerator
}

// NewBackupService creates a new BackupService with the provided dependencies.
// compressor and encryptor may be nil when the corresponding feature is never requested.
func NewBackupService(fsmgr FilesystemManager, vault Vault, store ManifestStore, compressor Compressor, encryptor Encryptor, logger Logger, clock Clock, idgen IDGenerator) *BackupService {
	return &BackupService{
		fsmgr:      fsmgr,
		vault:      vault,
		store:      store,
		compressor: compressor,
		encryptor:  encryptor,
		logger:     logger,
		clock:      clock,
		idgen:      idgen,
	}
}

// Backup runs one incremental backup of opts.SourceRoot into the vault.
//
// Per-file failures are recorded in the returned Summary and never abort the
// run. A non-nil error means the run failed as a whole: the source or the
// destination was unusable before dispatch, or the manifest could not be
// persisted. The Summary is never nil.
func (s *BackupService) Backup(opts BackupOptions) (*Summary, error) {
	startedAt := s.clock.Now()
	summary := &Summary{DryRun: opts.DryRun, State: StateIdle, StartedAt: startedAt}
	fail := func(err error) (*Summary, error) {
		s.transition(summary, StateFailed)
		summary.Duration = s.clock.Now().Sub(startedAt)
		s.logger.Error("backup failed", "source", opts.SourceRoot, "destination", opts.DestinationRoot, "error", err)
		return summary, err
	}

	s.logger.Info("backup started", "source", opts.SourceRoot, "destination", opts.DestinationRoot, "dry_run", opts.DryRun)

	algo := opts.Algorithm
	if algo == "" {
		algo = hasher.DefaultAlgorithm
	}
	h, err := hasher.New(algo)
	if err != nil {
		return fail(fmt.Errorf("configuring hasher: %w", err))
	}
	if opts.Compress && s.compressor == nil {
		return fail(errors.New("compression requested but no compressor is configured"))
	}
	if opts.Encrypt && s.encryptor == nil {
		return fail(errors.New("encryption requested but no encryptor is configured"))
	}

	s.transition(summary, StateScanning)

	root, err := s.fsmgr.Stat(opts.SourceRoot)
	if err != nil {
		return fail(fmt.Errorf("%w: %s: %w", ErrSourceUnreadable, opts.SourceRoot, err))
	}
	if !root.IsDir {
		return fail(fmt.Errorf("%w: %s is not a directory", ErrSourceUnreadable, opts.SourceRoot))
	}
	if rel, inside := within(opts.SourceRoot, opts.DestinationRoot); inside && rel == "" {
		return fail(fmt.Errorf("%w: destination is the source directory", ErrDestinationUnwritable))
	}
	if _, inside := within(opts.DestinationRoot, opts.SourceRoot); inside {
		return fail(fmt.Errorf("%w: source %s lies inside the destination", ErrDestinationUnwritable, opts.SourceRoot))
	}
	if err := s.vault.ValidateSetup(!opts.DryRun); err != nil {
		return fail(fmt.Errorf("%w: %s: %w", ErrDestinationUnwritable, opts.DestinationRoot, err))
	}

	prior, err := s.loadPrior(opts, summary)
	if err != nil {
		return fail(err)
	}

	scan, err := s.scan(opts)
	if err != nil {
		return fail(err)
	}
	summary.Scanned = len(scan.files)
	summary.Excluded = scan.excluded
	for _, f := range scan.failures {
		summary.Failed++
		summary.Failures = append(summary.Failures, f)
	}

	s.transition(summary, StateDispatching)

	detector := NewChangeDetector(opts.ModTimeTolerance)
	next := prior.withHeader()
	names := reserveStoredNames(prior, scan)
	var tasks []BackupTask
	var blocked []BackupResult
	for _, e := range scan.files {
		p := prior.Get(e.RelativePath)
		d := detector.Detect(e, p)
		if !d.Changed {
			next.Put(p)
			summary.Skipped++
			continue
		}
		task, err := s.newTask(e, p, d.Reason, opts, scan, names)
		if err != nil {
			s.logger.Warn("file failed", "path", e.RelativePath, "error", err)
			blocked = append(blocked, failed(e.RelativePath, d.Reason, err))
			continue
		}
		tasks = append(tasks, task)
	}

	s.transition(summary, StateDraining)

	run := &runContext{dryRun: opts.DryRun, startedAt: startedAt, hasher: h}
	results := RunPool(opts.Threads, tasks, func(t BackupTask) BackupResult {
		return s.process(t, run)
	})
	results = append(results, blocked...)

	for _, r := range results {
		switch r.Status {
		case StatusCopied:
			summary.Copied++
			summary.BytesCopied += r.BytesRead
			if opts.DryRun {
				summary.Planned = append(summary.Planned, PlannedAction{RelativePath: r.RelativePath, Reason: r.Reason})
			}
		case StatusSkipped:
			summary.Skipped++
			if r.Refreshed {
				summary.Refreshed++
			}
		case StatusFailed:
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{RelativePath: r.RelativePath, Reason: r.Err.Error()})
		}
		if r.Entry != nil {
			next.Put(r.Entry)
		} else if p := prior.Get(r.RelativePath); p != nil {
			next.Put(p)
		}
	}

	// Entries under paths the walk could not read are carried over unchanged.
	for _, p := range prior.Paths() {
		if next.Get(p) != nil {
			continue
		}
		if scan.unreadable(p) {
			next.Put(prior.Get(p))
			continue
		}
		summary.Removed++
		s.logger.Debug("entry removed from manifest", "path", p)
	}

	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].RelativePath < summary.Failures[j].RelativePath
	})
	sort.Slice(summary.Planned, func(i, j int) bool {
		return summary.Planned[i].RelativePath < summary.Planned[j].RelativePath
	})

	if opts.DryRun {
		summary.BackupID = prior.BackupID
		return s.finish(summary, startedAt), nil
	}

	s.transition(summary, StatePersisting)

	now := s.clock.Now()
	if next.IsNew() {
		next.BackupID = s.idgen.New()
		next.CreatedAt = now
	}
	next.SourceRoot = opts.SourceRoot
	next.DestinationRoot = opts.DestinationRoot
	next.Algorithm = algo
	next.ToolVersion = ToolVersion
	next.UpdatedAt = now
	summary.BackupID = next.BackupID

	if err := s.store.Save(next, opts.ManifestPath()); err != nil {
		return fail(fmt.Errorf("%w: saving manifest: %w", ErrDestinationUnwritable, err))
	}

	return s.finish(summary, startedAt), nil
}

func (s *BackupService) finish(summary *Summary, startedAt time.Time) *Summary {
	s.transition(summary, StateDone)
	summary.Duration = s.clock.Now().Sub(startedAt)
	s.logger.Info("backup finished",
		"backup_id", summary.BackupID,
		"dry_run", summary.DryRun,
		"copied", summary.Copied,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"excluded", summary.Excluded,
		"removed", summary.Removed,
		"bytes", summary.BytesCopied,
	)
	return summary
}

func (s *BackupService) transition(summary *Summary, to RunState) {
	s.logger.Debug("backup state", "from", summary.State, "to", to)
	summary.State = to
}

// loadPrior loads the manifest of the previous run. A corrupt manifest is
// set aside and the run starts from an empty one.
func (s *BackupService) loadPrior(opts BackupOptions, summary *Summary) (*Manifest, error) {
	manifestPath := opts.ManifestPath()
	m, err := s.store.Load(manifestPath)
	if err == nil {
		if !m.IsNew() && m.SourceRoot != "" && m.SourceRoot != opts.SourceRoot {
			s.logger.Warn("manifest was written for a different source", "manifest_source", m.SourceRoot, "source", opts.SourceRoot)
		}
		return m, nil
	}
	if !errors.Is(err, ErrManifestCorrupt) {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}

	summary.ManifestWarning = err.Error()
	s.logger.Warn("manifest unusable, starting from an empty manifest", "path", manifestPath, "error", err)
	if !opts.DryRun {
		moved, qerr := s.store.Quarantine(manifestPath)
		if qerr != nil {
			return nil, fmt.Errorf("%w: preserving corrupt manifest: %w", ErrDestinationUnwritable, qerr)
		}
		summary.ManifestWarning += "; preserved as " + moved
	}
	return NewManifest(), nil
}

// scanResult is everything the walk produced for one run.
type scanResult struct {
	files    []Entry
	seen     map[string]bool
	excluded int
	failures []Failure
	// failedPaths are directories or files the walk could not read.
	failedPaths []string
}

func (r *scanResult) unreadable(relativePath string) bool {
	for _, f := range r.failedPaths {
		if relativePath == f || strings.HasPrefix(relativePath, f+"/") {
			return true
		}
	}
	return false
}

func (s *BackupService) scan(opts BackupOptions) (*scanResult, error) {
	res := &scanResult{seen: make(map[string]bool)}
	destRel, destInside := within(opts.SourceRoot, opts.DestinationRoot)
	manifestName := opts.manifestName()

	exclude := func(rel string, isDir bool) bool {
		if destInside && rel == destRel {
			s.logger.Debug("skipping destination inside source", "path", rel)
			return true
		}
		if opts.Exclude != nil && opts.Exclude(rel, isDir) {
			s.logger.Debug("excluded", "path", rel, "dir", isDir)
			res.excluded++
			return true
		}
		return false
	}

	for e, err := range s.fsmgr.Walk(opts.SourceRoot, exclude) {
		if err != nil {
			if e.RelativePath == "" {
				return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnreadable, opts.SourceRoot, err)
			}
			s.logger.Warn("cannot read path", "path", e.RelativePath, "error", err)
			res.failedPaths = append(res.failedPaths, e.RelativePath)
			res.failures = append(res.failures, Failure{
				RelativePath: e.RelativePath,
				Reason:       fmt.Errorf("%w: %w", ErrFileRead, err).Error(),
			})
			continue
		}
		if e.IsDir {
			continue
		}
		if e.RelativePath == manifestName {
			s.logger.Warn("skipping file that shadows the manifest name", "path", e.RelativePath)
			continue
		}
		res.files = append(res.files, e)
		res.seen[e.RelativePath] = true
	}
	return res, nil
}

// storedNames maps each stored name in the destination to the relative
// path whose copy it holds.
type storedNames map[string]string

// reserveStoredNames claims the stored names of every prior entry that can
// survive this run: files still present, or under paths the walk could not
// read. A failed copy keeps its prior entry, so its old name stays claimed
// even when the file is dispatched.
func reserveStoredNames(prior *Manifest, scan *scanResult) storedNames {
	names := make(storedNames)
	for _, p := range prior.Paths() {
		if scan.seen[p] || scan.unreadable(p) {
			names[prior.Get(p).StoredName()] = p
		}
	}
	return names
}

// heldByOther returns the path owning name when that is not relativePath.
func (n storedNames) heldByOther(name, relativePath string) (string, bool) {
	owner, ok := n[name]
	return owner, ok && owner != relativePath
}

// newTask picks the stored name for a changed file and claims it. A name that
// holds the copy of another path fails the file with ErrFileWrite; the copy is
// never overwritten.
func (s *BackupService) newTask(e Entry, prior *ManifestEntry, reason Reason, opts BackupOptions, scan *scanResult, names storedNames) (BackupTask, error) {
	rel := e.RelativePath
	compress := opts.Compress && e.Size > opts.CompressThreshold
	if compress && scan.seen[rel+CompressedSuffix] {
		s.logger.Warn("not compressing, stored name collides with a source file", "path", rel)
		compress = false
	}

	name := StoredName(rel, compress, opts.Encrypt)
	if owner, taken := names.heldByOther(name, rel); taken {
		return BackupTask{}, fmt.Errorf("%w: stored name %s holds the copy of %s", ErrFileWrite, name, owner)
	}
	names[name] = rel

	return BackupTask{
		Entry:      e,
		SourcePath: filepath.Join(opts.SourceRoot, filepath.FromSlash(rel)),
		StoredName: name,
		Reason:     reason,
		Prior:      prior,
		Compress:   compress,
		Encrypt:    opts.Encrypt,
	}, nil
}

// within reports whether target lies inside root and returns its
// slash-separated path relative to root ("" when they are the same).
func within(root, target string) (string, bool) {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") || filepath.IsAbs(rel) {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return path.Clean(rel), true
}
