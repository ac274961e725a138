package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	gosync "sync"
	"time"

	"github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/clarive/filesync/internal/content/assets"
	"github.com/clarive/filesync/internal/content/schema"
)

const (
	dirPerms  = 0755
	filePerms = 0644
)

// Syncer moves records between a Store and a repository of record files.
type Syncer struct {
	store  Store
	codec  *schema.Codec
	logger *log.Logger

	// now is replaced in tests.
	now func() time.Time
}

// New creates a Syncer.
//
// If codec is nil the YAML codec is used. If logger is nil, a default
// logger writing to stderr is used.
//
// Example:
//
//	database, err := db.Open(".filesync/content.db")
//	if err != nil {
//	    return err
//	}
//	if err := database.InitSchema(ctx); err != nil {
//	    return err
//	}
//	syncer := sync.New(database, nil, nil)
//	report, err := syncer.Dump(ctx, "repo", sync.Options{})
func New(store Store, codec *schema.Codec, logger *log.Logger) *Syncer {
	if codec == nil {
		codec = schema.DefaultCodec()
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Syncer{
		store:  store,
		codec:  codec,
		logger: logger,
		now:    time.Now,
	}
}

// Codec returns the codec used for record files.
func (s *Syncer) Codec() *schema.Codec {
	return s.codec
}

// ===== Dump: Store -> files =====

// Dump writes every live record to repo. Records whose target path does not
// match opts.Grep are skipped. A record that was dumped before under another
// title has its old file removed.
func (s *Syncer) Dump(ctx context.Context, repo string, opts Options) (*Report, error) {
	s.logger.Printf("Starting dump to %s", repo)

	records, corrupt, err := s.listRecords(ctx)
	if err != nil {
		return nil, err
	}
	existing := s.indexFiles(repo)

	report := &Report{}
	for _, c := range corrupt {
		s.logger.Printf("Failed to read record %d: %v", c.ID, c.Err)
		report.fail("", c.ID, &RecordError{Op: "dump", ID: c.ID, Err: storeErr(c)})
	}
	g := newGroup(opts.Jobs)
	for _, r := range records {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			path, written, err := s.dumpStored(ctx, repo, r, existing[r.ID], opts)
			switch {
			case err != nil:
				s.logger.Printf("Failed to dump record %d: %v", r.ID, err)
				report.fail(path, r.ID, err)
			case written:
				report.written()
			default:
				report.skipped()
			}
			return nil
		})
	}
	g.Wait()

	s.logger.Printf("Dump complete: records=%d (written=%d, skipped=%d, failed=%d)",
		len(records)+len(corrupt), report.Written, report.Skipped, report.Failed)
	return report, ctx.Err()
}

// DumpByID writes a single record and returns its path. A filtered out
// record returns its path with no error and nothing written.
func (s *Syncer) DumpByID(ctx context.Context, repo string, id int64, opts Options) (string, error) {
	r, err := s.findRecord(ctx, id)
	if err != nil {
		return "", err
	}
	path, _, err := s.dumpStored(ctx, repo, r, s.indexFiles(repo)[id], opts)
	return path, err
}

// DumpFile refreshes an existing record file from the store. The repository
// root is the parent of the file's type directory; if the record's path
// changed since the file was written, the file is replaced.
func (s *Syncer) DumpFile(ctx context.Context, path string, opts Options) (string, error) {
	r, err := s.codec.ReadRecord(path)
	if err != nil {
		return "", &RecordError{Op: "dump", Path: path, Err: err}
	}
	if r.ID == 0 {
		return "", &RecordError{Op: "dump", Path: path, Err: fmt.Errorf("file has no stored record: %w", schema.ErrNotFound)}
	}

	stored, err := s.findRecord(ctx, r.ID)
	if err != nil {
		return "", &RecordError{Op: "dump", Path: path, ID: r.ID, Err: err}
	}
	newPath, _, err := s.dumpStored(ctx, RepoRootOf(path), stored, path, opts)
	return newPath, err
}

// listRecords lists every live record. Rows the store could not decode are
// returned separately so a pass can report them and carry on.
func (s *Syncer) listRecords(ctx context.Context) ([]*schema.Record, []*schema.CorruptRecordError, error) {
	records, err := s.store.ListRecords(ctx, schema.Filter{})
	if err == nil {
		return records, nil, nil
	}

	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	corrupt := make([]*schema.CorruptRecordError, 0, len(errs))
	for _, e := range errs {
		var c *schema.CorruptRecordError
		if !errors.As(e, &c) {
			return nil, nil, fmt.Errorf("failed to list records: %w", storeErr(err))
		}
		corrupt = append(corrupt, c)
	}
	return records, corrupt, nil
}

func (s *Syncer) findRecord(ctx context.Context, id int64) (*schema.Record, error) {
	records, err := s.store.ListRecords(ctx, schema.Filter{ID: &id})
	if err != nil {
		return nil, &RecordError{Op: "dump", ID: id, Err: storeErr(err)}
	}
	if len(records) == 0 {
		return nil, &RecordError{Op: "dump", ID: id, Err: storeErr(schema.ErrNotFound)}
	}
	return records[0], nil
}

// dumpStored attaches the record's stored metadata and dumps it.
func (s *Syncer) dumpStored(ctx context.Context, repo string, r *schema.Record, previousPath string, opts Options) (string, bool, error) {
	path := schema.Resolve(repo, r)
	if !opts.matches(path) {
		s.logger.Printf("--- %s", path)
		return path, false, nil
	}

	meta, err := s.store.GetMetadata(ctx, &r.ID)
	if err != nil {
		return path, false, &RecordError{Op: "dump", Path: path, ID: r.ID, Err: storeErr(err)}
	}
	rec := *r
	rec.Metadata = meta[r.ID]
	return s.dumpRecord(ctx, repo, &rec, previousPath, r.ID, opts)
}

// DumpRecord writes r to its canonical path under repo and reports whether
// it was written. It is the second phase of a load and may be called on any
// in-memory record.
//
// When previousPath names an existing file other than the new path, that
// file is removed. Failing to remove it yields ErrStaleFileDeletion after
// the new file has been written.
func (s *Syncer) DumpRecord(ctx context.Context, repo string, r *schema.Record, previousPath string, opts Options) (string, bool, error) {
	return s.dumpRecord(ctx, repo, r, previousPath, 0, opts)
}

// dumpRecord implements DumpRecord. A non-zero owner means previousPath is
// only removed while it still declares that id, so a file another record
// has since taken over is kept.
func (s *Syncer) dumpRecord(ctx context.Context, repo string, r *schema.Record, previousPath string, owner int64, opts Options) (string, bool, error) {
	if err := schema.CheckType(r.Type); err != nil {
		return "", false, &RecordError{Op: "dump", ID: r.ID, Err: fmt.Errorf("%w: %v", schema.ErrInvalidRecordFile, err)}
	}
	path := schema.Resolve(repo, r)
	if !within(repo, path) {
		return path, false, &RecordError{Op: "dump", Path: path, ID: r.ID,
			Err: fmt.Errorf("%w: path is outside %s", schema.ErrInvalidRecordFile, repo)}
	}
	if !opts.matches(path) {
		s.logger.Printf("--- %s", path)
		return path, false, nil
	}
	if opts.Grep != nil {
		s.logger.Printf("+++ %s", path)
	}

	rec := *r
	if !opts.NoCleanup {
		rec.Body = schema.Normalize(rec.Body)
	}
	data, err := s.codec.Serialize(&rec)
	if err != nil {
		return path, false, &RecordError{Op: "dump", Path: path, ID: r.ID, Err: err}
	}

	if err := writeFile(path, data); err != nil {
		return path, false, &RecordError{Op: "dump", Path: path, ID: r.ID, Err: fsErr(err)}
	}

	if previousPath != "" && !samePath(previousPath, path) && s.owns(previousPath, owner) {
		if err := os.Remove(previousPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return path, true, &RecordError{Op: "dump", Path: previousPath, ID: r.ID,
				Err: fmt.Errorf("%w: %w", ErrStaleFileDeletion, err)}
		} else if err == nil {
			s.logger.Printf("Removed old file %s for id=%d", previousPath, r.ID)
		}
	}

	return path, true, nil
}

// ===== Load: files -> Store =====

// Load reads every record file under repo into the store. Each loaded
// record is dumped again unless opts.NoRefresh is set.
func (s *Syncer) Load(ctx context.Context, repo string, opts Options) (*Report, error) {
	s.logger.Printf("Starting load from %s", repo)

	report := &Report{}

	// The file list is taken before anything is loaded: refreshed files
	// land in type directories the walk has not reached yet.
	type walked struct {
		path string
		err  error
	}
	var files []walked
	for path, err := range Walk(repo) {
		files = append(files, walked{path, err})
	}

	var (
		producedMu gosync.Mutex
		produced   = make(map[string]bool) // paths rewritten during this pass
	)

	g := newGroup(opts.Jobs)
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		path := f.path
		if f.err != nil {
			s.logger.Printf("Failed to read %s: %v", path, f.err)
			report.fail(path, 0, &RecordError{Op: "load", Path: path, Err: f.err})
			continue
		}
		if !opts.matches(path) {
			s.logger.Printf("--- %s", path)
			report.skipped()
			continue
		}

		producedMu.Lock()
		done := produced[path]
		producedMu.Unlock()
		if done {
			s.logger.Printf("Already written in this pass: %s", path)
			continue
		}
		if opts.Grep != nil {
			s.logger.Printf("+++ %s", path)
		}

		g.Go(func() error {
			r, err := s.LoadFile(ctx, path, opts)
			if r != nil && !opts.NoRefresh {
				if target := schema.Resolve(RepoRootOf(path), r); target != path {
					producedMu.Lock()
					produced[target] = true
					producedMu.Unlock()
				}
			}
			if err != nil {
				var id int64
				if r != nil {
					id = r.ID
				}
				s.logger.Printf("Failed to load %s: %v", path, err)
				report.fail(path, id, err)
				return nil
			}
			report.written()
			return nil
		})
	}
	g.Wait()

	s.logger.Printf("Load complete: files=%d (loaded=%d, skipped=%d, failed=%d)",
		report.Written+report.Skipped+report.Failed, report.Written, report.Skipped, report.Failed)
	return report, ctx.Err()
}

// LoadFile loads one record file and, unless opts.NoRefresh is set, dumps
// the stored result back so the file name follows the current title.
// The returned record is non-nil whenever the store was updated.
func (s *Syncer) LoadFile(ctx context.Context, path string, opts Options) (*schema.Record, error) {
	r, err := s.LoadRecord(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	if opts.NoRefresh {
		return r, nil
	}

	refresh := opts
	refresh.Grep = nil
	if _, _, err := s.DumpRecord(ctx, RepoRootOf(path), r, path, refresh); err != nil {
		return r, err
	}
	return r, nil
}

// LoadRecord parses the file at path and writes it to the store. A record
// with an unknown or zero id is inserted and the returned record carries
// the assigned id. Every key of the file's meta mapping is written; stored
// keys missing from the file are kept.
func (s *Syncer) LoadRecord(ctx context.Context, path string, opts Options) (*schema.Record, error) {
	s.logger.Printf(">>> %s", path)

	fr, err := s.codec.ReadFile(path)
	if err != nil {
		return nil, &RecordError{Op: "load", Path: path, Err: err}
	}
	r, err := schema.FromFile(fr)
	if err != nil {
		return nil, &RecordError{Op: "load", Path: path, Err: err}
	}
	if !opts.NoCleanup {
		r.Body = schema.Normalize(r.Body)
	}

	var existing *schema.Record
	if r.ID != 0 {
		existing, err = s.store.GetRecord(ctx, r.ID)
		if err != nil && !errors.Is(err, schema.ErrNotFound) {
			return nil, &RecordError{Op: "load", Path: path, ID: r.ID, Err: storeErr(err)}
		}
	}

	if !opts.KeepDate {
		r.Touch(s.now())
		s.logger.Printf("New modified time = %s", r.Modified.Format(schema.TimeLayout))
	}

	if existing != nil {
		mergeMissing(r, existing, fr.Fields)
		if err := s.store.UpdateRecord(ctx, r); err != nil {
			return nil, &RecordError{Op: "load", Path: path, ID: r.ID, Err: storeErr(err)}
		}
	} else {
		r.SetDefaults()
		previous := r.ID
		id, err := s.store.InsertRecord(ctx, r)
		if err != nil {
			return nil, &RecordError{Op: "load", Path: path, ID: previous, Err: storeErr(err)}
		}
		r.ID = id
		if previous != 0 {
			s.logger.Printf("Record %d did not exist, inserted as id=%d", previous, id)
		} else {
			s.logger.Printf("Inserted new record id=%d", id)
		}
	}

	keys := make([]string, 0, len(r.Metadata))
	for k := range r.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := s.store.SetMetadata(ctx, r.ID, k, r.Metadata[k]); err != nil {
			return r, &RecordError{Op: "load", Path: path, ID: r.ID, Err: storeErr(err)}
		}
	}

	return r, nil
}

// mergeMissing fills what a file left out from the stored record: the
// title and extra fields when their keys are absent from the front matter,
// and empty core attributes. The body always comes from the file.
func mergeMissing(r, stored *schema.Record, declared map[string]any) {
	if _, ok := declared[schema.KeyTitle]; !ok {
		r.Title = stored.Title
	}
	for k, v := range stored.Fields {
		if _, ok := declared[k]; !ok {
			r.Fields[k] = v
		}
	}
	if r.Type == "" {
		r.Type = stored.Type
	}
	if r.Status == "" {
		r.Status = stored.Status
	}
	if r.Date.IsZero() {
		r.Date = stored.Date
	}
	if r.Modified.IsZero() {
		r.Modified = stored.Modified
	}
}

// ===== Sync =====

// Sync reports orphaned records, dumps the store and then copies
// opts.UploadsDir into {repo}/uploads when it exists.
func (s *Syncer) Sync(ctx context.Context, repo string, opts Options) (*Report, error) {
	orphans, err := s.DeleteOld(ctx, repo)
	if err != nil {
		return nil, err
	}

	report, err := s.Dump(ctx, repo, opts)
	if report != nil {
		report.Orphans = orphans
	}
	if err != nil {
		return report, err
	}

	if opts.UploadsDir == "" {
		return report, nil
	}
	if info, statErr := os.Stat(opts.UploadsDir); statErr != nil || !info.IsDir() {
		s.logger.Printf("Uploads directory %s not found (skipping)", opts.UploadsDir)
		return report, nil
	}
	dst := filepath.Join(repo, UploadsDir)
	s.logger.Printf("Copying uploads %s -> %s", opts.UploadsDir, dst)
	if err := assets.CopyTree(opts.UploadsDir, dst); err != nil {
		s.logger.Printf("Some uploads were not copied: %v", err)
		report.fail(dst, 0, fsErr(err))
	}
	return report, nil
}

// DeleteOld returns the ids of stored records that no file in repo
// declares. Nothing is deleted: orphans are logged so they can be trashed
// in the owning application.
func (s *Syncer) DeleteOld(ctx context.Context, repo string) ([]int64, error) {
	records, corrupt, err := s.listRecords(ctx)
	if err != nil {
		return nil, err
	}
	files := s.indexFiles(repo)

	ids := make([]int64, 0, len(records)+len(corrupt))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	for _, c := range corrupt {
		ids = append(ids, c.ID)
	}
	var orphans []int64
	for _, id := range ids {
		if _, ok := files[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	slices.Sort(orphans)

	if len(orphans) > 0 {
		s.logger.Printf("%d record(s) have no file and were not deleted: %v", len(orphans), orphans)
	}
	return orphans, nil
}

// indexFiles maps the ids declared by record files under repo to their
// paths. Files that cannot be parsed are ignored here; Load reports them.
func (s *Syncer) indexFiles(repo string) map[int64]string {
	index := make(map[int64]string)
	for path, err := range Walk(repo) {
		if err != nil {
			continue
		}
		r, err := s.codec.ReadRecord(path)
		if err != nil || r.ID == 0 {
			continue
		}
		if other, dup := index[r.ID]; dup {
			s.logger.Printf("Record %d is declared by both %s and %s", r.ID, other, path)
			continue
		}
		index[r.ID] = path
	}
	return index
}

// owns reports whether the file at path may be removed on behalf of id.
func (s *Syncer) owns(path string, id int64) bool {
	if id == 0 {
		return true
	}
	r, err := s.codec.ReadRecord(path)
	return err == nil && r.ID == id
}

// writeFile atomically replaces path, creating its directory if needed.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerms); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	// atomic.WriteFile doesn't set permissions for new files
	if err := os.Chmod(path, filePerms); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	return nil
}

// within reports whether path lies inside dir.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// samePath reports whether a and b name the same file.
func samePath(a, b string) bool {
	if a == b {
		return true
	}
	ra, errA := resolvePath(a)
	rb, errB := resolvePath(b)
	return errA == nil && errB == nil && ra == rb
}

func resolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	}
	return abs, nil
}

func newGroup(jobs int) *errgroup.Group {
	g := &errgroup.Group{}
	g.SetLimit(max(jobs, 1))
	return g
}
