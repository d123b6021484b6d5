// Package ledger keeps a record's attachment list in step with the files
// held in the file store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vehicle-inspection-backend/internal/apperr"
	"vehicle-inspection-backend/internal/files"
	"vehicle-inspection-backend/internal/model"
	"vehicle-inspection-backend/internal/store"
)

// Upload is one incoming file.
type Upload struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// Ledger coordinates the attachment column of the record store with the
// file store.
type Ledger struct {
	records store.Store
	files   files.Store
	policy  files.Policy
	now     func() time.Time
	log     logrus.FieldLogger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the clock used for collision suffixes.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger.
func New(records store.Store, fs files.Store, policy files.Policy, log logrus.FieldLogger, opts ...Option) *Ledger {
	l := &Ledger{
		records: records,
		files:   fs,
		policy:  policy,
		now:     time.Now,
		log:     log.WithField("component", "ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Save writes every acceptable upload to the file store and returns the
// stored names in upload order. Uploads refused by the policy are returned
// as rejected and do not stop the others. On a storage failure the files
// already written by this call are removed again.
func (l *Ledger) Save(ctx context.Context, uploads []Upload) ([]string, []apperr.RejectedFile, error) {
	var saved []string
	var rejected []apperr.RejectedFile

	for _, up := range uploads {
		if err := ctx.Err(); err != nil {
			l.Discard(saved)
			return nil, nil, err
		}
		if err := l.policy.Check(up.Name, up.Size); err != nil {
			rejected = append(rejected, apperr.RejectedFile{Name: up.Name, Reason: err.Error()})
			continue
		}

		name, err := l.uniqueName(files.SanitizeName(up.Name))
		if err != nil {
			l.Discard(saved)
			return nil, nil, apperr.Storage("check attachment", err)
		}
		if err := l.write(name, up); err != nil {
			if errors.Is(err, files.ErrTooLarge) {
				rejected = append(rejected, apperr.RejectedFile{Name: up.Name, Reason: files.ErrTooLarge.Error()})
				continue
			}
			l.Discard(saved)
			return nil, nil, apperr.Storage("save attachment", err)
		}
		saved = append(saved, name)
	}
	return saved, rejected, nil
}

func (l *Ledger) write(name string, up Upload) error {
	rc, err := up.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload %s: %w", up.Name, err)
	}
	defer rc.Close()

	r := io.Reader(rc)
	if max := l.policy.MaxBytes(); max > 0 {
		r = &limitedReader{r: rc, remaining: max}
	}
	return l.files.Save(name, r)
}

// uniqueName returns name if it is free, otherwise <base>_<unix seconds><ext>,
// and if that is taken too, a short random suffix is added.
func (l *Ledger) uniqueName(name string) (string, error) {
	taken, err := l.files.Exists(name)
	if err != nil || !taken {
		return name, err
	}

	base, ext := splitExt(name)
	candidate := fmt.Sprintf("%s_%d%s", base, l.now().Unix(), ext)
	taken, err = l.files.Exists(candidate)
	if err != nil || !taken {
		return candidate, err
	}

	for {
		candidate = fmt.Sprintf("%s_%d_%s%s", base, l.now().Unix(), uuid.NewString()[:8], ext)
		taken, err = l.files.Exists(candidate)
		if err != nil || !taken {
			return candidate, err
		}
	}
}

// Discard removes files written for a write that did not commit.
func (l *Ledger) Discard(names []string) {
	for _, name := range names {
		if err := l.files.Delete(name); err != nil {
			l.log.WithError(err).WithField("file", name).Warn("Failed to remove orphaned attachment")
		}
	}
}

// Purge deletes every file of rec. It stops at the first failure so the
// caller can keep the row.
func (l *Ledger) Purge(rec model.Record) error {
	for _, name := range rec.AttachmentList() {
		if err := l.files.Delete(name); err != nil {
			return apperr.Storage("delete attachment", err)
		}
	}
	return nil
}

// Append stores uploads and adds their names to the end of the record's
// attachment list. When some uploads were refused the updated record is
// returned together with a PartialAttachmentFailure.
func (l *Ledger) Append(ctx context.Context, recordID int64, uploads []Upload) (model.Record, error) {
	if _, err := l.records.Get(ctx, recordID); err != nil {
		return model.Record{}, err
	}

	saved, rejected, err := l.Save(ctx, uploads)
	if err != nil {
		return model.Record{}, err
	}

	rec, err := l.records.UpdateAttachments(ctx, recordID, func(current []string) ([]string, error) {
		return append(current, saved...), nil
	})
	if err != nil {
		l.Discard(saved)
		return model.Record{}, err
	}

	l.log.WithFields(logrus.Fields{"record": recordID, "saved": len(saved), "rejected": len(rejected)}).Info("Attachments appended")
	if len(rejected) > 0 {
		return rec, &apperr.PartialAttachmentFailure{Rejected: rejected}
	}
	return rec, nil
}

// Remove deletes the stored file and drops every occurrence of name from
// the record's list. A name that is not listed is a no-op.
func (l *Ledger) Remove(ctx context.Context, recordID int64, name string) (model.Record, error) {
	return l.records.UpdateAttachments(ctx, recordID, func(current []string) ([]string, error) {
		if !slices.Contains(current, name) {
			return current, nil
		}
		if err := l.files.Delete(name); err != nil {
			return nil, apperr.Storage("delete attachment", err)
		}
		return slices.DeleteFunc(current, func(n string) bool { return n == name }), nil
	})
}

// Reconcile returns the listed names whose files still exist. The stored
// list is not modified.
func (l *Ledger) Reconcile(rec model.Record) []string {
	present := []string{}
	for _, name := range rec.AttachmentList() {
		ok, err := l.files.Exists(name)
		if err != nil {
			l.log.WithError(err).WithField("file", name).Warn("Failed to check attachment")
			continue
		}
		if ok {
			present = append(present, name)
		}
	}
	return present
}

func splitExt(name string) (string, string) {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}

type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	if lr.remaining < 0 {
		return 0, files.ErrTooLarge
	}
	if int64(len(p)) > lr.remaining+1 {
		p = p[:lr.remaining+1]
	}
	n, err := lr.r.Read(p)
	lr.remaining -= int64(n)
	if lr.remaining < 0 {
		return n, files.ErrTooLarge
	}
	return n, err
}
