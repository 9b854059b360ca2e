package services

import (
	"context"
	"errors"
	"io"

	"github.com/rohits-web03/lockbox/internal/filename"
	"github.com/rohits-web03/lockbox/internal/models"
	"github.com/rohits-web03/lockbox/internal/repositories"
	"github.com/rs/zerolog"
)

const (
	OpUpload    = "upload"
	OpLock      = "lock"
	OpUnlock    = "unlock"
	OpOverwrite = "overwrite"
)

// Upload is file content sent under its raw client-side name.
type Upload struct {
	RawName     string
	Content     io.Reader
	Size        int64
	ContentType string
}

// Target identifies the record a lock or unlock applies to. CompanyID and
// ProjectID are only consulted for namespaced lookups.
type Target struct {
	Filename  string
	CompanyID string
	ProjectID string
}

// FileService runs the upload, lock, unlock and overwrite operations. The
// blob and record writes of one operation are not atomic: a failure
// between them leaves the stores out of step until the next overwrite or
// a reconciliation.
type FileService struct {
	blobs   *repositories.BlobGateway
	records *repositories.RecordRepository
	parse   filename.Parser
	log     zerolog.Logger
}

func NewFileService(blobs *repositories.BlobGateway, records *repositories.RecordRepository, parse filename.Parser, log zerolog.Logger) *FileService {
	return &FileService{
		blobs:   blobs,
		records: records,
		parse:   parse,
		log:     log,
	}
}

// Upload stores the content and creates an unlocked record for it. If the
// record cannot be created a blob written by this call is removed again;
// content that replaced an existing blob is left in place.
func (s *FileService) Upload(ctx context.Context, in Upload) (*models.FileRecord, error) {
	name, err := s.parse(in.RawName)
	if err != nil {
		return nil, err
	}
	log := s.log.With().Str("op", OpUpload).Str("path", name.Path()).Logger()

	existed, err := s.blobs.Exists(ctx, name)
	if err != nil {
		return nil, s.fail(log, OpUpload, StepPutBlob, err)
	}

	link, err := s.blobs.Put(ctx, name, in.Content, in.Size, in.ContentType)
	if err != nil {
		return nil, s.fail(log, OpUpload, StepPutBlob, err)
	}

	rec := &models.FileRecord{
		CompanyID:    name.CompanyID,
		ProjectID:    name.ProjectID,
		Filename:     name.Filename,
		DownloadLink: link,
		IsLocked:     false,
	}
	if _, err := s.records.Create(ctx, rec); err != nil {
		if existed {
			log.Warn().Msg("record failed after replacing existing content, blob kept")
		} else if delErr := s.blobs.Delete(ctx, name); delErr != nil {
			log.Error().Err(delErr).Msg("failed to remove blob after record failure, blob left without record")
		}
		return nil, s.fail(log, OpUpload, StepCreateRecord, err)
	}

	log.Info().Str("id", rec.ID).Msg("file uploaded")
	return rec, nil
}

func (s *FileService) Lock(ctx context.Context, t Target) (*models.FileRecord, error) {
	return s.setLocked(ctx, OpLock, t, true)
}

func (s *FileService) Unlock(ctx context.Context, t Target) (*models.FileRecord, error) {
	return s.setLocked(ctx, OpUnlock, t, false)
}

// setLocked is idempotent; the current lock state is not checked.
func (s *FileService) setLocked(ctx context.Context, op string, t Target, locked bool) (*models.FileRecord, error) {
	if t.Filename == "" {
		return nil, ErrMissingFilename
	}
	if s.records.Namespaced() && (t.CompanyID == "" || t.ProjectID == "") {
		return nil, ErrMissingNamespace
	}
	name := filename.Name{CompanyID: t.CompanyID, ProjectID: t.ProjectID, Filename: t.Filename}
	log := s.log.With().Str("op", op).Str("filename", t.Filename).Logger()

	rec, err := s.records.Find(ctx, name)
	if err != nil {
		if errors.Is(err, repositories.ErrFileNotFound) {
			return nil, err
		}
		return nil, s.fail(log, op, StepFindRecord, err)
	}

	if err := s.records.SetLocked(ctx, rec, locked); err != nil {
		return nil, s.fail(log, op, StepUpdateRecord, err)
	}

	log.Info().Str("id", rec.ID).Bool("locked", locked).Msg("lock state changed")
	return rec, nil
}

// Overwrite replaces the content of an existing file. The lock is cleared
// whoever holds it, and the record gets a fresh download link. The record
// must match the full company/project/filename key parsed from the name,
// in either lookup mode.
func (s *FileService) Overwrite(ctx context.Context, in Upload) (*models.FileRecord, error) {
	name, err := s.parse(in.RawName)
	if err != nil {
		return nil, err
	}
	log := s.log.With().Str("op", OpOverwrite).Str("path", name.Path()).Logger()

	rec, err := s.records.FindExact(ctx, name)
	if err != nil {
		if errors.Is(err, repositories.ErrFileNotFound) {
			return nil, err
		}
		return nil, s.fail(log, OpOverwrite, StepFindRecord, err)
	}

	if err := s.blobs.Delete(ctx, name); err != nil {
		if !errors.Is(err, repositories.ErrBlobNotFound) {
			return nil, s.fail(log, OpOverwrite, StepDeleteBlob, err)
		}
		log.Warn().Str("id", rec.ID).Msg("record had no blob, uploading fresh content")
	}

	link, err := s.blobs.Put(ctx, name, in.Content, in.Size, in.ContentType)
	if err != nil {
		return nil, s.fail(log, OpOverwrite, StepPutBlob, err)
	}

	if err := s.records.SetContent(ctx, rec, link); err != nil {
		return nil, s.fail(log, OpOverwrite, StepUpdateRecord, err)
	}

	log.Info().Str("id", rec.ID).Msg("file overwritten")
	return rec, nil
}

func (s *FileService) fail(log zerolog.Logger, op, step string, err error) error {
	log.Error().Err(err).Str("step", step).Msg("file operation failed")
	return &StepError{Op: op, Step: step, Err: err}
}
