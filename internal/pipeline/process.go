package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"netcrm/internal"
	"netcrm/internal/config"
	"netcrm/internal/extract"
	"netcrm/internal/logger"
	"netcrm/internal/storage"
	"netcrm/internal/util"
)

var ErrTooLarge = errors.New("file too large")

// ImportService runs uploads through the pipeline, stores the contacts and
// records an upload history entry for every attempt.
type ImportService struct {
	db     *storage.DB
	cfg    config.Config
	log    *zap.Logger
	fields *FieldNormalizer
}

func NewImportService(db *storage.DB, cfg config.Config, log *zap.Logger, fields *FieldNormalizer) *ImportService {
	if fields == nil {
		fields = defaultNormalizer
	}
	return &ImportService{db: db, cfg: cfg, log: logger.OrNop(log), fields: fields}
}

type ImportRequest struct {
	UserID   string
	FileName string
	// FileType is csv, xlsx or html. It defaults to the file extension.
	FileType string
	Source   internal.ImportSource
	Raw      []byte
	Progress ProgressFunc
	Tags     []string
}

type ImportResult struct {
	Upload   internal.UploadRecord
	Inserted []internal.Contact
	Skipped  int
	Outcome  internal.ImportOutcome
}

// ImportFile imports one file for a user. Every call writes an upload record,
// including rejected files. The returned error is the pipeline's terminal
// error, if any; partial results are stored either way.
func (s *ImportService) ImportFile(ctx context.Context, req ImportRequest) (ImportResult, error) {
	start := time.Now()
	fileType := strings.ToLower(util.FirstNonEmpty(req.FileType, fileTypeOf(req.FileName)))
	rec := internal.UploadRecord{
		UserID:   util.FirstNonEmpty(req.UserID, s.cfg.DefaultUserID),
		FileName: util.FirstNonEmpty(req.FileName, "upload."+fileType),
		FileSize: int64(len(req.Raw)),
		FileType: fileType,
		Source:   req.Source,
	}
	if rec.Source == "" {
		rec.Source = internal.ImportSource(fileType)
	}
	log := s.log.With(zap.String("user", rec.UserID), zap.String("file", rec.FileName), zap.String("type", fileType))

	if s.cfg.ImportMaxBytes > 0 && rec.FileSize > s.cfg.ImportMaxBytes {
		err := fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrTooLarge, rec.FileSize, s.cfg.ImportMaxBytes)
		return s.reject(rec, start, log, err)
	}

	raw, err := toDelimited(fileType, req.Raw)
	if err != nil {
		return s.reject(rec, start, log, fmt.Errorf("read %s: %w", fileType, err))
	}

	timeout := s.cfg.ImportTimeout()
	if timeout == 0 {
		timeout = -1
	}
	outcome, runErr := Run(ctx, raw, Options{
		ChunkSize:  s.cfg.ImportChunkSize,
		YieldEvery: s.cfg.ImportYieldEvery,
		Timeout:    timeout,
		Progress:   req.Progress,
		Normalizer: s.fields,
		Tags:       req.Tags,
		Logger:     log,
	})
	pipelineDone := time.Now()

	res := ImportResult{Outcome: outcome}
	messages := outcome.Messages(0)
	if len(outcome.Contacts) > 0 {
		stored, err := s.db.InsertContacts(rec.UserID, outcome.Contacts)
		if err != nil {
			return res, err
		}
		res.Inserted = stored.Inserted
		res.Skipped = len(stored.Skipped)
		for _, c := range stored.Skipped {
			messages = append(messages, "Duplicate: "+util.FirstNonEmpty(util.Deref(c.Email), util.Deref(c.ProfileURL), c.Name)+" (already imported)")
		}
	}

	rec.ContactsImported = len(res.Inserted)
	rec.TotalRows = outcome.TotalRows
	rec.Status = uploadStatus(outcome, runErr)
	rec.Diagnostics = capMessages(messages, s.cfg.ImportErrorLimit)
	if rec.Status != internal.UploadSuccess {
		rec.ErrorMessage = firstErrorMessage(outcome, runErr)
	}
	rec.ProcessingSeconds = time.Since(start).Seconds()

	rec, err = s.db.InsertUpload(rec)
	if err != nil {
		return res, err
	}
	res.Upload = rec

	_ = s.db.InsertRun(traceID(), "upload:"+rec.ID,
		map[string]float64{
			"totalMs":    float64(time.Since(start).Milliseconds()),
			"pipelineMs": float64(pipelineDone.Sub(start).Milliseconds()),
		},
		map[string]int{
			"rows":        outcome.TotalRows,
			"contacts":    len(outcome.Contacts),
			"inserted":    len(res.Inserted),
			"skipped":     res.Skipped,
			"diagnostics": len(messages),
		})

	log.Info("upload stored",
		zap.String("upload", rec.ID),
		zap.String("status", string(rec.Status)),
		zap.Int("inserted", len(res.Inserted)),
		zap.Int("skipped", res.Skipped),
	)
	return res, runErr
}

func (s *ImportService) reject(rec internal.UploadRecord, start time.Time, log *zap.Logger, cause error) (ImportResult, error) {
	rec.Status = internal.UploadFailed
	rec.ErrorMessage = cause.Error()
	rec.Diagnostics = []string{cause.Error()}
	rec.ProcessingSeconds = time.Since(start).Seconds()
	stored, err := s.db.InsertUpload(rec)
	if err != nil {
		return ImportResult{}, errors.Join(cause, err)
	}
	log.Warn("upload rejected", zap.String("upload", stored.ID), zap.Error(cause))
	return ImportResult{Upload: stored}, cause
}

func toDelimited(fileType string, raw []byte) ([]byte, error) {
	switch fileType {
	case "xlsx":
		return extract.WorkbookToCSV(raw)
	case "html", "htm":
		return extract.TableToCSV(string(raw))
	default:
		return raw, nil
	}
}

func fileTypeOf(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	switch ext {
	case "xlsx", "html", "htm", "tsv", "txt":
		return ext
	}
	return "csv"
}

// uploadStatus is failed without contacts and partial when rows were dropped,
// collapsed as duplicates, cut off by the timeout or reported as errors.
func uploadStatus(outcome internal.ImportOutcome, runErr error) internal.UploadStatus {
	switch {
	case len(outcome.Contacts) == 0:
		return internal.UploadFailed
	case runErr != nil, outcome.TimedOut, outcome.ErrorCount() > 0, len(outcome.Contacts) < outcome.TotalRows:
		return internal.UploadPartial
	default:
		return internal.UploadSuccess
	}
}

func firstErrorMessage(outcome internal.ImportOutcome, runErr error) string {
	for _, d := range outcome.Diagnostics {
		if d.Severity == internal.SeverityError {
			return d.Message
		}
	}
	if runErr != nil {
		return runErr.Error()
	}
	if outcome.TimedOut {
		return "import timed out"
	}
	if skipped := outcome.TotalRows - len(outcome.Contacts); skipped > 0 {
		return fmt.Sprintf("%d of %d rows skipped", skipped, outcome.TotalRows)
	}
	return ""
}

func capMessages(messages []string, limit int) []string {
	if limit <= 0 || len(messages) <= limit {
		return messages
	}
	out := append([]string{}, messages[:limit]...)
	return append(out, fmt.Sprintf("... and %d more", len(messages)-limit))
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
