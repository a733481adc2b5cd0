package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"netcrm/internal"
	"netcrm/internal/logger"
)

type Options struct {
	ChunkSize  int
	YieldEvery int
	// Timeout defaults to DefaultTimeout; a negative value disables it.
	Timeout    time.Duration
	Progress   ProgressFunc
	Normalizer *FieldNormalizer
	Tags       []string
	Enrich     func(*internal.Contact, internal.NormalizedRow)
	Logger     *zap.Logger
	// Now is the clock used for timeouts and ingestion timestamps.
	Now        func() time.Time
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.YieldEvery <= 0 {
		o.YieldEvery = DefaultYieldEvery
	}
	switch {
	case o.Timeout == 0:
		o.Timeout = DefaultTimeout
	case o.Timeout < 0:
		o.Timeout = 0
	}
	if o.Normalizer == nil {
		o.Normalizer = defaultNormalizer
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	o.Logger = logger.OrNop(o.Logger)
	return o
}

// Run decodes raw file bytes and turns them into deduplicated contacts.
//
// Terminal failures (empty input, spreadsheet containers, undecodable bytes,
// no header) return an error matching ErrEmptyInput, ErrUnsupportedFormat,
// ErrUndecodable or ErrNoHeader. Row problems never fail the run; they are
// reported in the outcome's diagnostics. A timeout returns the rows mapped so
// far with TimedOut set and a nil error.
func Run(ctx context.Context, raw []byte, opts Options) (internal.ImportOutcome, error) {
	opts = opts.withDefaults()
	log := opts.Logger
	start := opts.Now()
	outcome := internal.ImportOutcome{HeaderIndex: -1}

	fail := func(err error) (internal.ImportOutcome, error) {
		msg := err.Error()
		switch {
		case errors.Is(err, ErrEmptyInput):
			msg = "Empty CSV file"
		case errors.Is(err, ErrNoHeader):
			msg = "No valid header row found in CSV file"
		}
		outcome.Diagnostics = append(outcome.Diagnostics, internal.Diagnostic{Severity: internal.SeverityError, Message: msg})
		outcome.Elapsed = opts.Now().Sub(start)
		log.Warn("import rejected", zap.Error(err))
		return outcome, err
	}

	decoded, err := Decode(raw)
	if err != nil {
		return fail(err)
	}
	outcome.Encoding = decoded.Encoding
	if decoded.Guess != "" {
		outcome.Diagnostics = append(outcome.Diagnostics, internal.Diagnostic{
			Severity: internal.SeverityInfo,
			Message:  fmt.Sprintf("File decoded as %s (detected %s)", decoded.Encoding, decoded.Guess),
		})
	}

	lines := splitRecords(decoded.Text)
	delim := DetectDelimiter(lines)
	outcome.Delimiter = string(delim)

	loc, err := LocateHeader(lines, delim, opts.Normalizer)
	if err != nil {
		return fail(err)
	}
	outcome.HeaderIndex = loc.Index
	outcome.Header = loc.Cells
	if loc.Guessed {
		outcome.Diagnostics = append(outcome.Diagnostics, internal.Diagnostic{
			Severity: internal.SeverityWarning,
			Message:  fmt.Sprintf("No recognizable header row found; using line %d as header", loc.Index+1),
		})
	}

	data := make([]string, 0, len(lines)-loc.Index-1)
	for _, line := range lines[loc.Index+1:] {
		if !isBlank(line) {
			data = append(data, line)
		}
	}
	outcome.TotalRows = len(data)

	log.Info("import started",
		zap.String("encoding", decoded.Encoding),
		zap.String("delimiter", outcome.Delimiter),
		zap.Int("headerIndex", loc.Index),
		zap.Strings("header", loc.Cells),
		zap.Int("rows", len(data)),
	)

	stream := rowStream{
		delim:      delim,
		fields:     opts.Normalizer.NormalizeAll(loc.Cells),
		mapper:     RowMapper{Tags: opts.Tags, Enrich: opts.Enrich},
		chunkSize:  opts.ChunkSize,
		yieldEvery: opts.YieldEvery,
		timeout:    opts.Timeout,
		progress:   opts.Progress,
		now:        opts.Now,
		log:        log,
	}
	res := stream.run(ctx, data, start)
	outcome.Diagnostics = append(outcome.Diagnostics, res.diagnostics...)
	outcome.TimedOut = res.timedOut

	contacts, dupes := Deduplicate(res.contacts)
	outcome.Contacts = contacts
	outcome.Diagnostics = append(outcome.Diagnostics, dupes...)

	if len(contacts) == 0 && res.err == nil {
		outcome.Diagnostics = append(outcome.Diagnostics, internal.Diagnostic{
			Severity: internal.SeverityError,
			Message:  "No valid contacts found. Detected headers: " + strings.Join(nonBlankCells(loc.Cells), ", "),
		})
	}

	outcome.Elapsed = opts.Now().Sub(start)
	log.Info("import finished",
		zap.Int("contacts", len(contacts)),
		zap.Int("rows", outcome.TotalRows),
		zap.Int("processed", res.processed),
		zap.Int("duplicates", len(dupes)),
		zap.Bool("timedOut", res.timedOut),
		zap.Duration("elapsed", outcome.Elapsed),
	)
	return outcome, res.err
}
