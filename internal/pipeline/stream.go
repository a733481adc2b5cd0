package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"go.uber.org/zap"

	"netcrm/internal"
)

const (
	DefaultChunkSize  = 1000
	DefaultYieldEvery = 100
	DefaultTimeout    = 30 * time.Second

	chunkProgressCap = 95.0
)

// ProgressFunc receives a human readable status and a percentage in [0, 100].
type ProgressFunc func(message string, percent float64)

type streamResult struct {
	contacts    []internal.Contact
	diagnostics []internal.Diagnostic
	processed   int
	timedOut    bool
	err         error
}

type rowStream struct {
	delim      rune
	fields     []string
	mapper     RowMapper
	chunkSize  int
	yieldEvery int
	timeout    time.Duration
	progress   ProgressFunc
	now        func() time.Time
	log        *zap.Logger
}

// run maps data lines chunk by chunk. Between chunks, and every yieldEvery
// rows, it reports progress and yields the processor. Once the timeout has
// elapsed after a chunk, remaining rows are dropped and the partial result
// returned.
func (s rowStream) run(ctx context.Context, lines []string, start time.Time) streamResult {
	res := streamResult{}
	total := len(lines)

	for chunkStart := 0; chunkStart < total; chunkStart += s.chunkSize {
		chunkEnd := min(chunkStart+s.chunkSize, total)

		for i := chunkStart; i < chunkEnd; i++ {
			rowNo := i + 1
			contact, diags := s.mapper.Map(s.normalize(parseLine(lines[i], s.delim)), rowNo, s.now())
			res.diagnostics = append(res.diagnostics, diags...)
			if contact != nil {
				res.contacts = append(res.contacts, *contact)
			}
			res.processed = rowNo

			if rowNo%s.yieldEvery == 0 {
				s.report(fmt.Sprintf("Processing row %d...", rowNo), percent(rowNo, total))
				runtime.Gosched()
			}
		}

		s.report(fmt.Sprintf("Processed %d rows...", chunkEnd), percent(chunkEnd, total))
		s.log.Debug("chunk processed", zap.Int("rows", chunkEnd), zap.Int("total", total), zap.Int("contacts", len(res.contacts)))
		runtime.Gosched()

		if chunkEnd == total {
			break
		}
		if err := ctx.Err(); err != nil {
			res.err = err
			res.diagnostics = append(res.diagnostics, internal.Diagnostic{
				Severity: internal.SeverityWarning,
				Message:  fmt.Sprintf("Processing cancelled. Processed %d of %d rows (%d contacts).", chunkEnd, total, len(res.contacts)),
			})
			return res
		}
		if s.timeout > 0 && s.now().Sub(start) > s.timeout {
			res.timedOut = true
			res.diagnostics = append(res.diagnostics, internal.Diagnostic{
				Severity: internal.SeverityWarning,
				Message: fmt.Sprintf("Processing timed out after %s seconds. Processed %d of %d rows (%d contacts).",
					strconv.FormatFloat(s.timeout.Seconds(), 'f', -1, 64), chunkEnd, total, len(res.contacts)),
			})
			s.log.Warn("import timed out", zap.Duration("timeout", s.timeout), zap.Int("processed", chunkEnd), zap.Int("total", total))
			return res
		}
	}

	s.report(fmt.Sprintf("Processing complete: %d rows processed", res.processed), 100)
	return res
}

// normalize keys cells by the normalized header. When two columns share a
// field the first non-empty value wins.
func (s rowStream) normalize(cells internal.RawRow) internal.NormalizedRow {
	row := make(internal.NormalizedRow, len(s.fields))
	for i, field := range s.fields {
		if i >= len(cells) || field == "" {
			continue
		}
		if row[field] == "" {
			row[field] = cells[i]
		}
	}
	return row
}

func (s rowStream) report(message string, pct float64) {
	if s.progress != nil {
		s.progress(message, pct)
	}
}

func percent(done, total int) float64 {
	if total == 0 {
		return chunkProgressCap
	}
	return min(float64(done)/float64(total)*100, chunkProgressCap)
}
