package dataset

import (
	"encoding/csv"
	"io"
	"os"

	"jobspider/internal/errors"

	"go.uber.org/zap"
)

// CleanResult reports what a Clean pass kept and dropped.
type CleanResult struct {
	RowsKept     int
	RowsSkipped  int
	SkippedLines []int
}

// Clean copies a postings CSV, dropping every row whose column count differs
// from the header. Spider runs that are killed mid-write leave truncated
// rows behind; this pass makes the file safe for downstream loads.
func Clean(inputPath, outputPath string, logger *zap.Logger) (*CleanResult, error) {
	in, err := os.Open(inputPath)
	if err != nil {
		return nil, errors.NotFound("opening input file", err)
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return nil, errors.Internal("creating output file", err)
	}
	defer out.Close()

	return clean(in, out, logger)
}

func clean(in io.Reader, out io.Writer, logger *zap.Logger) (*CleanResult, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	writer := csv.NewWriter(out)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.InvalidInput("input file is empty", nil)
	}
	if err != nil {
		return nil, errors.Internal("reading CSV header", err)
	}
	if err := writer.Write(header); err != nil {
		return nil, errors.Internal("writing CSV header", err)
	}

	expected := len(header)
	result := &CleanResult{}

	// Header is line 1.
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Only parse errors are confined to one line; any other reader
			// error repeats on the next Read.
			if _, ok := err.(*csv.ParseError); !ok {
				return nil, errors.Internal("reading CSV input", err)
			}
			logger.Warn("skipping unreadable line",
				zap.Int("line", line),
				zap.Error(err))
			result.RowsSkipped++
			result.SkippedLines = append(result.SkippedLines, line)
			continue
		}

		if len(row) != expected {
			logger.Warn("skipping malformed line",
				zap.Int("line", line),
				zap.Int("expected_columns", expected),
				zap.Int("got_columns", len(row)))
			result.RowsSkipped++
			result.SkippedLines = append(result.SkippedLines, line)
			continue
		}

		if err := writer.Write(row); err != nil {
			return nil, errors.Internal("writing CSV row", err)
		}
		result.RowsKept++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, errors.Internal("flushing cleaned CSV", err)
	}

	return result, nil
}
