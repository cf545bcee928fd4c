package dataset

import (
	"encoding/csv"
	"os"
	"sync"

	"jobspider/internal/errors"
	"jobspider/internal/models"
)

// Writer appends job postings to a CSV file. The header is written once when
// the file is created; concurrent Append calls are serialized.
type Writer struct {
	mutex sync.Mutex
	file  *os.File
	csv   *csv.Writer
}

func NewWriter(path string) (*Writer, error) {
	info, err := os.Stat(path)
	fresh := os.IsNotExist(err) || (err == nil && info.Size() == 0)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Internal("opening output file", err)
	}

	w := &Writer{
		file: f,
		csv:  csv.NewWriter(f),
	}

	if fresh {
		if err := w.csv.Write(models.CSVHeader()); err != nil {
			f.Close()
			return nil, errors.Internal("writing CSV header", err)
		}
		w.csv.Flush()
		if err := w.csv.Error(); err != nil {
			f.Close()
			return nil, errors.Internal("flushing CSV header", err)
		}
	}

	return w, nil
}

func (w *Writer) Append(posting *models.JobPosting) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if err := w.csv.Write(posting.CSVRow()); err != nil {
		return errors.Internal("writing CSV row", err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return errors.Internal("flushing CSV row", err)
	}
	return nil
}

func (w *Writer) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.file.Close()
		return errors.Internal("flushing CSV output", err)
	}
	return w.file.Close()
}
