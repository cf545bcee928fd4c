package targets

import (
	"bufio"
	"os"
	"strings"

	"jobspider/internal/errors"
)

// Load reads the crawl target list: one search URL per line, blank lines
// skipped. The file is the hand-maintained input to every run, so an empty
// result is treated as invalid input rather than an empty crawl.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NotFound("opening targets file", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Internal("reading targets file", err)
	}

	if len(urls) == 0 {
		return nil, errors.InvalidInput("targets file contains no URLs", nil)
	}

	return urls, nil
}
