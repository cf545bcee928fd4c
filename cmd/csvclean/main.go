package main

import (
	"flag"
	"log"

	"jobspider/internal/dataset"

	"go.uber.org/zap"
)

func main() {
	input := flag.String("in", "data.csv", "input CSV file")
	output := flag.String("out", "cleaned_data.csv", "output CSV file")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	result, err := dataset.Clean(*input, *output, logger)
	if err != nil {
		logger.Fatal("clean failed", zap.Error(err))
	}

	logger.Info("done",
		zap.String("output", *output),
		zap.Int("rows_kept", result.RowsKept),
		zap.Int("rows_skipped", result.RowsSkipped))
}
