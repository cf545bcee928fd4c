package launch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"jobspider/internal/config"
	"jobspider/internal/errors"
	"jobspider/internal/telemetry"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("jobspider/launch")

const (
	logsDirName   = "logs"
	dataDirPrefix = "data_"
)

// Layout is the on-disk shape of one crawl run: a shared logs directory and
// a data directory stamped with the run date.
type Layout struct {
	Root string
	Date time.Time
}

func NewLayout(root string, date time.Time) Layout {
	return Layout{Root: root, Date: date}
}

func (l Layout) LogsDir() string {
	return filepath.Join(l.Root, logsDirName)
}

// DataDir returns the dated output directory, e.g. data_20250107.
func (l Layout) DataDir() string {
	return filepath.Join(l.Root, dataDirPrefix+l.Date.Format("20060102"))
}

func (l Layout) DataFile(index int) string {
	return filepath.Join(l.DataDir(), fmt.Sprintf("data_%d.csv", index))
}

func (l Layout) LogFile(index int) string {
	return filepath.Join(l.LogsDir(), fmt.Sprintf("spider_%d.log", index))
}

// Prepare creates the logs and data directories. Existing directories are
// left untouched.
func (l Layout) Prepare() error {
	if err := os.MkdirAll(l.LogsDir(), 0o755); err != nil {
		return errors.Internal("creating logs directory", err)
	}
	if err := os.MkdirAll(l.DataDir(), 0o755); err != nil {
		return errors.Internal("creating data directory", err)
	}
	return nil
}

// SpiderProcess describes one launched spider child.
type SpiderProcess struct {
	Index    int
	Mode     string
	PID      int
	DataFile string
	LogFile  string
}

type Launcher struct {
	logger *zap.Logger
	config *config.Config
}

func NewLauncher(logger *zap.Logger, config *config.Config) *Launcher {
	return &Launcher{
		logger: logger,
		config: config,
	}
}

// RunOnce prepares the run layout for the given date and starts one detached
// spider process per configured mode. It returns as soon as every child has
// started; children are never waited on and their exit status is not
// observed here. Setup failures (directory creation, command resolution)
// abort the whole run.
func (l *Launcher) RunOnce(ctx context.Context, now time.Time) error {
	_, span := tracer.Start(ctx, "Launcher.RunOnce")
	defer span.End()

	layout := NewLayout(l.config.OutputRoot, now)
	if err := layout.Prepare(); err != nil {
		span.RecordError(err)
		return err
	}

	spiderPath, err := exec.LookPath(l.config.SpiderCommand)
	if err != nil {
		span.RecordError(err)
		return errors.Unavailable(
			fmt.Sprintf("spider command %q not found on PATH", l.config.SpiderCommand), err)
	}

	span.SetAttributes(
		telemetry.String("run.data_dir", layout.DataDir()),
		telemetry.Int("run.spiders", len(l.config.SpiderModes)),
	)

	procs, err := l.startSpiders(layout, spiderPath)
	if err != nil {
		span.RecordError(err)
		return err
	}

	for _, proc := range procs {
		l.logger.Info("spider started",
			zap.Int("index", proc.Index),
			zap.String("mode", proc.Mode),
			zap.Int("pid", proc.PID),
			zap.String("data_file", proc.DataFile),
			zap.String("log_file", proc.LogFile))
	}

	return nil
}

func (l *Launcher) startSpiders(layout Layout, spiderPath string) ([]SpiderProcess, error) {
	procs := make([]SpiderProcess, 0, len(l.config.SpiderModes))

	for i, mode := range l.config.SpiderModes {
		index := i + 1

		proc, err := l.startSpider(layout, spiderPath, index, mode)
		if err != nil {
			return nil, err
		}
		procs = append(procs, proc)
	}

	return procs, nil
}

func (l *Launcher) startSpider(layout Layout, spiderPath string, index int, mode string) (SpiderProcess, error) {
	dataFile := layout.DataFile(index)
	logFile := layout.LogFile(index)

	logOut, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return SpiderProcess{}, errors.Internal("opening spider log file", err)
	}
	defer func() {
		if cerr := logOut.Close(); cerr != nil {
			l.logger.Warn("failed to close spider log file", zap.Error(cerr))
		}
	}()

	cmd := exec.Command(spiderPath,
		"-mode", mode,
		"-targets", l.config.TargetsPath,
		"-out", dataFile,
	)
	// Combined stdout and stderr go to the log file, matching the
	// redirection the run expects.
	cmd.Stdout = logOut
	cmd.Stderr = logOut

	if err := cmd.Start(); err != nil {
		return SpiderProcess{}, errors.Internal(
			fmt.Sprintf("starting spider %d (%s)", index, mode), err)
	}

	// Reap the child when it exits so daemon mode does not accumulate
	// zombies. The exit status is deliberately not surfaced.
	go func() { _ = cmd.Wait() }()

	return SpiderProcess{
		Index:    index,
		Mode:     mode,
		PID:      cmd.Process.Pid,
		DataFile: dataFile,
		LogFile:  logFile,
	}, nil
}
