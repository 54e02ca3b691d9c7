package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"extrinsicScope/internal/chain"
	"extrinsicScope/internal/config"
	"extrinsicScope/internal/events"
	"extrinsicScope/internal/model"
	"extrinsicScope/internal/storage"
)

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var chainClient *chain.Client
	if cfg.Metadata == "" && cfg.RPCURL != "" {
		chainClient, err = chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
	}

	registry, err := loadRegistry(ctx, cfg.Common, chainClient)
	if err != nil {
		return err
	}
	decoder := events.NewDecoder(registry, cfg.DomainPallets...)

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.Uint32("spec_version", registry.Version()),
	)

	job := decodeJob{
		in:         cfg.In,
		out:        cfg.Out,
		errors:     cfg.Errors,
		checkpoint: storage.NewCheckpointStore(cfg.Checkpoint),
		every:      checkpointEvery,
	}
	stats, err := decodeFile(ctx, job, decoder, logger)
	if err != nil {
		return err
	}

	logger.Info("decode complete",
		zap.Int("receipts", stats.receipts),
		zap.Int("events", stats.events),
		zap.Int("failed", stats.failed),
	)
	return nil
}

// checkpointEvery is the number of input lines decoded between checkpoints.
const checkpointEvery = 1000

type decodeJob struct {
	in         string
	out        string
	errors     string
	checkpoint *storage.CheckpointStore
	every      uint64
}

// decodeFile decodes job.in into the job's outputs. With checkpoints enabled
// a resumed run skips the checkpointed lines and cuts each output back to the
// size it had when the checkpoint was taken.
func decodeFile(ctx context.Context, job decodeJob, decoder *events.Decoder, logger *zap.Logger) (decodeStats, error) {
	cp, resume, err := job.checkpoint.Load(job.in)
	if err != nil {
		return decodeStats{}, err
	}
	var skip uint64
	if resume {
		skip = cp.LastProcessed
		logger.Info("resume from checkpoint", zap.Uint64("last_processed_line", skip))
	}

	inputFile, err := os.Open(job.in)
	if err != nil {
		return decodeStats{}, fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	outWriter, err := newJSONLWriter(job.out, resumeSize(cp, resume, job.out))
	if err != nil {
		return decodeStats{}, err
	}
	defer outWriter.Close()

	errWriter, err := newJSONLWriter(job.errors, resumeSize(cp, resume, job.errors))
	if err != nil {
		return decodeStats{}, err
	}
	defer errWriter.Close()

	var commit func(uint64) error
	if job.checkpoint.Enabled() {
		commit = func(lines uint64) error {
			outSize, err := outWriter.Offset()
			if err != nil {
				return fmt.Errorf("flush output: %w", err)
			}
			errSize, err := errWriter.Offset()
			if err != nil {
				return fmt.Errorf("flush errors: %w", err)
			}
			return job.checkpoint.Save(job.in, lines, map[string]int64{job.out: outSize, job.errors: errSize})
		}
	}

	stats, err := decodeReceipts(ctx, inputFile, skip, decoder, outWriter, errWriter, job.every, commit)
	if err != nil {
		if ctx.Err() != nil && commit != nil && stats.lines > skip {
			if cerr := commit(stats.lines); cerr != nil {
				logger.Warn("save checkpoint failed", zap.Error(cerr))
			}
			logger.Info("decode interrupted", zap.Uint64("last_processed_line", stats.lines))
		}
		return stats, err
	}

	if err := outWriter.Flush(); err != nil {
		return stats, fmt.Errorf("flush output: %w", err)
	}
	if err := errWriter.Flush(); err != nil {
		return stats, fmt.Errorf("flush errors: %w", err)
	}
	if commit != nil {
		if err := commit(stats.lines); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// resumeSize returns the size an output is cut back to before writing: zero
// for a fresh run, the checkpointed size on resume, and -1 when a resumed
// checkpoint does not know the file.
func resumeSize(cp storage.Checkpoint, resume bool, path string) int64 {
	if !resume {
		return 0
	}
	if size, ok := cp.Offsets[path]; ok {
		return size
	}
	return -1
}

type decodeStats struct {
	lines    uint64
	receipts int
	events   int
	failed   int
}

// decodeReceipts reads receipts JSONL from r, skipping the first skip lines,
// and writes one typed event per line to out. Receipts that fail to decode
// are written to errs and do not stop the run. When commit is set it is
// called with the number of handled lines once every `every` lines.
func decodeReceipts(ctx context.Context, r io.Reader, skip uint64, decoder *events.Decoder, out, errs *jsonlWriter, every uint64, commit func(uint64) error) (decodeStats, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var stats decodeStats
	for scanner.Scan() {
		if stats.lines < skip {
			stats.lines++
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := decodeLine(scanner.Bytes(), decoder, out, errs, &stats); err != nil {
			return stats, err
		}
		stats.lines++
		if commit != nil && every > 0 && stats.lines%every == 0 {
			if err := commit(stats.lines); err != nil {
				return stats, err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}
	return stats, nil
}

func decodeLine(data []byte, decoder *events.Decoder, out, errs *jsonlWriter, stats *decodeStats) error {
	line := bytes.TrimSpace(data)
	if len(line) == 0 {
		return nil
	}
	stats.receipts++

	var receipt model.Receipt
	if err := json.Unmarshal(line, &receipt); err != nil {
		stats.failed++
		writeDecodeError(errs, model.DecodeError{EventIndex: -1, Error: err.Error()})
		return nil
	}

	bundle, err := events.NewBundle(decoder, receipt)
	if err != nil {
		stats.failed++
		writeDecodeError(errs, events.DecodeErrorRecord(receipt, err))
		return nil
	}
	typed, err := events.TypedEvents(bundle)
	if err != nil {
		stats.failed++
		writeDecodeError(errs, events.DecodeErrorRecord(receipt, err))
		return nil
	}

	for _, ev := range typed {
		if err := out.Write(ev); err != nil {
			return err
		}
		stats.events++
	}
	return nil
}

type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
}

// newJSONLWriter opens path for writing after its first size bytes. A
// negative size keeps the whole file.
func newJSONLWriter(path string, size int64) (*jsonlWriter, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	if size >= 0 {
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("stat file: %w", err)
		}
		if info.Size() > size {
			if err := file.Truncate(size); err != nil {
				file.Close()
				return nil, fmt.Errorf("truncate file: %w", err)
			}
		}
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek file: %w", err)
	}

	return &jsonlWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *jsonlWriter) Flush() error {
	return w.writer.Flush()
}

// Offset flushes pending lines and returns the file size.
func (w *jsonlWriter) Offset() (int64, error) {
	if err := w.writer.Flush(); err != nil {
		return 0, err
	}
	return w.file.Seek(0, io.SeekCurrent)
}

func (w *jsonlWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func writeDecodeError(writer *jsonlWriter, errRecord model.DecodeError) {
	if writer == nil {
		return
	}
	_ = writer.Write(errRecord)
}
