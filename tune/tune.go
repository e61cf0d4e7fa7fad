// Package tune adapts an external model trainer into an execution
// capability. The trainer is an arbitrary command (typically a Python
// entrypoint); runway only cares whether it exits cleanly.
package tune

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/inferent/runway/job"
	"github.com/inferent/runway/worker"
)

// Params parameterize a single fine-tuning run.
type Params struct {
	BaseModel   string
	DatasetPath string
	OutputDir   string

	BatchSize                int
	MicroBatchSize           int
	NumEpochs                int
	ValSetSize               int
	UseGradientCheckpointing bool
}

// DefaultParams returns the hyperparameters used when the caller supplies
// none.
func DefaultParams() Params {
	return Params{
		BatchSize:                8,
		MicroBatchSize:           2,
		NumEpochs:                1,
		ValSetSize:               3,
		UseGradientCheckpointing: true,
	}
}

// args renders the params as trainer command-line flags.
func (p Params) args() []string {
	return []string{
		"--base_model", p.BaseModel,
		"--data_path", p.DatasetPath,
		"--output_dir", p.OutputDir,
		"--batch_size", strconv.Itoa(p.BatchSize),
		"--micro_batch_size", strconv.Itoa(p.MicroBatchSize),
		"--num_epochs", strconv.Itoa(p.NumEpochs),
		"--val_set_size", strconv.Itoa(p.ValSetSize),
		"--use_gradient_checkpointing", strconv.FormatBool(p.UseGradientCheckpointing),
	}
}

// Runner invokes the external trainer command for fine-tune jobs.
type Runner struct {
	command string
	logger  *slog.Logger
}

// NewRunner creates a Runner. The command string is split on whitespace;
// the first token is the executable.
func NewRunner(command string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{command: command, logger: logger}
}

// Capability returns a worker.Capability that runs the trainer with the
// given params. Trainer stderr becomes the failure diagnostic.
func (r *Runner) Capability(p Params) worker.Capability {
	return worker.CapabilityFunc(func(ctx context.Context, rec *job.Record) error {
		parts := strings.Fields(r.command)
		if len(parts) == 0 {
			return fmt.Errorf("tune: no trainer command configured")
		}

		args := append(parts[1:], p.args()...)
		cmd := exec.CommandContext(ctx, parts[0], args...)

		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		r.logger.Info("trainer starting",
			slog.String("job_id", rec.JobID),
			slog.String("base_model", p.BaseModel),
		)

		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("%s", lastLine(msg))
			}
			return err
		}
		return nil
	})
}

// lastLine trims a stderr dump down to its final line, which for Python
// tracebacks is the actual exception message.
func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// WriteDataset saves an uploaded dataset under dir using the original
// naming scheme {jobID}-FINE_TUNE.json and returns the path. The directory
// is created if missing.
func WriteDataset(dir, jobID string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("tune: create dataset dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.json", jobID, job.TypeFineTune))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("tune: write dataset: %w", err)
	}
	return path, nil
}
