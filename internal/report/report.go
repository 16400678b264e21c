// Package report renders a finished run as a YAML document for the
// --report flag. The layout is stable so it can be diffed between runs.
package report

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/vk/labrig/internal/executor"
)

// Step is one step's row in the report.
type Step struct {
	ID       string `yaml:"id"`
	State    string `yaml:"state"`
	Duration string `yaml:"duration,omitempty"`
	Size     string `yaml:"size,omitempty"`
	Error    string `yaml:"error,omitempty"`
}

// Report summarizes a whole run.
type Report struct {
	RunID      string `yaml:"run_id"`
	Started    string `yaml:"started"`
	Duration   string `yaml:"duration"`
	Succeeded  int    `yaml:"succeeded"`
	Failed     int    `yaml:"failed,omitempty"`
	Skipped    int    `yaml:"skipped,omitempty"`
	FailedStep string `yaml:"failed_step,omitempty"`
	TotalSize  string `yaml:"total_size,omitempty"`
	Steps      []Step `yaml:"steps"`
}

// FromResult converts an executor result into its report form.
func FromResult(res *executor.Result) *Report {
	rep := &Report{
		RunID:    res.RunID,
		Started:  res.Started.UTC().Format(time.RFC3339),
		Duration: res.Duration.Round(time.Millisecond).String(),
		Steps:    make([]Step, 0, len(res.Steps)),
	}

	var total int64
	for _, sr := range res.Steps {
		row := Step{ID: sr.Step.ID(), State: sr.State.String()}
		if sr.State == executor.Done || sr.State == executor.Failed {
			row.Duration = sr.Duration.Round(time.Millisecond).String()
		}
		if sr.Bytes > 0 {
			row.Size = humanize.Bytes(uint64(sr.Bytes))
			total += sr.Bytes
		}
		if sr.Err != nil {
			row.Error = sr.Err.Error()
		}
		rep.Steps = append(rep.Steps, row)
	}

	counts := res.CountByState()
	rep.Succeeded = counts[executor.Done]
	rep.Failed = counts[executor.Failed]
	rep.Skipped = counts[executor.Skipped]
	if res.FirstFailure != nil {
		rep.FailedStep = res.FirstFailure.Step.ID()
	}
	if total > 0 {
		rep.TotalSize = humanize.Bytes(uint64(total))
	}
	return rep
}

// Write marshals the report and writes it to path.
func (r *Report) Write(path string) error {
	out, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}
