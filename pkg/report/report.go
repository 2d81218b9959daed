package report

import (
	"github.com/bcaldwell/cardsync/pkg/pipeline"
	"k8s.io/klog"
)

// Reporter publishes the results of a sync run.
type Reporter interface {
	Report(results []pipeline.RunResult) error
}

// LogReporter writes one line per cardholder.
type LogReporter struct{}

func (LogReporter) Report(results []pipeline.RunResult) error {
	for _, r := range results {
		status := "ok"
		switch {
		case !r.Success:
			status = "partial"
		case r.Degraded:
			status = "unchecked"
		}

		klog.Infof("%s [%s/%s]: %d rows, %d valid, %d duplicates, uploaded %d/%d (%d already in ledger), recorded %d in %s\n",
			r.Cardholder, status, r.Mode, r.Extracted, r.Valid, r.Duplicates, r.Uploaded, r.Unique, r.AlreadyInLedger, r.Recorded, r.Duration)
	}
	return nil
}

// Multi reports to every reporter and returns the first error.
type Multi []Reporter

func (m Multi) Report(results []pipeline.RunResult) error {
	var first error
	for _, r := range m {
		if err := r.Report(results); err != nil {
			klog.Errorf("Failed to report run results: %v\n", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
