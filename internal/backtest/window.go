package backtest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const day = 24 * time.Hour

// Period is a half-open time interval [Start, End)
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the length of the period
func (p Period) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// Days returns the fractional number of days spanned by the period
func (p Period) Days() float64 {
	return p.Duration().Hours() / 24
}

// Valid reports whether Start is strictly before End
func (p Period) Valid() bool {
	return p.Start.Before(p.End)
}

// Contains reports whether t falls inside [Start, End)
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

func (p Period) String() string {
	return fmt.Sprintf("[%s, %s)", p.Start.Format(time.RFC3339), p.End.Format(time.RFC3339))
}

// Mode selects how training periods move between windows
type Mode string

const (
	// ModeRolling keeps the training length fixed and slides it forward
	ModeRolling Mode = "rolling"
	// ModeAnchored keeps the training start fixed and grows its end
	ModeAnchored Mode = "anchored"
)

// ParseMode converts a configuration string into a Mode
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRolling:
		return ModeRolling, nil
	case ModeAnchored:
		return ModeAnchored, nil
	default:
		return "", &ConfigError{Field: "mode", Reason: fmt.Sprintf("unknown window mode %q", s)}
	}
}

// WindowPolicy describes how the full range is split into windows
type WindowPolicy struct {
	TrainingSize time.Duration `json:"training_size"`
	TestingSize  time.Duration `json:"testing_size"`
	StepSize     time.Duration `json:"step_size"`
	Mode         Mode          `json:"mode"`
}

// NewDayPolicy builds a policy from sizes expressed in whole days
func NewDayPolicy(trainingDays, testingDays, stepDays int, mode Mode) WindowPolicy {
	return WindowPolicy{
		TrainingSize: time.Duration(trainingDays) * day,
		TestingSize:  time.Duration(testingDays) * day,
		StepSize:     time.Duration(stepDays) * day,
		Mode:         mode,
	}
}

// Validate checks sizes and mode
func (w WindowPolicy) Validate() error {
	if w.TrainingSize <= 0 {
		return &ConfigError{Field: "training_size", Reason: "must be positive"}
	}
	if w.TestingSize <= 0 {
		return &ConfigError{Field: "testing_size", Reason: "must be positive"}
	}
	if w.StepSize <= 0 {
		return &ConfigError{Field: "step_size", Reason: "must be positive"}
	}
	switch w.Mode {
	case ModeRolling, ModeAnchored:
	default:
		return &ConfigError{Field: "mode", Reason: fmt.Sprintf("unknown window mode %q", w.Mode)}
	}
	return nil
}

// MarshalJSON renders durations in days for reports
func (w WindowPolicy) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TrainingDays float64 `json:"training_days"`
		TestingDays  float64 `json:"testing_days"`
		StepDays     float64 `json:"step_days"`
		Mode         Mode    `json:"mode"`
	}{
		TrainingDays: w.TrainingSize.Hours() / 24,
		TestingDays:  w.TestingSize.Hours() / 24,
		StepDays:     w.StepSize.Hours() / 24,
		Mode:         w.Mode,
	})
}

// UnmarshalJSON reads the day-based form written by MarshalJSON
func (w *WindowPolicy) UnmarshalJSON(data []byte) error {
	var raw struct {
		TrainingDays float64 `json:"training_days"`
		TestingDays  float64 `json:"testing_days"`
		StepDays     float64 `json:"step_days"`
		Mode         Mode    `json:"mode"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	w.TrainingSize = time.Duration(raw.TrainingDays * float64(day))
	w.TestingSize = time.Duration(raw.TestingDays * float64(day))
	w.StepSize = time.Duration(raw.StepDays * float64(day))
	w.Mode = raw.Mode
	return nil
}

// Window pairs a training period with the testing period that follows it
type Window struct {
	Index    int    `json:"index"`
	Training Period `json:"training"`
	Testing  Period `json:"testing"`
}

// GenerateWindows splits fullRange into windows according to policy.
// A window is emitted only when its testing period ends on or before fullRange.End.
func GenerateWindows(fullRange Period, policy WindowPolicy) ([]Window, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if !fullRange.Valid() {
		return nil, &ConfigError{Field: "range", Reason: "start must be before end"}
	}

	windows := make([]Window, 0)
	for i := 0; ; i++ {
		offset := time.Duration(i) * policy.StepSize
		var training Period
		switch policy.Mode {
		case ModeAnchored:
			training = Period{Start: fullRange.Start, End: fullRange.Start.Add(policy.TrainingSize + offset)}
		default:
			start := fullRange.Start.Add(offset)
			training = Period{Start: start, End: start.Add(policy.TrainingSize)}
		}
		testing := Period{Start: training.End, End: training.End.Add(policy.TestingSize)}
		if testing.End.After(fullRange.End) {
			break
		}
		windows = append(windows, Window{Index: i, Training: training, Testing: testing})
	}
	return windows, nil
}
