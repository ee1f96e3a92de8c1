package backtest

import (
	"fmt"

	"github.com/yourusername/strategy-validator/internal/config"
	"github.com/yourusername/strategy-validator/internal/params"
)

// RunSpec bundles everything Orchestrator.Run needs, derived from application config
type RunSpec struct {
	FullRange    Period
	Policy       WindowPolicy
	Orchestrator OrchestratorConfig
	Space        params.Space
	Template     StrategyTemplate
}

// FromConfig converts app config into the inputs of one walk-forward run
func FromConfig(cfg *config.Config) (RunSpec, error) {
	if cfg == nil {
		return RunSpec{}, fmt.Errorf("config is required")
	}
	wf := cfg.WalkForward

	start, end, err := wf.DateRange()
	if err != nil {
		return RunSpec{}, err
	}
	mode, err := ParseMode(wf.Mode)
	if err != nil {
		return RunSpec{}, err
	}
	metric, err := ParseRankingMetric(wf.RankingMetric)
	if err != nil {
		return RunSpec{}, err
	}
	space, err := SpaceFromConfig(cfg.Optimizer.Parameters)
	if err != nil {
		return RunSpec{}, err
	}

	spec := RunSpec{
		FullRange: Period{Start: start, End: end},
		Policy:    NewDayPolicy(wf.TrainingDays, wf.TestingDays, wf.StepDays, mode),
		Orchestrator: OrchestratorConfig{
			MaxConcurrency: wf.MaxConcurrency,
			RankingMetric:  metric,
			RiskFreeRate:   wf.RiskFreeRate,
			ZeroTolerance:  wf.ZeroTolerance,
			Bands:          RobustnessBands{Robust: wf.RobustThreshold, Marginal: wf.MarginalThreshold},
		},
		Space: space,
		Template: StrategyTemplate{
			Name:     cfg.Strategy.Name,
			Version:  cfg.Strategy.Version,
			Settings: cfg.Strategy.Settings,
		},
	}

	return spec, spec.Validate()
}

// Validate checks the derived run inputs before any window runs
func (s RunSpec) Validate() error {
	if !s.FullRange.Valid() {
		return &ConfigError{Field: "range", Reason: "start must be before end"}
	}
	if err := s.Policy.Validate(); err != nil {
		return err
	}
	if err := s.Space.Validate(); err != nil {
		return &ConfigError{Field: "parameter_space", Reason: err.Error()}
	}
	if s.Template.Name == "" {
		return &ConfigError{Field: "strategy", Reason: "name is required"}
	}
	_, err := s.Orchestrator.withDefaults()
	return err
}

// SpaceFromConfig builds a parameter space from configured parameters
func SpaceFromConfig(parameters []config.ParameterConfig) (params.Space, error) {
	out := make([]params.Parameter, 0, len(parameters))
	for _, p := range parameters {
		kind, err := params.ParseKind(p.Type)
		if err != nil {
			return params.Space{}, &ConfigError{Field: "parameter_space", Reason: err.Error()}
		}
		out = append(out, params.Parameter{
			Name:   p.Name,
			Type:   kind,
			Min:    p.Min,
			Max:    p.Max,
			Step:   p.Step,
			Values: append([]string(nil), p.Values...),
		})
	}
	return params.NewSpace(out...), nil
}
