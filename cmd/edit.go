package cmd

import (
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/inference-sim/slo-sim/sim"
	"github.com/inference-sim/slo-sim/sim/session"
)

// scenarioPath is the file the editing commands read and rewrite.
func scenarioPath() string {
	if path := viper.GetString(keyConfig); path != "" {
		return path
	}
	return defaultScenarioPath
}

// editScenario loads path into a session, applies edit and writes the result
// back. An edit that leaves the scenario invalid is still saved, with a
// warning, so a sequence of edits can pass through invalid states.
func editScenario(path string, edit func(*session.Session) error) (sim.Config, error) {
	cfg, err := sim.LoadConfig(path)
	if err != nil {
		return sim.Config{}, err
	}
	s := session.New(cfg, nil)
	defer s.Close()

	if err := edit(s); err != nil {
		var verr *sim.ValidationError
		if !errors.As(err, &verr) {
			return sim.Config{}, err
		}
		for _, p := range verr.Problems {
			logrus.Warnf("scenario saved with problem: %s", p)
		}
	}
	next := s.Config()
	if err := sim.SaveConfig(path, next); err != nil {
		return sim.Config{}, err
	}
	return next, nil
}
