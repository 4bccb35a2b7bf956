package assess

import (
	"strings"

	"github.com/bosagora/votera/core"
	"github.com/pkg/errors"
)

const (
	MinScore = 1
	MaxScore = 10
)

// Scores collects one score per core.AssessCriteria entry. The zero value has nothing set.
type Scores struct {
	values [len(core.AssessCriteria)]int
	set    [len(core.AssessCriteria)]bool
}

func (s *Scores) Set(criterion, value int) error {
	if criterion < 0 || criterion >= len(s.values) {
		return errors.Wrapf(core.ErrInvalidInput, "criterion %d", criterion)
	}
	if value < MinScore || value > MaxScore {
		return errors.Wrapf(core.ErrInvalidInput, "%s score %d out of range", core.AssessCriteria[criterion], value)
	}
	s.values[criterion] = value
	s.set[criterion] = true
	return nil
}

// SetByName sets a score by criterion name, e.g. "completeness".
func (s *Scores) SetByName(name string, value int) error {
	for i, c := range core.AssessCriteria {
		if strings.EqualFold(c, name) {
			return s.Set(i, value)
		}
	}
	return errors.Wrapf(core.ErrInvalidInput, "unknown criterion %q", name)
}

// Validate fails unless every criterion holds a score in range.
func (s Scores) Validate() error {
	for i, ok := range s.set {
		if !ok {
			return errors.Wrapf(core.ErrInvalidInput, "%s score missing", core.AssessCriteria[i])
		}
		if s.values[i] < MinScore || s.values[i] > MaxScore {
			return errors.Wrapf(core.ErrInvalidInput, "%s score %d out of range", core.AssessCriteria[i], s.values[i])
		}
	}
	return nil
}

func (s Scores) Values() [len(core.AssessCriteria)]int {
	return s.values
}

func (s Scores) Uint64s() []uint64 {
	out := make([]uint64, len(s.values))
	for i, v := range s.values {
		out[i] = uint64(v)
	}
	return out
}
