package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/leadflow/internal/domain/model"
	"github.com/okian/leadflow/internal/domain/scoring"
	"github.com/okian/leadflow/pkg/metrics"
)

// Admission defaults.
const (
	DefaultPhoneRegion = "US"
	DefaultDateFormat  = "1/2/2006"
)

// Admitter validates, scores and stamps candidate leads. Both the bulk and
// the manual path go through it.
type Admitter struct {
	scorer     scoring.Scorer
	newID      func() string
	now        func() time.Time
	region     string
	dateFormat string
}

// NewAdmitter creates an admitter with the built-in scorer, random UUIDs and
// the wall clock.
func NewAdmitter(opts ...AdmitterOption) *Admitter {
	a := &Admitter{
		scorer:     scoring.NewRuleScorer(),
		newID:      uuid.NewString,
		now:        time.Now,
		region:     DefaultPhoneRegion,
		dateFormat: DefaultDateFormat,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Admit turns attrs into a lead. A missing name or email yields a
// *model.ValidationError; the attributes are not modified.
func (a *Admitter) Admit(ctx context.Context, attrs model.Attributes) (model.Lead, error) {
	if err := attrs.Validate(); err != nil {
		return model.Lead{}, err
	}
	res, err := a.scorer.Score(ctx, attrs)
	if err != nil {
		return model.Lead{}, fmt.Errorf("%w: %w", ErrAdmit, err)
	}
	if res.Score < 0 || res.Score > scoring.MaxScore {
		return model.Lead{}, fmt.Errorf("%w: score %d out of range", ErrAdmit, res.Score)
	}

	added := a.now()
	lead := model.Lead{
		ID:                    a.newID(),
		Attributes:            attrs,
		PhoneE164:             model.NormalizePhone(attrs.Phone, a.region),
		Score:                 res.Score,
		ConversionProbability: res.Probability,
		AddedAt:               added,
		DateAdded:             added.Format(a.dateFormat),
	}
	metrics.ObserveScore(lead.Score, lead.ConversionProbability)
	return lead, nil
}

func isValidation(err error) bool {
	return errors.Is(err, model.ErrValidation)
}
