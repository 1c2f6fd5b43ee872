// File: services/intelligence/interface.go
package intelligence

import (
	"context"
	"errors"

	"calbook/models"

	"go.uber.org/zap"
)

// ErrNoCandidates is returned when the model produced no usable answer.
var ErrNoCandidates = errors.New("model returned no candidates")

// IntentExtractor turns one utterance into a StructuredIntent. Output is
// untrusted and must be sanitized by the caller.
type IntentExtractor interface {
	Extract(ctx context.Context, utterance string, sc models.SessionContext) (models.StructuredIntent, error)
}

// FallbackExtractor asks Primary first and Secondary when Primary fails.
type FallbackExtractor struct {
	Primary   IntentExtractor
	Secondary IntentExtractor
	Logger    *zap.Logger
}

func (f *FallbackExtractor) Extract(ctx context.Context, utterance string, sc models.SessionContext) (models.StructuredIntent, error) {
	in, err := f.Primary.Extract(ctx, utterance, sc)
	if err == nil {
		return in, nil
	}
	if f.Logger != nil {
		f.Logger.Warn("primary extractor failed, using fallback", zap.Error(err))
	}
	if ctx.Err() != nil {
		return models.StructuredIntent{}, err
	}
	return f.Secondary.Extract(ctx, utterance, sc)
}
