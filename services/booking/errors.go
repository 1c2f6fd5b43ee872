package booking

import (
	"context"
	"errors"

	"calbook/models"
	"calbook/services/calendar"
)

// toFailure translates a calendar error into the data the dialogue layer sees.
func toFailure(err error) models.Failure {
	switch {
	case errors.Is(err, calendar.ErrAuth):
		return models.Failure{Kind: models.ErrorCalendarAuth, Reason: "the calendar rejected our credentials"}
	case errors.Is(err, calendar.ErrNotFound):
		return models.Failure{Kind: models.ErrorCalendarNotFound, Reason: "the calendar could not be found"}
	case errors.Is(err, calendar.ErrQuota):
		return models.Failure{Kind: models.ErrorCalendarQuota, Retryable: true, Reason: "the calendar is rate limiting us"}
	case errors.Is(err, context.DeadlineExceeded):
		return models.Failure{Kind: models.ErrorCalendarTransport, Retryable: true, Reason: "the calendar did not answer in time"}
	default:
		return models.Failure{Kind: models.ErrorCalendarTransport, Retryable: true, Reason: "the calendar could not be reached"}
	}
}

func invalid(reason string) models.Failure {
	return models.Failure{Kind: models.ErrorInvalidRequest, Reason: reason}
}
