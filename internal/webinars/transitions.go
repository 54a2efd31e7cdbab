package webinars

import (
	"fmt"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/apperrors"
)

// allowed lists the status edges a webinar may take. CANCELLED is reachable from
// every other status and handled separately.
var allowed = map[models.WebinarStatus][]models.WebinarStatus{
	models.WebinarStatusScheduled:   {models.WebinarStatusWaitingRoom, models.WebinarStatusLive},
	models.WebinarStatusWaitingRoom: {models.WebinarStatusLive},
	models.WebinarStatusLive:        {models.WebinarStatusEnded},
}

// CheckTransition validates moving from one status to another. noop is true when the
// webinar is already in the target state and nothing should happen.
func CheckTransition(from, to models.WebinarStatus) (noop bool, err error) {
	if !to.Valid() || !from.Valid() {
		return false, invalidTransition(from, to)
	}
	if from == to {
		if to == models.WebinarStatusScheduled {
			return false, invalidTransition(from, to)
		}
		return true, nil
	}
	if to == models.WebinarStatusCancelled {
		return false, nil
	}
	for _, next := range allowed[from] {
		if next == to {
			return false, nil
		}
	}
	return false, invalidTransition(from, to)
}

// Terminal reports whether no further transition other than cancellation applies.
func Terminal(s models.WebinarStatus) bool {
	return s == models.WebinarStatusEnded || s == models.WebinarStatusCancelled
}

func invalidTransition(from, to models.WebinarStatus) *apperrors.Error {
	e := apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidTransition,
		fmt.Sprintf("cannot move webinar from %s to %s", from, to))
	e.Metadata = map[string]string{"from": string(from), "to": string(to)}
	return e
}
