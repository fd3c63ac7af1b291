package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/api/responses"
	"github.com/aquaflowhq/aquaflow-backend/internal/engagement"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

type engagementSignal func(ctx context.Context, customerID uuid.UUID) (engagement.Status, error)

func engagementHandler(signal engagementSignal, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := requestCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := signal(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, status)
	}
}

// EngagementStart begins or resumes the customer's attempt.
func EngagementStart(mgr *engagement.Manager, logg *logger.Logger) http.HandlerFunc {
	return engagementHandler(mgr.Start, logg)
}

func EngagementPause(mgr *engagement.Manager, logg *logger.Logger) http.HandlerFunc {
	return engagementHandler(mgr.Pause, logg)
}

// EngagementVisibilityLost pauses like EngagementPause but marks the
// interruption so clients can message it differently on return.
func EngagementVisibilityLost(mgr *engagement.Manager, logg *logger.Logger) http.HandlerFunc {
	return engagementHandler(mgr.VisibilityLost, logg)
}

func EngagementSkip(mgr *engagement.Manager, logg *logger.Logger) http.HandlerFunc {
	return engagementHandler(mgr.Skip, logg)
}

// EngagementFinish reports the client-observed completion signal. The
// first signal to land wins; the waiver is granted exactly once.
func EngagementFinish(mgr *engagement.Manager, logg *logger.Logger) http.HandlerFunc {
	return engagementHandler(mgr.Finish, logg)
}

func EngagementStatus(mgr *engagement.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := requestCustomerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, mgr.Status(r.Context(), customerID))
	}
}
