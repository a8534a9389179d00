package requests

import (
	"time"

	"github.com/triarqhealth/iam-portal/model"
	"github.com/triarqhealth/iam-portal/params"
)

// DaysOpen returns the whole days elapsed since the request was created,
// truncated toward zero.
func DaysOpen(req *model.AccessRequest, now time.Time) int {
	elapsed := now.Sub(req.CreatedAt)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed.Hours() / 24)
}

// IsOverSLA reports whether an open request has exceeded the service-level
// window. Requests in a terminal status are never over SLA. Derived on read,
// never persisted.
func IsOverSLA(req *model.AccessRequest, now time.Time) bool {
	if req.Terminal() {
		return false
	}
	return DaysOpen(req, now) > params.SLADays
}
