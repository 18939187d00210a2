package analysis

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/couchcryptid/outage-equity-service/internal/domain"
)

// FanOut returns an Auditor that publishes to every non-nil auditor. It
// returns nil when none are given.
func FanOut(auditors ...Auditor) Auditor {
	var live fanOut
	for _, a := range auditors {
		if a != nil {
			live = append(live, a)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return live
}

type fanOut []Auditor

// Publish tries every auditor and reports all failures together.
func (f fanOut) Publish(ctx context.Context, audit domain.QueryAudit) error {
	var result *multierror.Error
	for _, a := range f {
		if err := a.Publish(ctx, audit); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
