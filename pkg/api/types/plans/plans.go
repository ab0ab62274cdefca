package plans

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opst/somigrate/pkg/migration"
	"github.com/opst/somigrate/pkg/savedobjects"
	"github.com/opst/somigrate/pkg/savedobjects/indexmeta"
)

var ErrInvalidRequest = errors.New("plans: invalid request")

// Request is a request to plan an index offline.
type Request struct {
	Index  string          `json:"index"`
	Exists bool            `json:"exists"`
	Meta   *indexmeta.Meta `json:"meta,omitempty"`

	// Live is `_meta` of other live indices. It is optional, but without it
	// relocation into a missing index is not detected.
	Live migration.Live `json:"live,omitempty"`
}

func (r *Request) UnmarshalJSON(b []byte) error {
	raw := struct {
		Index  *string         `json:"index"`
		Exists *bool           `json:"exists"`
		Meta   *indexmeta.Meta `json:"meta"`
		Live   migration.Live  `json:"live"`
	}{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Index == nil || *raw.Index == "" {
		return fmt.Errorf(`%w: required field missing: "index"`, ErrInvalidRequest)
	}
	exists := raw.Meta != nil
	if raw.Exists != nil {
		exists = *raw.Exists
	}
	if !exists && raw.Meta != nil {
		return fmt.Errorf(`%w: "meta" is given for a missing index`, ErrInvalidRequest)
	}

	if _, ok := raw.Live[*raw.Index]; ok {
		return fmt.Errorf(`%w: "live" should not contain the planned index`, ErrInvalidRequest)
	}

	*r = Request{Index: *raw.Index, Exists: exists, Meta: raw.Meta, Live: raw.Live}
	return nil
}

// Detail is a migration plan with types to be picked up.
type Detail struct {
	migration.Plan
	Pickup []savedobjects.Type `json:"pickup"`
}

func Compose(p migration.Plan) Detail {
	return Detail{Plan: p, Pickup: p.PickupTypes()}
}

// Applied is a result of applying a plan.
type Applied struct {
	Detail
	AppliedBy string `json:"appliedBy,omitempty"`
}

// Report is the latest result of periodic drift checks.
type Report struct {
	CheckedAt time.Time `json:"checkedAt"`
	Plans     []Detail  `json:"plans"`

	// Pending lists indices which are not up to date.
	Pending []string `json:"pending"`
	Error   string   `json:"error,omitempty"`
}

func ComposeReport(d migration.Drift) Report {
	r := Report{
		CheckedAt: d.CheckedAt,
		Plans:     make([]Detail, 0, len(d.Plans)),
		Pending:   d.Pending(),
	}
	for _, p := range d.Plans {
		r.Plans = append(r.Plans, Compose(p))
	}
	if d.Err != nil {
		r.Error = d.Err.Error()
	}
	return r
}
