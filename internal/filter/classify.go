package filter

import (
	"fmt"

	"labelscan/internal/config"
)

// Verdict is the filter engine's decision for one tracking record.
type Verdict string

const (
	// VerdictLabelOnly means the record shows exactly the label-creation
	// event and nothing else: the parcel never physically moved.
	VerdictLabelOnly Verdict = "label_only"
	// VerdictExcluded means the record conclusively shows something other
	// than a pure label-creation history.
	VerdictExcluded Verdict = "excluded"
	// VerdictIndeterminate means the record shape prevented a comparison
	// either way (nil record, status object missing).
	VerdictIndeterminate Verdict = "indeterminate"
)

// Result carries the verdict plus the observed status fields when a single
// activity entry was inspected, so reports can show what matched or
// mismatched without re-walking the raw record.
type Result struct {
	Verdict     Verdict
	Reason      string
	Description string
	Code        string
	Type        string
}

// Rules holds the external contract constants the classifier matches
// against: where the activity list lives and the exact expected values of
// the three status fields.
type Rules struct {
	ActivityPath     string
	Description      string
	Code             string
	Type             string
	DescriptionField string
	CodeField        string
	TypeField        string
}

// RulesFromConfig builds Rules from the filter configuration section.
func RulesFromConfig(cfg config.Filter) Rules {
	return Rules{
		ActivityPath:     cfg.ActivityPath,
		Description:      cfg.StatusDescription,
		Code:             cfg.StatusCode,
		Type:             cfg.StatusType,
		DescriptionField: cfg.DescriptionField,
		CodeField:        cfg.CodeField,
		TypeField:        cfg.TypeField,
	}
}

// Classify decides whether one tracking record is label-only. It is a pure
// function of the record: total, deterministic, and free of side effects.
//
// The checks are order-sensitive. More than one activity entry is conclusive
// proof of movement past label creation regardless of entry content, so the
// count checks run before any field comparison.
func (r Rules) Classify(record map[string]any) Result {
	if record == nil {
		return Result{Verdict: VerdictIndeterminate, Reason: "no record"}
	}

	raw, ok := Lookup(record, r.ActivityPath)
	if !ok {
		return Result{Verdict: VerdictExcluded, Reason: "no activity data"}
	}
	activities, ok := raw.([]any)
	if !ok {
		return Result{Verdict: VerdictExcluded, Reason: "no activity data"}
	}

	switch {
	case len(activities) == 0:
		return Result{Verdict: VerdictExcluded, Reason: "no activity records"}
	case len(activities) > 1:
		return Result{
			Verdict: VerdictExcluded,
			Reason:  fmt.Sprintf("%d activity records, expected exactly 1", len(activities)),
		}
	}

	entry := activities[0]
	description, okDesc := LookupString(entry, r.DescriptionField)
	code, okCode := LookupString(entry, r.CodeField)
	statusType, okType := LookupString(entry, r.TypeField)
	if !okDesc && !okCode && !okType {
		return Result{Verdict: VerdictIndeterminate, Reason: "activity status missing"}
	}

	result := Result{Description: description, Code: code, Type: statusType}

	// Exact comparison, trailing punctuation included: the upstream
	// description ends in ". " and a trimmed variant is a different status.
	switch {
	case description != r.Description:
		result.Verdict = VerdictExcluded
		result.Reason = "status description mismatch"
	case code != r.Code:
		result.Verdict = VerdictExcluded
		result.Reason = "status code mismatch"
	case statusType != r.Type:
		result.Verdict = VerdictExcluded
		result.Reason = "status type mismatch"
	default:
		result.Verdict = VerdictLabelOnly
		result.Reason = "matches label-only criteria exactly"
	}
	return result
}
