// Package engine implements the batch identity-matching core: match policy,
// directory runner, annotation of matched images, and the deadline executor.
package engine

import (
	"errors"
	"fmt"

	"github.com/facefinder/facefinder/internal/face"
)

// Mode selects how per-image match records decide whether an image qualifies.
type Mode string

// Supported match modes.
const (
	// ModeIndividually qualifies an image if any reference matched.
	ModeIndividually Mode = "individually"
	// ModeTogether qualifies an image only if every reference matched at
	// least once in that image.
	ModeTogether Mode = "together"
)

// ErrUnknownPolicy is returned for any mode outside the two recognized values.
var ErrUnknownPolicy = errors.New("unknown match policy")

// ParseMode validates a mode string. An empty string selects ModeIndividually.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeIndividually, nil
	case ModeIndividually, ModeTogether:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Qualifies decides whether an image with the given match records satisfies
// the policy for a reference set of refCount entries. Records are produced at
// or above the similarity threshold, so the policy is a pure decision over
// which records exist; all records are kept for qualifying images.
//
// Under ModeTogether a single detection that cleared the threshold against
// several references counts toward each of them. That mirrors the behavior
// callers depend on; requiring distinct detections per reference would change
// results for group photos.
func (m Mode) Qualifies(records []face.MatchRecord, refCount int) (bool, error) {
	switch m {
	case ModeIndividually:
		return len(records) > 0, nil
	case ModeTogether:
		if refCount == 0 {
			return false, nil
		}
		matched := make(map[int]struct{}, refCount)
		for _, r := range records {
			matched[r.RefIndex] = struct{}{}
		}
		return len(matched) == refCount, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownPolicy, string(m))
	}
}
