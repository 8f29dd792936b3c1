package session

import (
	"errors"
	"fmt"
	"os"
	"slices"
)

// ErrSessionCorrupt means a session's recorded image file is missing from
// disk. Continuing without it would silently change refinement semantics, so
// the invocation fails instead.
var ErrSessionCorrupt = errors.New("session image missing from disk")

// ResolveReferences computes the ordered list of images to attach to a
// request. The session's last image, when it has one, is prepended before
// any explicit references: the model needs to see the image it is refining,
// and user-supplied references are guidance layered on top. A nil session or
// a freshly created one contributes nothing.
func ResolveReferences(sess *Session, explicit []string) ([]string, error) {
	if sess == nil || len(sess.Turns) == 0 {
		return slices.Clone(explicit), nil
	}

	last := sess.LastImagePath()
	if _, err := os.Stat(last); err != nil {
		return nil, fmt.Errorf("%w: %s (delete the session with --delete-session %s and start over)",
			ErrSessionCorrupt, last, sess.Name)
	}

	refs := make([]string, 0, len(explicit)+1)
	refs = append(refs, last)
	refs = append(refs, explicit...)
	return refs, nil
}
