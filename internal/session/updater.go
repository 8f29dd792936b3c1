package session

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mkline/orimg/internal/image"
)

// Updater commits the outcome of a successful generation to a session.
type Updater struct {
	store *Store
}

func NewUpdater(store *Store) *Updater {
	return &Updater{store: store}
}

// Commit copies the generated image into session-local storage and appends a
// turn recording the prompt and parameters. The copy survives the global
// output directory being cleared. Nothing is committed if the copy fails.
func (u *Updater) Commit(ctx context.Context, sess *Session, prompt, imagePath string, params TurnParameters) (*Turn, error) {
	dir, err := u.store.EnsureImageDir(sess.Name)
	if err != nil {
		return nil, err
	}

	ext := filepath.Ext(imagePath)
	if ext == "" {
		ext = ".png"
	}
	dest := filepath.Join(dir, uuid.New().String()+ext)
	if err := image.CopyFile(imagePath, dest); err != nil {
		return nil, fmt.Errorf("failed to copy image into session storage: %w", err)
	}

	turn := &Turn{
		Prompt:    prompt,
		ImagePath: dest,
		Params:    params,
	}
	if err := u.store.AppendTurn(ctx, sess, turn); err != nil {
		return nil, err
	}
	return turn, nil
}
