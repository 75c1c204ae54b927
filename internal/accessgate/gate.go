// Package accessgate implements requestAccess: the single operation that
// enforces visibility and passphrase before minting a playback capability.
package accessgate

import (
	"context"
	"fmt"

	"github.com/alexedwards/argon2id"

	"github.com/vaultstream/vaultstream/internal/apperr"
	"github.com/vaultstream/vaultstream/internal/models"
	"github.com/vaultstream/vaultstream/internal/security"
	"github.com/vaultstream/vaultstream/internal/videostore"
)

var passphraseParams = &argon2id.Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashPassphrase produces an argon2id hash for storage on a Video record.
// Used by the upload handler when a passphrase is supplied, and available
// to the out-of-scope metadata CRUD collaborator when an owner sets or
// changes a passphrase.
func HashPassphrase(passphrase string) (string, error) {
	return argon2id.CreateHash(passphrase, passphraseParams)
}

// Gate enforces spec §4.E's requestAccess logic.
type Gate struct {
	videos videostore.Finder
	signer *security.Signer
}

func New(videos videostore.Finder, signer *security.Signer) *Gate {
	return &Gate{videos: videos, signer: signer}
}

// Result is the success shape of requestAccess.
type Result struct {
	StreamURL string
	Metadata  models.PublicMetadata
}

// RequestAccess fetches the video, enforces visibility/passphrase, and
// mints a master-playlist token on success.
func (g *Gate) RequestAccess(ctx context.Context, videoID, requestingUserID, passphrase string) (*Result, error) {
	v, err := g.videos.FindVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if v.Status != models.StatusReady {
		return nil, apperr.NotReady(string(v.Status))
	}

	if v.Visibility == models.VisibilityPrivate && !v.IsOwner(requestingUserID) {
		return nil, apperr.AccessDenied("video is private")
	}

	if v.RequiresPassphrase() {
		if passphrase == "" {
			return nil, apperr.PassphraseRequired()
		}
		match, err := argon2id.ComparePasswordAndHash(passphrase, v.PassphraseHash)
		if err != nil {
			return nil, fmt.Errorf("comparing passphrase: %w", err)
		}
		if !match {
			return nil, apperr.InvalidPassphrase()
		}
	}

	token, err := g.signer.Mint(v.ID, "master.m3u8", requestingUserID, 0)
	if err != nil {
		return nil, fmt.Errorf("minting master token: %w", err)
	}

	return &Result{
		StreamURL: fmt.Sprintf("/api/stream/%s/master.m3u8?token=%s", v.ID, token),
		Metadata:  v.Public(),
	}, nil
}
