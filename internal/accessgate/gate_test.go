package accessgate

import (
	"context"
	"strings"
	"testing"

	"github.com/alexedwards/argon2id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultstream/vaultstream/internal/apperr"
	"github.com/vaultstream/vaultstream/internal/models"
	"github.com/vaultstream/vaultstream/internal/security"
)

func TestHashPassphraseRoundTrip(t *testing.T) {
	hash, err := HashPassphrase("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	match, err := argon2id.ComparePasswordAndHash("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, match)

	match, err = argon2id.ComparePasswordAndHash("wrong passphrase", hash)
	require.NoError(t, err)
	assert.False(t, match)
}

// fakeFinder is an in-memory videostore.Finder, letting Gate tests run
// against fixed fixtures instead of a real database.
type fakeFinder struct {
	videos map[string]*models.Video
}

func (f *fakeFinder) FindVideo(_ context.Context, videoID string) (*models.Video, error) {
	v, ok := f.videos[videoID]
	if !ok {
		return nil, apperr.NotFound("video not found: " + videoID)
	}
	return v, nil
}

func newTestGate(t *testing.T, videos ...*models.Video) *Gate {
	t.Helper()
	byID := make(map[string]*models.Video, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
	}
	signer := security.New("at-least-32-bytes-of-signer-secret!!", 3600)
	return New(&fakeFinder{videos: byID}, signer)
}

func TestRequestAccessUnlistedReadySucceeds(t *testing.T) {
	g := newTestGate(t, &models.Video{ID: "v1", Status: models.StatusReady, Visibility: models.VisibilityUnlisted})

	res, err := g.RequestAccess(context.Background(), "v1", "", "")
	require.NoError(t, err)
	assert.Equal(t, "v1", res.Metadata.VideoID)
	assert.Contains(t, res.StreamURL, "/api/stream/v1/master.m3u8?token=")
}

func TestRequestAccessUnknownVideoNotFound(t *testing.T) {
	g := newTestGate(t)

	_, err := g.RequestAccess(context.Background(), "missing", "", "")
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, ae.Kind)
}

func TestRequestAccessNotReadyRejected(t *testing.T) {
	g := newTestGate(t, &models.Video{ID: "v1", Status: models.StatusProcessing, Visibility: models.VisibilityPublic})

	_, err := g.RequestAccess(context.Background(), "v1", "", "")
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotReady, ae.Kind)
	assert.Equal(t, 409, ae.Status)
}

func TestRequestAccessPrivateOwnerSucceeds(t *testing.T) {
	g := newTestGate(t, &models.Video{ID: "v1", Status: models.StatusReady, Visibility: models.VisibilityPrivate, OwnerUserID: "owner-1"})

	res, err := g.RequestAccess(context.Background(), "v1", "owner-1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.StreamURL)
}

func TestRequestAccessPrivateNonOwnerDenied(t *testing.T) {
	g := newTestGate(t, &models.Video{ID: "v1", Status: models.StatusReady, Visibility: models.VisibilityPrivate, OwnerUserID: "owner-1"})

	_, err := g.RequestAccess(context.Background(), "v1", "someone-else", "")
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindAccessDenied, ae.Kind)
}

func TestRequestAccessPassphraseRequiredMissing(t *testing.T) {
	hash, err := HashPassphrase("sesame")
	require.NoError(t, err)
	g := newTestGate(t, &models.Video{ID: "v1", Status: models.StatusReady, Visibility: models.VisibilityPublic, PassphraseHash: hash})

	_, err = g.RequestAccess(context.Background(), "v1", "", "")
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindPassphraseRequired, ae.Kind)
}

func TestRequestAccessPassphraseWrongRejected(t *testing.T) {
	hash, err := HashPassphrase("sesame")
	require.NoError(t, err)
	g := newTestGate(t, &models.Video{ID: "v1", Status: models.StatusReady, Visibility: models.VisibilityPublic, PassphraseHash: hash})

	_, err = g.RequestAccess(context.Background(), "v1", "", "wrong")
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindInvalidPassphrase, ae.Kind)
}

func TestRequestAccessPassphraseCorrectSucceeds(t *testing.T) {
	hash, err := HashPassphrase("sesame")
	require.NoError(t, err)
	g := newTestGate(t, &models.Video{ID: "v1", Status: models.StatusReady, Visibility: models.VisibilityPublic, PassphraseHash: hash})

	res, err := g.RequestAccess(context.Background(), "v1", "", "sesame")
	require.NoError(t, err)
	assert.NotEmpty(t, res.StreamURL)
}
