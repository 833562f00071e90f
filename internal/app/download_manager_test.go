package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/aniload-go/internal/domain"
)

func itemStatus(t *testing.T, repo *mockRepo, id string) domain.ItemStatus {
	t.Helper()
	item, err := repo.FindByID(id)
	require.NoError(t, err)
	if item == nil {
		return ""
	}
	return item.Status
}

func TestPauseResume_PreservesProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("episode-bytes-"), 8)
	src := newFakeSource(payload)
	src.supportsResume = true
	src.setBlocking(true)
	repo, dm, qm := newTestStack(t, src, nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, qm.Start(ctx))
	defer qm.Stop()

	item := enqueue(t, qm, "aot", 1)

	require.Eventually(t, func() bool {
		return itemStatus(t, repo, item.ID) == domain.StatusDownloading
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, dm.Pause(item.ID))

	require.Eventually(t, func() bool {
		return itemStatus(t, repo, item.ID) == domain.StatusPaused
	}, 2*time.Second, 10*time.Millisecond)

	paused, err := repo.FindByID(item.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, paused.Progress, 0.4, "pause should keep partial progress")

	partPath := dm.partPath(paused)
	fi, err := os.Stat(partPath)
	require.NoError(t, err, "partial bytes should survive a pause")
	assert.EqualValues(t, len(payload)/2, fi.Size())

	src.setBlocking(false)
	require.NoError(t, dm.Resume(item.ID))
	assert.Equal(t, domain.StatusPending, itemStatus(t, repo, item.ID))
	qm.Kick()

	require.Eventually(t, func() bool {
		return itemStatus(t, repo, item.ID) == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	done, err := repo.FindByID(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, done.Progress)

	content, err := os.ReadFile(done.FilePath)
	require.NoError(t, err)
	assert.Equal(t, payload, content, "resumed file should hold the full payload")

	_, err = os.Stat(partPath)
	assert.True(t, os.IsNotExist(err), "partial file should be renamed away on completion")
}

func TestResume_RestartsWhenRangeUnsupported(t *testing.T) {
	payload := bytes.Repeat([]byte("episode-bytes-"), 8)
	src := newFakeSource(payload)
	src.setBlocking(true)
	repo, dm, qm := newTestStack(t, src, nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, qm.Start(ctx))
	defer qm.Stop()

	item := enqueue(t, qm, "aot", 1)

	require.Eventually(t, func() bool {
		return itemStatus(t, repo, item.ID) == domain.StatusDownloading
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, dm.Pause(item.ID))
	require.Eventually(t, func() bool {
		return itemStatus(t, repo, item.ID) == domain.StatusPaused
	}, 2*time.Second, 10*time.Millisecond)

	src.setBlocking(false)
	require.NoError(t, dm.Resume(item.ID))
	qm.Kick()

	require.Eventually(t, func() bool {
		return itemStatus(t, repo, item.ID) == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	done, err := repo.FindByID(item.ID)
	require.NoError(t, err)
	content, err := os.ReadFile(done.FilePath)
	require.NoError(t, err)
	assert.Equal(t, payload, content, "restart from zero should still produce a whole file")
}

func TestCancel_DiscardsPartialState(t *testing.T) {
	src := newFakeSource(bytes.Repeat([]byte("x"), 64))
	src.setBlocking(true)
	repo, dm, qm := newTestStack(t, src, nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, qm.Start(ctx))
	defer qm.Stop()

	item := enqueue(t, qm, "aot", 1)

	require.Eventually(t, func() bool {
		return itemStatus(t, repo, item.ID) == domain.StatusDownloading
	}, 2*time.Second, 10*time.Millisecond)

	partPath := dm.partPath(item)
	require.NoError(t, dm.Cancel(item.ID))

	require.Eventually(t, func() bool {
		got, err := repo.FindByID(item.ID)
		return err == nil && got == nil
	}, 2*time.Second, 10*time.Millisecond)

	_, err := os.Stat(partPath)
	assert.True(t, os.IsNotExist(err), "cancel should remove partial bytes")
}

func TestFailedTransfer_KeepsPartialBytes(t *testing.T) {
	src := newFakeSource(bytes.Repeat([]byte("x"), 64))
	src.setFailWith(errors.New("connection reset"))
	repo, dm, qm := newTestStack(t, src, nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, qm.Start(ctx))
	defer qm.Stop()

	item := enqueue(t, qm, "aot", 1)

	require.Eventually(t, func() bool {
		return itemStatus(t, repo, item.ID) == domain.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	failed, err := repo.FindByID(item.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, failed.ErrorMessage)
	assert.GreaterOrEqual(t, failed.Progress, 0.4, "failure should keep progress already made")

	_, err = os.Stat(dm.partPath(failed))
	assert.NoError(t, err, "failed items keep partial bytes for a retry")

	// A failed item resumes as a retry.
	src.setFailWith(nil)
	require.NoError(t, dm.Resume(item.ID))
	qm.Kick()

	require.Eventually(t, func() bool {
		return itemStatus(t, repo, item.ID) == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResume_RejectsNonResumable(t *testing.T) {
	repo, dm, _ := newTestStack(t, newFakeSource(nil), nil, 1)

	item := domain.NewDownloadItem("aot", "Test", 1, domain.AudioSub, "")
	require.NoError(t, repo.Create(item))

	assert.Error(t, dm.Resume(item.ID), "pending items are not resumable")
	assert.Error(t, dm.Resume("no-such-id"))
}

func TestPause_RejectsTerminal(t *testing.T) {
	repo, dm, _ := newTestStack(t, newFakeSource(nil), nil, 1)

	item := domain.NewDownloadItem("aot", "Test", 1, domain.AudioSub, "")
	item.MarkCompleted("/tmp/whatever.mp4", 10)
	require.NoError(t, repo.Create(item))

	assert.Error(t, dm.Pause(item.ID))
}

func TestGalleryPromotion(t *testing.T) {
	gallery := &fakeGallery{}
	src := newFakeSource(bytes.Repeat([]byte("x"), 64))
	repo, dm, qm := newTestStack(t, src, gallery, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, qm.Start(ctx))
	defer qm.Stop()

	item := enqueue(t, qm, "aot", 1)

	require.Eventually(t, func() bool {
		got, err := repo.FindByID(item.ID)
		return err == nil && got != nil && got.IsInGallery
	}, 2*time.Second, 10*time.Millisecond)

	done, err := repo.FindByID(item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	assert.Empty(t, done.FilePath, "gallery items hold no local path")
	assert.IsType(t, domain.GalleryAsset{}, done.Location())
	assert.Equal(t, 1, gallery.saveCount())

	// Promoting an already promoted item is a no-op.
	dm.promoteToGallery(context.Background(), done)
	assert.Equal(t, 1, gallery.saveCount())
}

func TestGalleryPromotionFailure_KeepsLocalCopy(t *testing.T) {
	gallery := &fakeGallery{fail: errors.New("photo library unavailable")}
	src := newFakeSource(bytes.Repeat([]byte("x"), 64))
	repo, _, qm := newTestStack(t, src, gallery, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, qm.Start(ctx))
	defer qm.Stop()

	item := enqueue(t, qm, "aot", 1)

	require.Eventually(t, func() bool {
		return itemStatus(t, repo, item.ID) == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	done, err := repo.FindByID(item.ID)
	require.NoError(t, err)
	assert.False(t, done.IsInGallery, "a refused promotion is still a valid completion")
	assert.NotEmpty(t, done.FilePath)
	_, err = os.Stat(done.FilePath)
	assert.NoError(t, err, "local copy must survive a failed promotion")
}

func TestRemove(t *testing.T) {
	repo, dm, _ := newTestStack(t, newFakeSource(nil), nil, 1)

	dir := t.TempDir()
	path := filepath.Join(dir, "done.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0644))

	item := domain.NewDownloadItem("aot", "Test", 1, domain.AudioSub, "")
	item.MarkCompleted(path, 5)
	require.NoError(t, repo.Create(item))

	live := domain.NewDownloadItem("aot", "Test", 2, domain.AudioSub, "")
	require.NoError(t, repo.Create(live))

	assert.Error(t, dm.Remove(live.ID), "live items must be canceled, not removed")

	require.NoError(t, dm.Remove(item.ID))
	got, err := repo.FindByID(item.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestClearAll(t *testing.T) {
	repo, dm, _ := newTestStack(t, newFakeSource(nil), nil, 1)

	dir := t.TempDir()
	path := filepath.Join(dir, "done.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0644))

	completed := domain.NewDownloadItem("aot", "Test", 1, domain.AudioSub, "")
	completed.MarkCompleted(path, 5)
	require.NoError(t, repo.Create(completed))

	pending := domain.NewDownloadItem("aot", "Test", 2, domain.AudioSub, "")
	require.NoError(t, repo.Create(pending))

	require.NoError(t, dm.ClearAll())

	count, err := repo.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestValidateAndCleanup(t *testing.T) {
	repo, dm, _ := newTestStack(t, newFakeSource(nil), nil, 1)

	dir := t.TempDir()
	intactPath := filepath.Join(dir, "intact.mp4")
	require.NoError(t, os.WriteFile(intactPath, []byte("video"), 0644))

	intact := domain.NewDownloadItem("aot", "Intact", 1, domain.AudioSub, "")
	intact.MarkCompleted(intactPath, 5)
	require.NoError(t, repo.Create(intact))

	dangling := domain.NewDownloadItem("aot", "Dangling", 2, domain.AudioSub, "")
	dangling.MarkCompleted(filepath.Join(dir, "gone.mp4"), 5)
	require.NoError(t, repo.Create(dangling))

	promoted := domain.NewDownloadItem("aot", "Promoted", 3, domain.AudioSub, "")
	promoted.MarkCompleted(filepath.Join(dir, "also-gone.mp4"), 5)
	promoted.MarkInGallery()
	require.NoError(t, repo.Create(promoted))

	removed, err := dm.ValidateAndCleanup()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, _ := repo.FindByID(dangling.ID)
	assert.Nil(t, got, "dangling item should be removed, not failed")
	got, _ = repo.FindByID(intact.ID)
	assert.NotNil(t, got)
	got, _ = repo.FindByID(promoted.ID)
	assert.NotNil(t, got, "gallery items are not checked against the local filesystem")
}
