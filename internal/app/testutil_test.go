package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/aniload-go/internal/domain"
)

// mockRepo implements domain.ItemRepository in memory, preserving insertion
// order so FindPending behaves like the sqlite FIFO query
type mockRepo struct {
	mu    sync.Mutex
	order []string
	items map[string]*domain.DownloadItem
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[string]*domain.DownloadItem)}
}

func (m *mockRepo) Create(item *domain.DownloadItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *item
	m.items[item.ID] = &cp
	m.order = append(m.order, item.ID)
	return nil
}

func (m *mockRepo) Update(item *domain.DownloadItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *mockRepo) FindByID(id string) (*domain.DownloadItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[id]; ok {
		cp := *item
		return &cp, nil
	}
	return nil, nil
}

func (m *mockRepo) FindByEpisode(animeID string, episode int, audio domain.AudioType, statuses []domain.ItemStatus) (*domain.DownloadItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		item, ok := m.items[m.order[i]]
		if !ok {
			continue
		}
		if item.AnimeID != animeID || item.EpisodeNumber != episode || item.AudioType != audio {
			continue
		}
		for _, s := range statuses {
			if item.Status == s {
				cp := *item
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (m *mockRepo) FindByStatus(status domain.ItemStatus) ([]*domain.DownloadItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.DownloadItem
	for _, id := range m.order {
		if item, ok := m.items[id]; ok && item.Status == status {
			cp := *item
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) FindPending() ([]*domain.DownloadItem, error) {
	return m.FindByStatus(domain.StatusPending)
}

func (m *mockRepo) FindAll(filters map[string]interface{}) ([]*domain.DownloadItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.DownloadItem
	for _, id := range m.order {
		item, ok := m.items[id]
		if !ok {
			continue
		}
		if status, ok := filters["status"]; ok && string(item.Status) != status {
			continue
		}
		cp := *item
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRepo) Count() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.items)), nil
}

func (m *mockRepo) CountByStatus(status domain.ItemStatus) (int64, error) {
	items, _ := m.FindByStatus(status)
	return int64(len(items)), nil
}

func (m *mockRepo) ResetOrphaned() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, item := range m.items {
		if item.Status == domain.StatusDownloading {
			item.Status = domain.StatusPaused
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) GetStats() (*domain.ItemStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.ItemStats{}
	for _, item := range m.items {
		stats.Total++
		switch item.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusDownloading:
			stats.Downloading++
		case domain.StatusPaused:
			stats.Paused++
		case domain.StatusCompleted:
			stats.Completed++
			if !item.IsInGallery {
				stats.StorageUsed += item.Size
			}
		case domain.StatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// fakeSource implements domain.ContentSource. It writes half its payload,
// reports progress, then optionally blocks on a release token so tests can
// hold transfers mid-stream.
type fakeSource struct {
	mu             sync.Mutex
	data           []byte
	supportsResume bool
	blocking       bool
	release        chan struct{}
	starts         []string
	failWith       error
}

func newFakeSource(data []byte) *fakeSource {
	return &fakeSource{
		data:    data,
		release: make(chan struct{}, 64),
	}
}

func (f *fakeSource) startOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.starts...)
}

func (f *fakeSource) setBlocking(blocking bool) {
	f.mu.Lock()
	f.blocking = blocking
	f.mu.Unlock()
}

func (f *fakeSource) setFailWith(err error) {
	f.mu.Lock()
	f.failWith = err
	f.mu.Unlock()
}

func (f *fakeSource) releaseOne() {
	f.release <- struct{}{}
}

func (f *fakeSource) Fetch(ctx context.Context, req domain.FetchRequest, dest string, report domain.ProgressFunc) (*domain.FetchInfo, error) {
	f.mu.Lock()
	f.starts = append(f.starts, fmt.Sprintf("%s:%d", req.AnimeID, req.EpisodeNumber))
	blocking := f.blocking
	failWith := f.failWith
	f.mu.Unlock()

	total := int64(len(f.data))
	resumed := req.Offset > 0 && f.supportsResume
	info := &domain.FetchInfo{TotalSize: total, Resumed: resumed}

	offset := int64(0)
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if resumed {
		offset = req.Offset
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, err
	}
	out, err := os.OpenFile(dest, flags, 0644)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	half := total / 2
	if offset < half {
		if _, err := out.Write(f.data[offset:half]); err != nil {
			return info, err
		}
		offset = half
	}
	if report != nil {
		report(offset, total)
	}

	if blocking {
		select {
		case <-ctx.Done():
			return info, ctx.Err()
		case <-f.release:
		}
	}

	if failWith != nil {
		return info, failWith
	}

	if _, err := out.Write(f.data[offset:]); err != nil {
		return info, err
	}
	if report != nil {
		report(total, total)
	}
	return info, nil
}

// fakeGallery implements domain.GalleryStore
type fakeGallery struct {
	mu    sync.Mutex
	saves []string
	fail  error
}

func (g *fakeGallery) SaveToAlbum(ctx context.Context, srcPath, album, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return g.fail
	}
	g.saves = append(g.saves, filepath.Join(album, name))
	return nil
}

func (g *fakeGallery) saveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.saves)
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
