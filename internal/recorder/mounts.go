package recorder

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
)

var partitionsFunc = disk.Partitions

// MountWatcher polls the partition table and the configured storage roots
// and reports every mount or unmount it sees.
type MountWatcher struct {
	interval time.Duration
	roots    []string
	onChange func(path string, mounted bool)

	mu       sync.Mutex
	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// poll goroutine only
	mounts  map[string]bool
	present map[string]bool
}

func NewMountWatcher(interval time.Duration, roots []string, onChange func(path string, mounted bool)) *MountWatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &MountWatcher{interval: interval, roots: roots, onChange: onChange}
}

// Start takes a baseline without reporting, then polls until Stop.
func (w *MountWatcher) Start() {
	w.mu.Lock()
	if w.ticker != nil {
		w.mu.Unlock()
		return
	}
	w.mounts, w.present = w.snapshot()
	w.ticker = time.NewTicker(w.interval)
	w.doneChan = make(chan struct{})
	w.stopOnce = sync.Once{}
	ticker, done := w.ticker, w.doneChan
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ticker.C:
				w.Poll()
			case <-done:
				return
			}
		}
	}()
}

func (w *MountWatcher) Stop() {
	w.mu.Lock()
	if w.ticker == nil {
		w.mu.Unlock()
		return
	}
	w.stopOnce.Do(func() {
		close(w.doneChan)
		w.ticker.Stop()
		w.ticker = nil
	})
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *MountWatcher) snapshot() (map[string]bool, map[string]bool) {
	mounts := make(map[string]bool)
	if parts, err := partitionsFunc(false); err == nil {
		for _, p := range parts {
			mounts[p.Mountpoint] = true
		}
	} else {
		log.Debugf("list partitions: %v", err)
	}
	present := make(map[string]bool, len(w.roots))
	for _, root := range w.roots {
		fi, err := os.Stat(root)
		present[root] = err == nil && fi.IsDir()
	}
	return mounts, present
}

// Poll compares the current view with the previous one. The started
// watcher calls it on every tick; callers that drive it by hand must not
// also Start it.
func (w *MountWatcher) Poll() {
	mounts, present := w.snapshot()
	if w.mounts == nil {
		w.mounts, w.present = mounts, present
		return
	}
	for m := range w.mounts {
		if !mounts[m] {
			w.notify(m, false)
		}
	}
	for m := range mounts {
		if !w.mounts[m] {
			w.notify(m, true)
		}
	}
	for root, ok := range present {
		if ok != w.present[root] {
			w.notify(root, ok)
		}
	}
	w.mounts, w.present = mounts, present
}

func (w *MountWatcher) notify(path string, mounted bool) {
	log.Debugf("storage %s mounted=%v", path, mounted)
	if w.onChange != nil {
		w.onChange(path, mounted)
	}
}
