//go:build darwin || windows || linux

package clip

import (
	"errors"
	"sync"
	"time"

	"golang.design/x/clipboard"
)

// native holds what the desktop backends share: text I/O through
// golang.design/x/clipboard and a 1-buffered change channel. Each platform
// supplies its own change source and, where it can tell, a lock probe.
type native struct {
	name    string
	watchCh chan struct{}
	done    chan struct{}
	once    sync.Once

	// busy reports that another process holds the clipboard open.
	busy func() bool
}

func newNative(name string) *native {
	return &native{
		name:    name,
		watchCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (n *native) Name() string { return n.name }

func (n *native) ReadText() (string, error) {
	if n.busy != nil && n.busy() {
		return "", ErrLocked
	}
	text := clipboard.Read(clipboard.FmtText)
	if len(text) == 0 {
		return "", ErrNoText
	}
	return string(text), nil
}

func (n *native) WriteText(text string) error {
	if text == "" {
		return errors.New("write: empty text")
	}
	if n.busy != nil && n.busy() {
		return ErrLocked
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

func (n *native) Watch() <-chan struct{} { return n.watchCh }

func (n *native) Close() { n.once.Do(func() { close(n.done) }) }

// every calls changed at the given interval until Close and signals the
// watch channel each time it reports true.
func (n *native) every(d time.Duration, changed func() bool) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-n.done:
			return
		case <-t.C:
			if changed() {
				notify(n.watchCh)
			}
		}
	}
}
