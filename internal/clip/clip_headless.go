package clip

import "sync"

// Headless is an in-memory clipboard used when no display server is
// available (headless Linux servers, containers, CI). Writes are kept in
// process memory and reported through Watch like a real change.
type Headless struct {
	mu      sync.Mutex
	text    string
	watchCh chan struct{}
}

// NewHeadless returns an empty in-memory clipboard.
func NewHeadless() *Headless {
	return &Headless{watchCh: make(chan struct{}, 1)}
}

func (b *Headless) Name() string { return "headless (memory)" }

func (b *Headless) ReadText() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.text == "" {
		return "", ErrNoText
	}
	return b.text, nil
}

func (b *Headless) WriteText(text string) error {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()
	notify(b.watchCh)
	return nil
}

func (b *Headless) Watch() <-chan struct{} { return b.watchCh }
func (b *Headless) Close()                 {}
