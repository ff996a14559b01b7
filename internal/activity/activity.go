// Package activity tracks the dashboard-wide loading indicator.
package activity

import (
	"sync"
	"time"
)

// MinVisible is how long the indicator stays up once shown, so fast
// operations do not flicker.
const MinVisible = 512 * time.Millisecond

// Status is a snapshot of the indicator.
type Status struct {
	Visible bool   `json:"visible"`
	Count   int    `json:"count"`
	Message string `json:"message,omitempty"`
}

// Indicator is a counter of in-flight operations. It is visible while the
// counter is positive and for at least MinVisible after the last Show.
type Indicator struct {
	mu         sync.Mutex
	count      int
	message    string
	visible    bool
	shownAt    time.Time
	hideTimer  *time.Timer
	minVisible time.Duration
	now        func() time.Time
}

func New() *Indicator {
	return &Indicator{minVisible: MinVisible, now: time.Now}
}

// Show adds n to the counter and reveals the indicator.
func (i *Indicator) Show(n int, message string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopTimer()
	i.count += n
	i.message = message
	i.visible = true
	i.shownAt = i.now()
}

// Set forces the counter to n.
func (i *Indicator) Set(n int, message string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopTimer()
	i.count = n
	i.message = message
	i.visible = n > 0
	i.shownAt = i.now()
}

// Hide subtracts n from the counter. The indicator goes away once the
// counter reaches zero, waiting out the minimum visible time. n <= 0
// dismisses it immediately.
func (i *Indicator) Hide(n int) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if n <= 0 {
		i.stopTimer()
		i.count = 0
		i.dismiss()
		return
	}

	i.count -= n
	if i.count > 0 {
		return
	}
	i.count = 0

	remaining := i.minVisible - i.now().Sub(i.shownAt)
	if remaining <= 0 {
		i.dismiss()
		return
	}
	i.stopTimer()
	i.hideTimer = time.AfterFunc(remaining, func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		if i.count == 0 {
			i.dismiss()
		}
		i.hideTimer = nil
	})
}

// Track shows the indicator for the duration of fn.
func (i *Indicator) Track(message string, fn func() error) error {
	i.Show(1, message)
	defer i.Hide(1)
	return fn()
}

func (i *Indicator) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return Status{Visible: i.visible, Count: i.count, Message: i.message}
}

func (i *Indicator) dismiss() {
	i.visible = false
	i.message = ""
}

func (i *Indicator) stopTimer() {
	if i.hideTimer != nil {
		i.hideTimer.Stop()
		i.hideTimer = nil
	}
}
