// Package notify implements the Notification Surface: the
// text+category+sound events components emit for user-visible feedback
// (moderator actions, media errors, connection state), decoupled from
// whatever UI renders them.
package notify

import "sync"

// Category buckets a notification for styling/filtering by a UI layer.
type Category string

const (
	CategoryInfo       Category = "info"
	CategoryWarning    Category = "warning"
	CategoryError      Category = "error"
	CategoryModeration Category = "moderation"
)

// Notification is one emitted event.
type Notification struct {
	Text     string
	Category Category
	Sound    bool
}

// Notifier fans out notifications to registered listeners, gating the
// Sound flag on the room's notificationSounds setting.
type Notifier struct {
	mu            sync.RWMutex
	soundsEnabled bool
	listeners     []func(Notification)
}

// New builds a Notifier; soundsEnabled mirrors config.Room.NotificationSounds.
func New(soundsEnabled bool) *Notifier {
	return &Notifier{soundsEnabled: soundsEnabled}
}

// SetSoundsEnabled updates whether subsequent notifications carry sound.
func (n *Notifier) SetSoundsEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.soundsEnabled = enabled
}

// On registers fn to receive every notification.
func (n *Notifier) On(fn func(Notification)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, fn)
}

// Notify emits text under category, with sound suppressed unless both
// withSound and the current notificationSounds setting are true.
func (n *Notifier) Notify(text string, category Category, withSound bool) {
	n.mu.RLock()
	sound := withSound && n.soundsEnabled
	listeners := append([]func(Notification){}, n.listeners...)
	n.mu.RUnlock()

	event := Notification{Text: text, Category: category, Sound: sound}
	for _, fn := range listeners {
		fn(event)
	}
}

// Info is shorthand for Notify(text, CategoryInfo, false).
func (n *Notifier) Info(text string) { n.Notify(text, CategoryInfo, false) }

// Warning is shorthand for Notify(text, CategoryWarning, true).
func (n *Notifier) Warning(text string) { n.Notify(text, CategoryWarning, true) }

// Error is shorthand for Notify(text, CategoryError, true).
func (n *Notifier) Error(text string) { n.Notify(text, CategoryError, true) }

// Moderation is shorthand for Notify(text, CategoryModeration, true), used
// for moderator:mute/stopVideo/kick-style events (spec.md §8 scenario 4).
func (n *Notifier) Moderation(text string) { n.Notify(text, CategoryModeration, true) }
