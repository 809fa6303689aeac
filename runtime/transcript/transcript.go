// Package transcript reconstructs the ordered conversation transcript from the
// fragmented, possibly out-of-order event stream of a realtime session.
//
// Items are keyed by the server-assigned item id. Creation is idempotent,
// deltas accumulate in arrival order, and a DONE item is never reopened. The
// transcript outlives individual connections; its owner decides when to Clear it.
package transcript

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrItemNotFound is returned when a delta or status change targets an id the
// transcript has not seen.
var ErrItemNotFound = errors.New("transcript item not found")

// Placeholders shown for user audio turns before and after transcription.
const (
	PlaceholderTranscribing = "[Transcribing...]"
	PlaceholderInaudible    = "[inaudible]"
)

// Role of the speaker that produced an item.
type Role string

// Roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Kind distinguishes conversational messages from local annotations.
type Kind string

// Kinds.
const (
	KindMessage      Kind = "message"
	KindFunctionCall Kind = "function_call"
	KindBreadcrumb   Kind = "breadcrumb"
)

// Status of an item. Transitions only IN_PROGRESS -> DONE.
type Status string

// Statuses.
const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Item is one entry of the transcript.
type Item struct {
	ID   string
	Role Role
	Kind Kind
	// Seq is the first-seen order; items are always listed by Seq.
	Seq int
	// Content accumulates text deltas.
	Content string
	// Transcription accumulates audio-transcript deltas. A completed
	// transcription event replaces it.
	Transcription string
	// Data carries breadcrumb or function-call payloads.
	Data      map[string]any
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Text returns what a renderer should display: content when present,
// otherwise the transcription.
func (i *Item) Text() string {
	if i.Content != "" {
		return i.Content
	}
	return i.Transcription
}

// ChangeFunc is called after every mutation with a copy of the changed item.
// added is true for the first notification of an item.
type ChangeFunc func(item Item, added bool)

// Transcript is safe for concurrent use.
type Transcript struct {
	mu       sync.RWMutex
	items    []*Item
	index    map[string]*Item
	seq      int
	onChange ChangeFunc
	now      func() time.Time
}

// Option configures a Transcript.
type Option func(*Transcript)

// WithChangeFunc registers a change callback. It is invoked without the
// transcript lock held.
func WithChangeFunc(fn ChangeFunc) Option {
	return func(t *Transcript) { t.onChange = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Transcript) { t.now = now }
}

// New creates an empty transcript.
func New(opts ...Option) *Transcript {
	t := &Transcript{
		index: make(map[string]*Item),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AddMessage inserts an IN_PROGRESS item if id is absent. It returns false,
// leaving the existing item untouched, when id is already known.
func (t *Transcript) AddMessage(id string, role Role, kind Kind, text string) bool {
	t.mu.Lock()
	if _, ok := t.index[id]; ok {
		t.mu.Unlock()
		return false
	}
	item := t.insertLocked(id, role, kind)
	item.Content = text
	snapshot := *item
	t.mu.Unlock()

	t.notify(snapshot, true)
	return true
}

// AddUserAudioMessage inserts a user item whose text will arrive through
// transcription. The transcription shows a placeholder until then.
func (t *Transcript) AddUserAudioMessage(id string) bool {
	t.mu.Lock()
	if _, ok := t.index[id]; ok {
		t.mu.Unlock()
		return false
	}
	item := t.insertLocked(id, RoleUser, KindMessage)
	item.Transcription = PlaceholderTranscribing
	snapshot := *item
	t.mu.Unlock()

	t.notify(snapshot, true)
	return true
}

// AddFunctionCall inserts a function-call item carrying the call's name.
func (t *Transcript) AddFunctionCall(id, callID, name string) bool {
	t.mu.Lock()
	if _, ok := t.index[id]; ok {
		t.mu.Unlock()
		return false
	}
	item := t.insertLocked(id, RoleAssistant, KindFunctionCall)
	item.Content = name
	item.Data = map[string]any{"call_id": callID, "name": name}
	snapshot := *item
	t.mu.Unlock()

	t.notify(snapshot, true)
	return true
}

// AddBreadcrumb appends a DONE system annotation (agent changes, tool calls)
// and returns its generated id.
func (t *Transcript) AddBreadcrumb(title string, data map[string]any) string {
	id := "breadcrumb-" + uuid.NewString()

	t.mu.Lock()
	item := t.insertLocked(id, RoleSystem, KindBreadcrumb)
	item.Content = title
	item.Data = data
	item.Status = StatusDone
	snapshot := *item
	t.mu.Unlock()

	t.notify(snapshot, true)
	return id
}

// AppendContent appends a text delta. Deltas for DONE items are still
// accumulated but the status is not reopened.
func (t *Transcript) AppendContent(id, delta string) error {
	return t.update(id, func(item *Item) {
		item.Content += delta
	})
}

// AppendTranscription appends an audio-transcript delta. The first delta
// replaces the transcribing placeholder.
func (t *Transcript) AppendTranscription(id, delta string) error {
	return t.update(id, func(item *Item) {
		if item.Transcription == PlaceholderTranscribing {
			item.Transcription = ""
		}
		item.Transcription += delta
	})
}

// ReplaceTranscription overwrites the transcription with the final text from a
// transcription-completed event. Empty text becomes the inaudible placeholder.
func (t *Transcript) ReplaceTranscription(id, text string) error {
	if text == "" {
		text = PlaceholderInaudible
	}
	return t.update(id, func(item *Item) {
		item.Transcription = text
	})
}

// MarkDone sets the item's status to DONE. Marking a DONE item again is a no-op.
func (t *Transcript) MarkDone(id string) error {
	return t.update(id, func(item *Item) {
		item.Status = StatusDone
	})
}

// Get returns a copy of the item with the given id.
func (t *Transcript) Get(id string) (Item, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	item, ok := t.index[id]
	if !ok {
		return Item{}, false
	}
	return *item, true
}

// Items returns copies of all items in first-seen order.
func (t *Transcript) Items() []Item {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Item, len(t.items))
	for i, item := range t.items {
		out[i] = *item
	}
	return out
}

// MostRecent returns the last item with the given role and kind.
func (t *Transcript) MostRecent(role Role, kind Kind) (Item, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.items) - 1; i >= 0; i-- {
		if t.items[i].Role == role && t.items[i].Kind == kind {
			return *t.items[i], true
		}
	}
	return Item{}, false
}

// Len returns the number of items.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// Clear drops every item. Ids seen before Clear may be reused afterwards.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = nil
	t.index = make(map[string]*Item)
	t.seq = 0
}

func (t *Transcript) insertLocked(id string, role Role, kind Kind) *Item {
	now := t.now()
	t.seq++
	item := &Item{
		ID:        id,
		Role:      role,
		Kind:      kind,
		Seq:       t.seq,
		Status:    StatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.items = append(t.items, item)
	t.index[id] = item
	return item
}

func (t *Transcript) update(id string, fn func(*Item)) error {
	t.mu.Lock()
	item, ok := t.index[id]
	if !ok {
		t.mu.Unlock()
		return ErrItemNotFound
	}
	fn(item)
	item.UpdatedAt = t.now()
	snapshot := *item
	t.mu.Unlock()

	t.notify(snapshot, false)
	return nil
}

func (t *Transcript) notify(item Item, added bool) {
	if t.onChange != nil {
		t.onChange(item, added)
	}
}
