package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/tccoin/museum-agent/runtime/events"
	"github.com/tccoin/museum-agent/runtime/transcript"
)

const timeLayout = "15:04:05"

// transcriptPrinter writes finished transcript items to the terminal.
// Messages are printed once, when they reach DONE, so streaming deltas do
// not flood the output.
type transcriptPrinter struct {
	out io.Writer

	mu      sync.Mutex
	printed map[string]bool
}

func newTranscriptPrinter(out io.Writer) *transcriptPrinter {
	return &transcriptPrinter{out: out, printed: make(map[string]bool)}
}

func (p *transcriptPrinter) attach(bus *events.EventBus) func() {
	unsubAdded := bus.Subscribe(events.EventTranscriptItemAdded, p.onEvent)
	unsubUpdated := bus.Subscribe(events.EventTranscriptItemUpdated, p.onEvent)
	return func() {
		unsubAdded()
		unsubUpdated()
	}
}

func (p *transcriptPrinter) onEvent(e *events.Event) {
	data, ok := e.Data.(events.TranscriptItemData)
	if !ok {
		return
	}
	p.print(data.Item)
}

func (p *transcriptPrinter) print(item transcript.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed[item.ID] {
		return
	}

	var line string
	switch item.Kind {
	case transcript.KindBreadcrumb:
		line = "· " + item.Content + formatData(item.Data)
	case transcript.KindFunctionCall:
		line = "→ " + item.Content + "()"
	default:
		if item.Status != transcript.StatusDone {
			return
		}
		line = string(item.Role) + ": " + item.Text()
	}
	p.printed[item.ID] = true
	fmt.Fprintf(p.out, "[%s] %s\n", item.CreatedAt.Format(timeLayout), line)
}

// formatData renders breadcrumb data as sorted key=value pairs.
func formatData(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
