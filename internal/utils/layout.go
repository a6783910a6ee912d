package utils

import (
	"fmt"
	"sort"
	"strings"

	"charm.land/lipgloss/v2"
)

// DetailBuilder builds aligned key-value blocks for the describe output and
// the watch view.
type DetailBuilder struct {
	b            strings.Builder
	labelStyle   lipgloss.Style
	sectionStyle lipgloss.Style
}

// NewDetailBuilder creates a builder with a fixed-width label column.
// sectionStyle controls the rendering of section headings.
func NewDetailBuilder(labelWidth int, sectionStyle lipgloss.Style) *DetailBuilder {
	return &DetailBuilder{
		labelStyle:   sectionStyle.Width(labelWidth),
		sectionStyle: sectionStyle,
	}
}

// Row writes a labeled key-value row. Empty values render as "-".
func (d *DetailBuilder) Row(label, value string) {
	fmt.Fprintf(&d.b, "  %s %s\n", d.labelStyle.Render(label), OrDash(value))
}

// List writes one row per item, labelling only the first.
func (d *DetailBuilder) List(label string, items []string) {
	if len(items) == 0 {
		d.Row(label, "")
		return
	}
	for i, item := range items {
		if i > 0 {
			label = ""
		}
		d.Row(label, item)
	}
}

// Map writes "key=value" rows sorted by key.
func (d *DetailBuilder) Map(label string, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	items := make([]string, len(keys))
	for i, k := range keys {
		items[i] = k + "=" + m[k]
	}
	d.List(label, items)
}

// Section writes a section heading like "── title ──────...".
func (d *DetailBuilder) Section(title string) {
	pad := max(40-len(title), 4)
	heading := fmt.Sprintf("  ── %s %s", title, strings.Repeat("─", pad))
	d.b.WriteString(d.sectionStyle.Render(heading) + "\n")
}

// Blank writes an empty line.
func (d *DetailBuilder) Blank() {
	d.b.WriteString("\n")
}

// String returns the accumulated content.
func (d *DetailBuilder) String() string {
	return d.b.String()
}
