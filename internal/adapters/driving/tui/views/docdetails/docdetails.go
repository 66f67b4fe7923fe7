// Package docdetails shows the stored record of one document.
package docdetails

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/custodia-labs/obra/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/obra/internal/core/domain"
)

const timeLayout = "2006-01-02 15:04:05"

// row is a label and value. An empty label starts a section titled value.
type row struct {
	label, value string
}

// View lists a document's attributes and metadata.
type View struct {
	styles *styles.Styles
	keymap *keymap.KeyMap

	doc    *domain.Document
	rows   []row
	offset int

	width, height int
}

// NewView creates a details view.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{styles: s, keymap: keymap.DefaultKeyMap(), width: 80, height: 24}
}

// SetDocument shows doc from the top.
func (v *View) SetDocument(doc *domain.Document) {
	v.doc = doc
	v.rows = describe(doc)
	v.offset = 0
}

func (v *View) Init() tea.Cmd { return nil }

// Update scrolls, opens the content with enter and goes back with esc.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
	case tea.KeyMsg:
		k := msg.String()
		switch {
		case keymap.Matches(k, v.keymap.Up):
			v.offset = max(v.offset-1, 0)
		case keymap.Matches(k, v.keymap.Down):
			v.offset = min(v.offset+1, v.maxOffset())
		case keymap.Matches(k, v.keymap.Select) && v.doc != nil:
			doc := *v.doc
			return v, func() tea.Msg { return messages.DocumentSelected{Document: doc} }
		case keymap.Matches(k, v.keymap.Back):
			return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewDocuments} }
		}
	}
	return v, nil
}

func describe(d *domain.Document) []row {
	if d == nil {
		return nil
	}

	rows := []row{{"ID", d.ID}, {"File", d.Filename}}
	if d.OriginalFilename != "" && d.OriginalFilename != d.Filename {
		rows = append(rows, row{"Original", d.OriginalFilename})
	}
	rows = append(rows,
		row{"Path", d.Path},
		row{"Type", d.MIMEType},
		row{"Size", fmt.Sprintf("%s (%d bytes)", humanize.Bytes(uint64(max(d.Size, 0))), d.Size)},
		row{"Status", string(d.Status)},
		row{"Chunks", humanize.Comma(int64(d.ChunkCount))},
	)
	if d.ErrorMessage != "" {
		rows = append(rows, row{"Error", d.ErrorMessage})
	}
	if !d.CreatedAt.IsZero() {
		rows = append(rows, row{"Created", d.CreatedAt.Format(timeLayout)})
	}
	if !d.UpdatedAt.IsZero() {
		rows = append(rows, row{"Updated", d.UpdatedAt.Format(timeLayout)})
	}

	m := d.Metadata
	meta := nonEmpty(
		row{"Doc type", m.DocumentType},
		row{"Category", m.Category},
		row{"Zone", m.GeographicZone},
	)
	if m.PriceYear != nil {
		meta = append(meta, row{"Price year", strconv.Itoa(*m.PriceYear)})
	}
	if len(meta) > 0 {
		rows = append(rows, row{"", "Metadata"})
		rows = append(rows, meta...)
	}
	return rows
}

func nonEmpty(rows ...row) []row {
	var out []row
	for _, r := range rows {
		if r.value != "" {
			out = append(out, r)
		}
	}
	return out
}

func (v *View) visible() int   { return max(v.height-6, 1) }
func (v *View) maxOffset() int { return max(len(v.rows)-v.visible(), 0) }

// View renders the rows that fit, with a position marker when they do not all fit.
func (v *View) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Document Details") + "\n")
	b.WriteString(strings.Repeat("─", min(max(v.width-4, 1), 60)) + "\n\n")

	if v.doc == nil {
		b.WriteString(v.styles.Muted.Render("No document selected") + "\n")
	}

	end := min(v.offset+v.visible(), len(v.rows))
	for _, r := range v.rows[v.offset:end] {
		if r.label == "" {
			b.WriteString("\n" + v.styles.Subtitle.Render(r.value+":") + "\n")
			continue
		}
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("%-12s", r.label+":")))
		b.WriteString(v.styles.Normal.Render(" "+r.value) + "\n")
	}
	if len(v.rows) > v.visible() {
		b.WriteString("\n" + v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", v.offset+1, end, len(v.rows))))
	}

	b.WriteString("\n\n" + v.styles.Help.Render("↑/↓ scroll · enter content · esc back"))
	return b.String()
}

// SetDimensions sets the view size and keeps the offset in range.
func (v *View) SetDimensions(width, height int) {
	v.width, v.height = width, height
	v.offset = min(v.offset, v.maxOffset())
}

// Document returns the displayed document.
func (v *View) Document() *domain.Document { return v.doc }
