// Package settings lets the user pick AI providers and retrieval defaults.
package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/obra/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/obra/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driving"
)

// Section is the page of the settings view on screen.
type Section int

const (
	SectionOverview Section = iota
	SectionEmbedding
	SectionLLM
	SectionRetrieval
)

// focus is the element receiving keys inside a section.
type focus int

const (
	focusList focus = iota
	focusKey
	focusModel
	focusValue
)

// ErrNoSettingsService is returned when the view has no settings port.
var ErrNoSettingsService = errors.New("settings service not available")

// providerSection describes the embedding or LLM page.
type providerSection struct {
	title     string
	providers func() []domain.AIProvider
	models    func() map[domain.AIProvider]string
	current   func(*domain.AppSettings) (domain.AIProvider, string)
	save      func(driving.SettingsService, domain.AIProvider, string, string) error
}

var providerSections = map[Section]providerSection{
	SectionEmbedding: {
		title:     "Embedding Provider",
		providers: domain.AllEmbeddingProviders,
		models:    domain.DefaultEmbeddingModels,
		current: func(s *domain.AppSettings) (domain.AIProvider, string) {
			return s.Embedding.Provider, s.Embedding.Model
		},
		save: func(svc driving.SettingsService, p domain.AIProvider, model, key string) error {
			return svc.SetEmbeddingProvider(p, model, key)
		},
	},
	SectionLLM: {
		title:     "LLM Provider",
		providers: domain.AllLLMProviders,
		models:    domain.DefaultLLMModels,
		current: func(s *domain.AppSettings) (domain.AIProvider, string) {
			return s.LLM.Provider, s.LLM.Model
		},
		save: func(svc driving.SettingsService, p domain.AIProvider, model, key string) error {
			return svc.SetLLMProvider(p, model, key)
		},
	},
}

// retrievalField is one editable RAG default.
type retrievalField struct {
	key   string
	label string
	value func(domain.RAGSettings) string
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

var retrievalFields = []retrievalField{
	{"rag.max_results", "Max results", func(r domain.RAGSettings) string { return strconv.Itoa(r.MaxResults) }},
	{"rag.min_score", "Min score", func(r domain.RAGSettings) string { return formatFloat(r.MinScore) }},
	{"rag.enrich_concurrency", "Price estimate workers", func(r domain.RAGSettings) string {
		return strconv.Itoa(r.EnrichConcurrency)
	}},
}

// overviewItems are the rows of the overview page, in order.
var overviewItems = []Section{SectionEmbedding, SectionLLM, SectionRetrieval}

// View is the settings view.
type View struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	service driving.SettingsService

	settings *domain.AppSettings
	err      error

	section  Section
	selected int
	focus    focus

	keyInput   textinput.Model
	modelInput textinput.Model
	valueInput textinput.Model

	width, height int
}

func newInput(placeholder string, limit int) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = limit
	return in
}

// NewView creates a settings view.
func NewView(s *styles.Styles, service driving.SettingsService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	keyInput := newInput("Enter API key", 256)
	keyInput.EchoMode = textinput.EchoPassword

	return &View{
		styles:     s,
		keymap:     keymap.DefaultKeyMap(),
		service:    service,
		section:    SectionOverview,
		keyInput:   keyInput,
		modelInput: newInput("model name", 128),
		valueInput: newInput("", 32),
	}
}

// Init loads the settings.
func (v *View) Init() tea.Cmd {
	return v.run(func(svc driving.SettingsService) tea.Msg {
		settings, err := svc.Get()
		return messages.SettingsLoaded{Settings: settings, Err: err}
	}, func(err error) tea.Msg { return messages.SettingsLoaded{Err: err} })
}

// run calls the service off the update loop. fail builds the message sent
// when there is no service.
func (v *View) run(call func(driving.SettingsService) tea.Msg, fail func(error) tea.Msg) tea.Cmd {
	svc := v.service
	return func() tea.Msg {
		if svc == nil {
			return fail(ErrNoSettingsService)
		}
		return call(svc)
	}
}

func (v *View) save(call func(driving.SettingsService) error) tea.Cmd {
	return v.run(func(svc driving.SettingsService) tea.Msg {
		return messages.SettingsSaved{Err: call(svc)}
	}, func(err error) tea.Msg { return messages.SettingsSaved{Err: err} })
}

// Update handles loads, saves and keys.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)

	case messages.SettingsLoaded:
		v.err = msg.Err
		if msg.Err == nil {
			v.settings = msg.Settings
		}

	case messages.SettingsSaved:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.Reset()
		return v, v.Init()

	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return v, nil
}

func (v *View) handleKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	k := msg.String()
	if keymap.Matches(k, v.keymap.Back) {
		if v.section == SectionOverview {
			return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
		}
		v.Reset()
		return v, nil
	}

	if v.focus != focusList {
		return v.handleInput(msg)
	}

	if v.move(k) {
		return v, nil
	}
	switch v.section {
	case SectionOverview:
		if keymap.Matches(k, v.keymap.Select) {
			v.open(overviewItems[v.selected])
		}
	case SectionEmbedding, SectionLLM:
		return v, v.handleProviderList(k)
	case SectionRetrieval:
		if keymap.Matches(k, v.keymap.Select) && v.settings != nil {
			v.valueInput.SetValue(retrievalFields[v.selected].value(v.settings.RAG))
			v.valueInput.CursorEnd()
			return v, v.focusOn(focusValue)
		}
	}
	return v, nil
}

// rows returns the number of selectable rows in the current section.
func (v *View) rows() int {
	switch v.section {
	case SectionEmbedding, SectionLLM:
		return len(providerSections[v.section].providers())
	case SectionRetrieval:
		return len(retrievalFields)
	}
	return len(overviewItems)
}

func (v *View) move(k string) bool {
	switch {
	case keymap.Matches(k, v.keymap.Up):
		v.selected = max(v.selected-1, 0)
	case keymap.Matches(k, v.keymap.Down):
		v.selected = min(v.selected+1, v.rows()-1)
	default:
		return false
	}
	return true
}

// open enters a section with the current provider preselected.
func (v *View) open(section Section) {
	v.section = section
	v.selected = 0
	ps, ok := providerSections[section]
	if !ok || v.settings == nil {
		return
	}
	current, _ := ps.current(v.settings)
	for i, p := range ps.providers() {
		if p == current {
			v.selected = i
		}
	}
}

func (v *View) selectedProvider() domain.AIProvider {
	return providerSections[v.section].providers()[v.selected]
}

// handleProviderList saves a local provider with its default model on
// enter. Cloud providers, and tab on any provider, open the fields first.
func (v *View) handleProviderList(k string) tea.Cmd {
	p := v.selectedProvider()
	edit := k == "tab" || (keymap.Matches(k, v.keymap.Select) && p.RequiresAPIKey())
	switch {
	case edit:
		v.modelInput.SetValue(v.modelFor(p))
		v.modelInput.CursorEnd()
		if p.RequiresAPIKey() {
			return v.focusOn(focusKey)
		}
		return v.focusOn(focusModel)
	case keymap.Matches(k, v.keymap.Select):
		return v.saveProvider(p, v.modelFor(p), "")
	}
	return nil
}

// modelFor is the configured model when p is the current provider,
// otherwise p's default.
func (v *View) modelFor(p domain.AIProvider) string {
	ps := providerSections[v.section]
	if v.settings != nil {
		if current, model := ps.current(v.settings); current == p && model != "" {
			return model
		}
	}
	return ps.models()[p]
}

func (v *View) saveProvider(p domain.AIProvider, model, key string) tea.Cmd {
	save := providerSections[v.section].save
	return v.save(func(svc driving.SettingsService) error { return save(svc, p, model, key) })
}

// handleInput edits the focused field. Tab cycles key, model, list.
func (v *View) handleInput(msg tea.KeyMsg) (*View, tea.Cmd) {
	k := msg.String()
	switch {
	case k == "tab" || k == "shift+tab":
		if v.focus == focusKey {
			return v, v.focusOn(focusModel)
		}
		return v, v.focusOn(focusList)

	case keymap.Matches(k, v.keymap.Submit):
		if v.focus == focusValue {
			value := strings.TrimSpace(v.valueInput.Value())
			if value == "" {
				return v, nil
			}
			key := retrievalFields[v.selected].key
			return v, v.save(func(svc driving.SettingsService) error { return svc.Set(key, value) })
		}
		model := strings.TrimSpace(v.modelInput.Value())
		if model == "" {
			model = providerSections[v.section].models()[v.selectedProvider()]
		}
		return v, v.saveProvider(v.selectedProvider(), model, strings.TrimSpace(v.keyInput.Value()))
	}

	var cmd tea.Cmd
	in := v.input()
	*in, cmd = in.Update(msg)
	return v, cmd
}

func (v *View) input() *textinput.Model {
	switch v.focus {
	case focusKey:
		return &v.keyInput
	case focusModel:
		return &v.modelInput
	}
	return &v.valueInput
}

func (v *View) focusOn(f focus) tea.Cmd {
	v.keyInput.Blur()
	v.modelInput.Blur()
	v.valueInput.Blur()
	v.focus = f
	if f == focusList {
		return nil
	}
	return v.input().Focus()
}

// View renders the current section.
func (v *View) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Settings") + "\n\n")

	if v.err != nil {
		b.WriteString(v.styles.Error.Render("Error: "+v.err.Error()) + "\n\n")
	}
	if v.settings == nil {
		b.WriteString(v.styles.Muted.Render("Loading settings..."))
		return b.String()
	}

	switch v.section {
	case SectionOverview:
		v.renderOverview(&b)
	case SectionEmbedding, SectionLLM:
		v.renderProviders(&b)
	case SectionRetrieval:
		v.renderRetrieval(&b)
	}

	b.WriteString("\n" + v.styles.Help.Render(v.help()))
	return b.String()
}

func (v *View) line(b *strings.Builder, selected bool, text string) {
	if selected {
		b.WriteString(v.styles.Selected.Render("> "+text) + "\n")
		return
	}
	b.WriteString(v.styles.Normal.Render("  "+text) + "\n")
}

func (v *View) field(b *strings.Builder, label string, in textinput.Model) {
	b.WriteString("\n" + v.styles.Normal.Render(label+":") + "\n" + in.View() + "\n")
}

func (v *View) renderOverview(b *strings.Builder) {
	s := v.settings
	provider := func(p domain.AIProvider, model string, configured bool) string {
		if p == "" {
			return "Not Set"
		}
		state := v.styles.Success.Render("[configured]")
		if !configured {
			state = v.styles.Warning.Render("[needs API key]")
		}
		return fmt.Sprintf("%s (%s) %s", p.Description(), model, state)
	}

	lines := []string{
		"Embedding Provider: " + provider(s.Embedding.Provider, s.Embedding.Model, s.Embedding.IsConfigured()),
		"LLM Provider: " + provider(s.LLM.Provider, s.LLM.Model, s.LLM.IsConfigured()),
		fmt.Sprintf("Retrieval: %d results, min score %s", s.RAG.MaxResults, formatFloat(s.RAG.MinScore)),
	}
	for i, text := range lines {
		v.line(b, i == v.selected, text)
	}

	if v.service == nil {
		return
	}
	b.WriteString("\n")
	if err := v.service.Validate(); err != nil {
		b.WriteString(v.styles.Warning.Render("Warning: " + err.Error()))
	} else {
		b.WriteString(v.styles.Success.Render("Configuration is valid"))
	}
}

func (v *View) renderProviders(b *strings.Builder) {
	ps := providerSections[v.section]
	current, _ := ps.current(v.settings)
	models := ps.models()

	b.WriteString(v.styles.Subtitle.Render("Select "+ps.title) + "\n\n")
	for i, p := range ps.providers() {
		text := p.Description()
		if p == current {
			text += v.styles.Success.Render(" (current)")
		}
		v.line(b, i == v.selected && v.focus == focusList, text)
		if model, ok := models[p]; ok {
			b.WriteString(v.styles.Muted.Render("    Model: "+model) + "\n")
		}
	}

	if v.selectedProvider().RequiresAPIKey() {
		v.field(b, "API Key", v.keyInput)
	}
	if v.focus != focusList {
		v.field(b, "Model", v.modelInput)
	}
}

func (v *View) renderRetrieval(b *strings.Builder) {
	b.WriteString(v.styles.Subtitle.Render("Retrieval Defaults") + "\n\n")
	for i, f := range retrievalFields {
		v.line(b, i == v.selected && v.focus == focusList, f.label+": "+f.value(v.settings.RAG))
	}
	if v.focus == focusValue {
		v.field(b, retrievalFields[v.selected].label, v.valueInput)
	}
}

func (v *View) help() string {
	switch {
	case v.focus != focusList:
		return "[tab] next field  [enter] save  [esc] back"
	case v.section == SectionEmbedding || v.section == SectionLLM:
		return "[j/k] navigate  [tab] key and model  [enter] select  [esc] back"
	default:
		return "[j/k] navigate  [enter] edit  [esc] back"
	}
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width, v.height = width, height
}

// Reset returns to the overview and clears typed input.
func (v *View) Reset() {
	v.section = SectionOverview
	v.selected = 0
	v.err = nil
	v.focusOn(focusList)
	v.keyInput.SetValue("")
	v.modelInput.SetValue("")
	v.valueInput.SetValue("")
}
