package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/wippyai/ydb-bridge/config"
	"github.com/wippyai/ydb-bridge/connection"
	"github.com/wippyai/ydb-bridge/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// field is one input of a shell operation.
type field int

const (
	fieldName field = iota
	fieldSubscripts
	fieldValue
	fieldIncrement
	fieldTimeout
	fieldEntryref
	fieldArguments
	fieldFrom
	fieldTo
)

var fieldInfo = [...]struct{ label, hint string }{
	fieldName:       {"name", "^global or local"},
	fieldSubscripts: {"subscripts", "comma separated"},
	fieldValue:      {"value", "string or number"},
	fieldIncrement:  {"increment", "default 1"},
	fieldTimeout:    {"timeout", "seconds, empty waits"},
	fieldEntryref:   {"entryref", "label^routine"},
	fieldArguments:  {"arguments", "comma separated"},
	fieldFrom:       {"from", "^x(1,2) or local"},
	fieldTo:         {"to", "^y or local"},
}

type shellOp struct {
	op     runtime.Op
	fields []field
}

var shellOps = []shellOp{
	{runtime.OpGet, []field{fieldName, fieldSubscripts}},
	{runtime.OpSet, []field{fieldName, fieldSubscripts, fieldValue}},
	{runtime.OpData, []field{fieldName, fieldSubscripts}},
	{runtime.OpKill, []field{fieldName, fieldSubscripts}},
	{runtime.OpOrder, []field{fieldName, fieldSubscripts}},
	{runtime.OpPrevious, []field{fieldName, fieldSubscripts}},
	{runtime.OpNextNode, []field{fieldName, fieldSubscripts}},
	{runtime.OpPreviousNode, []field{fieldName, fieldSubscripts}},
	{runtime.OpIncrement, []field{fieldName, fieldSubscripts, fieldIncrement}},
	{runtime.OpLock, []field{fieldName, fieldSubscripts, fieldTimeout}},
	{runtime.OpUnlock, []field{fieldName, fieldSubscripts}},
	{runtime.OpMerge, []field{fieldFrom, fieldTo}},
	{runtime.OpFunction, []field{fieldEntryref, fieldArguments}},
	{runtime.OpProcedure, []field{fieldEntryref, fieldArguments}},
	{runtime.OpGlobalDirectory, nil},
	{runtime.OpLocalDirectory, nil},
	{runtime.OpVersion, nil},
}

type interactiveModel struct {
	err      error
	opts     *rootOptions
	rt       *runtime.Runtime
	session  *runtime.Session
	notice   string
	result   string
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
	cancel   context.CancelFunc
	program  *tea.Program
}

type modelState int

const (
	stateSelectOp modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(opts *rootOptions) *interactiveModel {
	return &interactiveModel{
		opts:  opts,
		state: stateSelectOp,
	}
}

type openedMsg struct {
	err error
	rt  *runtime.Runtime
}

type callResultMsg struct {
	err    error
	result string
}

// reloadMsg carries a configuration change seen on disk.
type reloadMsg struct {
	cfg config.Config
	err error
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.open
}

func (m *interactiveModel) open() tea.Msg {
	cfg, err := m.opts.load()
	if err != nil {
		return openedMsg{err: err}
	}
	rt, err := runtime.New(cfg, nil)
	if err != nil {
		return openedMsg{err: err}
	}
	if err := rt.Open(context.Background()); err != nil {
		return openedMsg{err: err}
	}
	return openedMsg{rt: rt}
}

// watch forwards config file changes to the program until the model quits.
func (m *interactiveModel) watch() {
	if m.opts.Config == "" || m.program == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go func() {
		err := config.Watch(ctx, m.opts.Config, runtime.Logger(), func(cfg config.Config, err error) {
			m.program.Send(reloadMsg{cfg: cfg, err: err})
		})
		if err != nil && ctx.Err() == nil {
			m.program.Send(reloadMsg{err: err})
		}
	}()
}

func (m *interactiveModel) shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.rt != nil {
		m.rt.Close(context.Background())
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.shutdown()
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				m.shutdown()
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectOp && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectOp && m.selected < len(shellOps)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectOp:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callOperation
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.callOperation

			case stateShowResult:
				m.state = stateSelectOp
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectOp
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectOp
				m.result = ""
				m.err = nil
			}
		}

	case openedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rt = msg.rt
		m.session = msg.rt.Session()
		m.watch()

	case reloadMsg:
		m.notice = m.reload(msg)

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

// reload applies the settings a session may change while open. Anything else
// in the file takes effect on the next start.
func (m *interactiveModel) reload(msg reloadMsg) string {
	if msg.err != nil {
		return "config: " + msg.err.Error()
	}
	if m.session == nil {
		return ""
	}
	s, err := msg.cfg.Settings()
	if err != nil {
		return "config: " + err.Error()
	}
	relink := msg.cfg.AutoRelink
	err = m.session.Configure(connection.Overrides{
		Mode:       &s.Mode,
		Charset:    &s.Charset,
		DebugLevel: &s.Debug,
		AutoRelink: &relink,
	})
	if err != nil {
		return "config: " + err.Error()
	}
	return fmt.Sprintf("config reloaded: mode %s, charset %s", s.Mode, s.Charset)
}

func (m *interactiveModel) prepareInputs() {
	op := shellOps[m.selected]
	m.inputs = make([]textinput.Model, len(op.fields))
	for i, f := range op.fields {
		ti := textinput.New()
		ti.Placeholder = fieldInfo[f].hint
		ti.Prompt = fieldInfo[f].label + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callOperation() tea.Msg {
	if m.session == nil {
		return callResultMsg{err: fmt.Errorf("database not open")}
	}
	ctx := context.Background()
	op := shellOps[m.selected]

	if op.op == runtime.OpVersion {
		v, err := m.session.Version(ctx)
		return callResultMsg{err: err, result: v}
	}

	values := make(map[field]string, len(m.inputs))
	for i, input := range m.inputs {
		values[op.fields[i]] = strings.TrimSpace(input.Value())
	}
	o, err := buildOptions(op.op, values)
	if err != nil {
		return callResultMsg{err: err}
	}
	env, err := m.session.Do(ctx, op.op, o)
	if err != nil {
		return callResultMsg{err: err}
	}
	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: string(out)}
}

// buildOptions maps shell fields onto an object-style call.
func buildOptions(op runtime.Op, values map[field]string) (runtime.Options, error) {
	o := runtime.Options{Ref: parseRef(values[fieldName], splitList(values[fieldSubscripts]))}
	if v, ok := values[fieldValue]; ok {
		o.Data = parseValue(v)
	}
	if v := values[fieldIncrement]; v != "" {
		o.Increment = parseValue(v)
	}
	if v := values[fieldTimeout]; v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return o, fmt.Errorf("timeout: %w", err)
		}
		o.Timeout = &t
	}
	if v := values[fieldArguments]; v != "" {
		o.Arguments = parseValues(splitList(v))
	}
	switch op {
	case runtime.OpFunction:
		o.Function = values[fieldEntryref]
	case runtime.OpProcedure:
		o.Procedure = values[fieldEntryref]
	case runtime.OpMerge:
		o.From = parseNode(values[fieldFrom])
		o.To = parseNode(values[fieldTo])
	}
	return o, nil
}

// parseNode reads the shell's compact form: ^x(1,"a") or x.
func parseNode(s string) runtime.Ref {
	name, rest, ok := strings.Cut(s, "(")
	if !ok {
		return parseRef(name, nil)
	}
	rest = strings.TrimSuffix(rest, ")")
	return parseRef(name, splitList(rest))
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if u, err := strconv.Unquote(p); err == nil {
			p = u
		}
		parts[i] = p
	}
	return parts
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.session == nil {
		return "Opening database..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("M Shell"))
	b.WriteString(" ")
	b.WriteString(m.describe())
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(helpStyle.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch m.state {
	case stateSelectOp:
		b.WriteString("Select an operation:\n\n")
		for i, op := range shellOps {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + formatOp(op)))
			} else {
				b.WriteString("  " + formatOp(op))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		op := shellOps[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(op.op.String())))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(fieldInfo[op.fields[i]].hint))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		op := shellOps[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(op.op.String())))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) describe() string {
	s := m.session.Settings()
	return fmt.Sprintf("%s mode, %s", s.Mode, s.Charset)
}

func formatOp(op shellOp) string {
	var params []string
	for _, f := range op.fields {
		params = append(params, typeStyle.Render(fieldInfo[f].label))
	}
	return funcStyle.Render(op.op.String()) + "(" + strings.Join(params, ", ") + ")"
}

func newShellCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive console; reloads settings when the config file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(opts)
		},
	}
}

func runInteractive(opts *rootOptions) error {
	m := newInteractiveModel(opts)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.program = p
	_, err := p.Run()
	return err
}
