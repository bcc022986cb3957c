package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sys/unix"

	"github.com/wippyai/mediafs/provider"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const historyLimit = 20

type historyLine struct {
	command string
	output  string
	failed  bool
}

type shellModel struct {
	prov     *provider.Provider
	err      error
	filename string
	memPages uint32
	input    textinput.Model
	history  []historyLine
	loaded   bool
}

type guestLoadedMsg struct {
	err  error
	prov *provider.Provider
}

type commandDoneMsg struct {
	command string
	output  string
	err     error
}

func newShellModel(filename string, memPages uint32) *shellModel {
	ti := textinput.New()
	ti.Placeholder = "open /DCIM/IMG_0001.jpg 10023"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 72

	return &shellModel{
		filename: filename,
		memPages: memPages,
		input:    ti,
	}
}

func (m *shellModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadGuest)
}

func (m *shellModel) loadGuest() tea.Msg {
	p, err := loadProvider(m.filename, m.memPages)
	return guestLoadedMsg{prov: p, err: err}
}

func (m *shellModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case guestLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.prov = msg.prov
		m.loaded = true
		return m, nil

	case commandDoneMsg:
		line := historyLine{command: msg.command}
		if msg.err != nil {
			line.output = msg.err.Error()
			line.failed = true
		} else {
			line.output = msg.output
		}
		m.history = append(m.history, line)
		if len(m.history) > historyLimit {
			m.history = m.history[len(m.history)-historyLimit:]
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, m.quit()

		case "enter":
			if !m.loaded {
				return m, nil
			}
			raw := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if raw == "" {
				return m, nil
			}
			if raw == "quit" || raw == "exit" {
				return m, m.quit()
			}
			return m, func() tea.Msg {
				out, err := execCommand(m.prov, strings.Fields(raw))
				return commandDoneMsg{command: raw, output: out, err: err}
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *shellModel) quit() tea.Cmd {
	if m.prov != nil {
		m.prov.Close(context.Background())
		m.prov = nil
	}
	return tea.Quit
}

func (m *shellModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("mediafs shell: " + m.filename))
	b.WriteString("\n\n")

	if !m.loaded {
		b.WriteString(helpStyle.Render("loading guest..."))
		b.WriteString("\n")
		return b.String()
	}

	for _, line := range m.history {
		b.WriteString(promptStyle.Render("> " + line.command))
		b.WriteString("\n")
		if line.failed {
			b.WriteString(errorStyle.Render("  " + line.output))
		} else {
			b.WriteString(resultStyle.Render("  " + line.output))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("open|create|delete|mkdir|rmdir|opendir <path> <uid> · ls <path> <uid> [lowerdir] · redact <path> <uid> · scan <path> · quit"))
	b.WriteString("\n")
	return b.String()
}

func runInteractive(wasmFile string, memPages uint32) error {
	m := newShellModel(wasmFile, memPages)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		return err
	}
	return m.err
}

// execCommand parses and runs one shell command against the provider.
func execCommand(p *provider.Provider, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("empty command")
	}
	cmd, args := args[0], args[1:]

	pathUID := func() (string, uint32, error) {
		if len(args) < 2 {
			return "", 0, fmt.Errorf("%s needs <path> <uid>", cmd)
		}
		uid, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return "", 0, fmt.Errorf("bad uid %q: %w", args[1], err)
		}
		return args[0], uint32(uid), nil
	}

	switch cmd {
	case "open":
		path, uid, err := pathUID()
		if err != nil {
			return "", err
		}
		forWrite := len(args) > 2 && args[2] == "w"
		return statusString(p.IsOpenAllowed(path, uid, forWrite)), nil

	case "create":
		path, uid, err := pathUID()
		if err != nil {
			return "", err
		}
		return statusString(p.InsertFile(path, uid)), nil

	case "delete":
		path, uid, err := pathUID()
		if err != nil {
			return "", err
		}
		return statusString(p.DeleteFile(path, uid)), nil

	case "mkdir":
		path, uid, err := pathUID()
		if err != nil {
			return "", err
		}
		return statusString(p.IsCreatingDirAllowed(path, uid)), nil

	case "rmdir":
		path, uid, err := pathUID()
		if err != nil {
			return "", err
		}
		return statusString(p.IsDeletingDirAllowed(path, uid)), nil

	case "opendir":
		path, uid, err := pathUID()
		if err != nil {
			return "", err
		}
		return statusString(p.IsOpendirAllowed(path, uid)), nil

	case "ls":
		path, uid, err := pathUID()
		if err != nil {
			return "", err
		}
		var lower fs.ReadDirFile
		if len(args) > 2 {
			f, err := os.Open(args[2])
			if err != nil {
				return "", fmt.Errorf("open lower dir: %w", err)
			}
			defer f.Close()
			lower = f
		}
		entries, err := p.GetDirectoryEntries(uid, path, lower)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "(empty)", nil
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name
			if e.Type == unix.DT_DIR {
				names[i] += "/"
			}
		}
		return strings.Join(names, "  "), nil

	case "redact":
		path, uid, err := pathUID()
		if err != nil {
			return "", err
		}
		info, err := p.GetRedactionInfo(path, uid)
		if err != nil {
			return "", err
		}
		if !info.IsRedactionNeeded() {
			return "no redaction needed", nil
		}
		parts := make([]string, len(info.Ranges()))
		for i, r := range info.Ranges() {
			parts[i] = fmt.Sprintf("[%d, %d)", r.Start, r.End)
		}
		return strings.Join(parts, " "), nil

	case "scan":
		if len(args) < 1 {
			return "", fmt.Errorf("scan needs <path>")
		}
		p.ScanFile(args[0])
		return "scan requested", nil

	default:
		return "", fmt.Errorf("unknown command %q", cmd)
	}
}

func statusString(status int32) string {
	if status == 0 {
		return "OK"
	}
	return fmt.Sprintf("%d (%s)", status, unix.Errno(-status).Error())
}
