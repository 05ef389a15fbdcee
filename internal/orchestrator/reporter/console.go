package reporter

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	colorCyan   = lipgloss.Color("#00D7FF")
	colorGray   = lipgloss.Color("#6C6C6C")
	colorGreen  = lipgloss.Color("#00FF87")
	colorYellow = lipgloss.Color("#FFD75F")
	colorRed    = lipgloss.Color("#FF5F5F")
	colorWhite  = lipgloss.Color("#FFFFFF")
)

type context struct {
	agentID string
	state   string
}

// Console is the default Reporter: it writes to an io.Writer (stdout
// in production) with one output mutex so lines from different agents
// never interleave mid-line, and re-emits a "[agent_id] state" header
// whenever the printed context changes.
type Console struct {
	out   io.Writer
	quiet bool
	width int
	color bool

	mu          sync.Mutex
	lastContext context
	haveContext bool
}

// Option configures a Console at construction.
type Option func(*Console)

// WithQuiet suppresses progress and tool-invocation lines.
func WithQuiet(quiet bool) Option {
	return func(c *Console) { c.quiet = quiet }
}

// WithWidth fixes the terminal width instead of auto-detecting it.
func WithWidth(width int) Option {
	return func(c *Console) {
		if width > 0 {
			c.width = width
		}
	}
}

// NewConsole builds a Console writing to out, detecting color/width
// capability from the environment unless overridden by opts.
func NewConsole(out io.Writer, opts ...Option) *Console {
	c := &Console{
		out:   out,
		width: detectWidth(),
		color: detectColor(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// detectWidth honors COLUMNS for non-TTY environments and falls back
// to the terminal's own reported width, then 80.
func detectWidth() int {
	if v := os.Getenv("COLUMNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// detectColor honors NO_COLOR unconditionally (https://no-color.org)
// and otherwise assumes a capable terminal; TERM=dumb and a detected
// Windows Terminal session (WT_SESSION) are also consulted.
func detectColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("WT_SESSION") != "" {
		return true
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return true
}

func (c *Console) style(fg lipgloss.Color, bold bool) lipgloss.Style {
	s := lipgloss.NewStyle()
	if c.color {
		s = s.Foreground(fg)
	}
	if bold {
		s = s.Bold(true)
	}
	return s
}

// ensureHeader prints "[agent_id] state" if the printed context has
// changed (or force is set, e.g. on a retry) and records it as the
// new last-printed context.
func (c *Console) ensureHeader(agentID, state string, force bool) {
	cur := context{agentID: agentID, state: state}
	if !force && c.haveContext && c.lastContext == cur {
		return
	}
	header := c.style(colorCyan, true).Render(fmt.Sprintf("[%s]", agentID)) + " " + state
	fmt.Fprintln(c.out, header)
	c.lastContext = cur
	c.haveContext = true
}

func (c *Console) arrow() string {
	if !c.color {
		return "->"
	}
	return "→"
}

func (c *Console) truncate(s string) string {
	limit := c.width - 4
	if limit < 10 {
		limit = 10
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}

func (c *Console) WorkflowStarted(workflowID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, c.style(colorGreen, true).Render("workflow started")+" "+workflowID)
}

func (c *Console) StateStarted(agentID, state string, attempt int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureHeader(agentID, state, attempt > 1)
	if attempt > 1 {
		fmt.Fprintln(c.out, "  "+c.style(colorYellow, false).Render(fmt.Sprintf("retry %d", attempt)))
	}
}

func (c *Console) ProgressMessage(agentID, state, message string) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureHeader(agentID, state, false)
	fmt.Fprintln(c.out, "  "+c.truncate(message))
}

func (c *Console) ToolInvocation(agentID, state, tool, summary string) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureHeader(agentID, state, false)
	name := c.style(colorCyan, true).Render(tool)
	fmt.Fprintln(c.out, "  "+name+" "+c.style(colorGray, false).Render(c.truncate(summary)))
}

func (c *Console) ToolError(agentID, state, tool string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureHeader(agentID, state, false)
	fmt.Fprintln(c.out, "  "+c.style(colorRed, true).Render("✗ "+tool)+": "+err.Error())
}

func (c *Console) StateCompleted(agentID, state string, cost float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureHeader(agentID, state, false)
	fmt.Fprintln(c.out, "  "+c.style(colorGreen, false).Render("done")+fmt.Sprintf(" ($%.4f)", cost))
}

func (c *Console) Transition(agentID, state, kind, target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureHeader(agentID, state, false)
	fmt.Fprintf(c.out, "  %s %s %s\n", kind, c.arrow(), target)
}

func (c *Console) AgentTerminated(agentID, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.haveContext && c.lastContext.agentID == agentID {
		c.haveContext = false
	}
	fmt.Fprintln(c.out, c.style(colorGreen, true).Render(fmt.Sprintf("[%s] terminated", agentID))+": "+c.truncate(result))
}

func (c *Console) AgentPaused(agentID, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, c.style(colorYellow, true).Render(fmt.Sprintf("[%s] paused", agentID))+": "+reason)
}

func (c *Console) WorkflowPaused(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, c.style(colorYellow, true).Render("workflow paused")+": "+reason)
}

func (c *Console) WorkflowCompleted(workflowID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, c.style(colorGreen, true).Render("workflow completed")+" "+workflowID)
}

func (c *Console) ScriptStarted(agentID, state, path string) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureHeader(agentID, state, false)
	fmt.Fprintln(c.out, "  "+c.style(colorGray, false).Render("running "+path))
}

func (c *Console) ScriptCompleted(agentID, state string, exitCode int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureHeader(agentID, state, false)
	style := c.style(colorGreen, false)
	if exitCode != 0 {
		style = c.style(colorRed, true)
	}
	fmt.Fprintln(c.out, "  "+style.Render(fmt.Sprintf("exit %d", exitCode)))
}

func (c *Console) Error(agentID, state string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureHeader(agentID, state, false)
	fmt.Fprintln(c.out, "  "+c.style(colorRed, true).Render("error")+": "+strings.TrimSpace(err.Error()))
}

// ScopeChanged reports a Watcher-detected edit to a state file; it is
// informational only and never suppressed by quiet mode, matching the
// never-suppress-errors-or-headers rule for quiet output.
func (c *Console) ScopeChanged(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, c.style(colorGray, false).Render("scope changed")+": "+path)
}
