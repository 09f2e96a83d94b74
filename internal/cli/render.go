package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/suqaba/suqaba-cli/internal/dashboard"
	"github.com/suqaba/suqaba-cli/internal/jobs"
	"github.com/suqaba/suqaba-cli/internal/models"
	"github.com/suqaba/suqaba-cli/internal/session"
	"github.com/suqaba/suqaba-cli/internal/wizard"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(jobs.ColorMuted)
	mutedStyle  = lipgloss.NewStyle().Foreground(jobs.ColorMuted)
)

// Column widths for job tables.
const (
	idWidth     = 14
	nameWidth   = 28
	statusWidth = 14
)

// now is replaced in tests so relative times are stable.
var now = time.Now

// truncate shortens s to width runes, marking the cut with "…".
func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}

// relativeTime formats t like "3 minutes ago"; zero times render as "-".
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now(), "ago", "from now")
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return relativeTime(*t)
}

// statusCell renders a hint padded to the status column.
func statusCell(h jobs.Hint) string {
	return lipgloss.NewStyle().Foreground(h.Color).Width(statusWidth).Render(h.Symbol + " " + h.Label)
}

func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

func printJobTable(w io.Writer, rows []dashboard.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No simulations yet. Create one with 'suqaba submit'."))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-*s %-*s %-*s %s",
		idWidth, "ID", nameWidth, "NAME", statusWidth, "STATUS", "CREATED")))
	for _, r := range rows {
		fmt.Fprintf(w, "%-*s %-*s %s %s\n",
			idWidth, truncate(r.Simulation.ID, idWidth),
			nameWidth, truncate(r.Simulation.Name, nameWidth),
			statusCell(r.Hint),
			relativeTime(r.Simulation.CreatedAt))
	}
}

func printDashboard(w io.Writer, sess *session.Session, s dashboard.Summary) {
	who := sess.Email
	if sess.DisplayName != "" {
		who = fmt.Sprintf("%s <%s>", sess.DisplayName, sess.Email)
	}
	fmt.Fprintln(w, titleStyle.Render("Suqaba dashboard")+" "+mutedStyle.Render(who))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s   %s %s   %s %s   %s %d\n",
		jobs.HintFor(models.StatusCompleted).Render(), humanize.Comma(int64(s.Counts.Completed)),
		jobs.HintFor(models.StatusProcessing).Render(), humanize.Comma(int64(s.Counts.Processing)),
		jobs.HintFor(models.StatusQueued).Render(), humanize.Comma(int64(s.Counts.Queued)),
		titleStyle.Render("Total"), s.Total)
	printQueue(w, s.Counts)
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Recent simulations"))
	printJobTable(w, s.Recent)
}

// printQueue shows what the solver is working on and where the user's next
// pending job stands, when the server reports it.
func printQueue(w io.Writer, c models.JobCounts) {
	if c.InProgress != "" {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Being processed:"), truncate(c.InProgress, idWidth))
	}
	if q := c.NextQueued; q != nil {
		fmt.Fprintf(w, "  %s %s (position %d)\n", mutedStyle.Render("Next in queue:  "), truncate(q.JobID, idWidth), q.Position)
	}
}

func printJob(w io.Writer, m *jobs.Machine) {
	sim := m.Snapshot()
	field := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(w, "%s %s\n", headerStyle.Render(fmt.Sprintf("%-20s", label+":")), value)
	}

	field("ID", sim.ID)
	field("Name", sim.Name)
	field("Status", m.Hint().Render())
	if intent := m.Intent(); intent != "" {
		field("Server status", string(m.Observed()))
	}
	field("Description", sim.Description)
	field("Analysis", string(sim.AnalysisType))
	if sim.ErrorThreshold > 0 {
		field("Error threshold", formatThreshold(sim.ErrorThreshold))
	}
	field("Materials", sim.Materials)
	field("Boundary conditions", sim.BoundaryConditions)
	field("Geometry", sim.GeometryFile)
	if sim.QualityOracle != nil {
		field("Quality oracle", strconv.FormatFloat(*sim.QualityOracle, 'f', -1, 64))
	}
	if sim.MeshNodes != nil {
		field("Mesh nodes", humanize.Comma(int64(*sim.MeshNodes)))
	}
	if sim.MeshElements != nil {
		field("Mesh elements", humanize.Comma(int64(*sim.MeshElements)))
	}
	field("Created", relativeTime(sim.CreatedAt))
	if sim.StartedAt != nil {
		field("Started", optionalTime(sim.StartedAt))
	}
	if sim.CompletedAt != nil {
		field("Completed", optionalTime(sim.CompletedAt))
	}
	field("Actions", allowedActions(m))
}

// allowedActions lists the commands the job currently accepts.
func allowedActions(m *jobs.Machine) string {
	var actions []string
	if m.CanStart() {
		actions = append(actions, "start")
	}
	if m.CanStop() {
		actions = append(actions, "stop")
	}
	if m.CanDownload() {
		actions = append(actions, "download")
	}
	actions = append(actions, "delete")
	return strings.Join(actions, ", ")
}

func printReview(w io.Writer, d wizard.Draft) {
	fmt.Fprintln(w, titleStyle.Render(wizard.StepReview.String()))
	row := func(label, value string) {
		if value == "" {
			value = mutedStyle.Render("(none)")
		}
		fmt.Fprintf(w, "  %s %s\n", headerStyle.Render(fmt.Sprintf("%-20s", label+":")), value)
	}
	geometry := d.GeometryPath
	if geometry != "" && d.GeometrySize > 0 {
		geometry = fmt.Sprintf("%s (%s)", geometry, humanize.Bytes(uint64(d.GeometrySize)))
	}
	row("Geometry", geometry)
	row("Name", d.Name)
	row("Description", d.Description)
	row("Analysis type", d.AnalysisType)
	row("Error threshold", d.ErrorThreshold)
	row("Materials", d.Materials)
	row("Boundary conditions", d.BoundaryConditions)
}
