package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/hylla/kanfile/internal/app"
	"github.com/hylla/kanfile/internal/domain"
)

var (
	accentColor = lipgloss.Color("62")
	mutedColor  = lipgloss.Color("243")
	readyColor  = lipgloss.Color("42")
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230"))
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
)

// renderVocabulary renders the operation vocabulary as one table.
func renderVocabulary(specs []app.OpSpec) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(accentColor)).
		Headers("OP", "REQUIRED", "MUTATES", "SUMMARY").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, spec := range specs {
		mutates := ""
		if spec.Mutates {
			mutates = "yes"
		}
		t.Row(spec.Op, strings.Join(spec.Required, ", "), mutates, spec.Summary)
	}
	return t.String()
}

// renderBoard lays out one bordered box per column, tasks in board order.
func renderBoard(board domain.Board, tasks []app.TaskView) string {
	columns := slices.Clone(board.Columns)
	slices.SortStableFunc(columns, func(a, b domain.Column) int {
		return a.Rank - b.Rank
	})
	lanes := map[domain.SwimlaneID]string{}
	for _, lane := range board.Swimlanes {
		lanes[lane.ID] = lane.Name
	}

	byColumn := map[domain.ColumnID][]app.TaskView{}
	for _, task := range tasks {
		byColumn[task.Position.Column] = append(byColumn[task.Position.Column], task)
	}

	boxes := make([]string, 0, len(columns))
	for _, column := range columns {
		items := byColumn[column.ID]
		title := fmt.Sprintf("%s (%d)", column.Name, len(items))
		if column.WIPLimit > 0 {
			title = fmt.Sprintf("%s (%d/%d)", column.Name, len(items), column.WIPLimit)
		}
		lines := []string{headerStyle.Render(title)}
		if len(items) == 0 {
			lines = append(lines, mutedStyle.Render("empty"))
		}
		for _, task := range items {
			lines = append(lines, renderTaskLine(task, lanes))
		}
		box := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1).
			Width(32).
			Render(strings.Join(lines, "\n"))
		boxes = append(boxes, box)
	}

	heading := headerStyle.Render(board.Name)
	if desc := strings.TrimSpace(board.Description); desc != "" {
		heading += "\n" + mutedStyle.Render(desc)
	}
	return heading + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

// renderTaskLine renders one task entry inside a column box.
func renderTaskLine(task app.TaskView, lanes map[domain.SwimlaneID]string) string {
	marker := mutedStyle.Render("○")
	if task.Ready {
		marker = lipgloss.NewStyle().Foreground(readyColor).Render("●")
	}
	line := fmt.Sprintf("%s %s %s", marker, task.Title, mutedStyle.Render(string(task.ID)))
	if lane, ok := lanes[task.Position.Swimlane]; ok && lane != "" {
		line += "\n  " + mutedStyle.Render("lane: "+lane)
	}
	return line
}

// taskMarkdown renders one task as a markdown document.
func taskMarkdown(task app.TaskView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", task.Title)
	state := "blocked"
	if task.Ready {
		state = "ready"
	}
	fmt.Fprintf(&b, "`%s` · column **%s** · %s\n\n", task.ID, task.Position.Column, state)
	if len(task.BlockedBy) > 0 {
		ids := make([]string, 0, len(task.BlockedBy))
		for _, id := range task.BlockedBy {
			ids = append(ids, "`"+string(id)+"`")
		}
		fmt.Fprintf(&b, "Blocked by %s\n\n", strings.Join(ids, ", "))
	}
	if desc := strings.TrimSpace(task.Description); desc != "" {
		b.WriteString(desc)
		b.WriteString("\n\n")
	}
	if len(task.Tags) > 0 || len(task.Assignees) > 0 {
		if len(task.Tags) > 0 {
			fmt.Fprintf(&b, "- **Tags:** %s\n", joinIDs(task.Tags))
		}
		if len(task.Assignees) > 0 {
			fmt.Fprintf(&b, "- **Assignees:** %s\n", joinIDs(task.Assignees))
		}
		b.WriteString("\n")
	}
	if len(task.Subtasks) > 0 {
		b.WriteString("## Subtasks\n\n")
		for _, sub := range task.Subtasks {
			check := " "
			if sub.Done {
				check = "x"
			}
			fmt.Fprintf(&b, "- [%s] %s\n", check, sub.Title)
		}
		b.WriteString("\n")
	}
	if len(task.Comments) > 0 {
		b.WriteString("## Comments\n\n")
		for _, comment := range task.Comments {
			author := string(comment.Author)
			if author == "" {
				author = "anonymous"
			}
			fmt.Fprintf(&b, "**%s:** %s\n\n", author, comment.Body)
		}
	}
	if len(task.Attachments) > 0 {
		b.WriteString("## Attachments\n\n")
		for _, att := range task.Attachments {
			fmt.Fprintf(&b, "- %s (`%s`)\n", att.Name, att.Path)
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func joinIDs[T ~string](ids []T) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, string(id))
	}
	return strings.Join(parts, ", ")
}

// renderMarkdown converts markdown into terminal text, falling back to the source on renderer errors.
func renderMarkdown(markdown, style string, width int) string {
	if width < 24 {
		width = 24
	}
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n") + "\n"
}
