package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/daoservice/govsync/internal/domain/models"
)

// Color styles shared by the renderers
var (
	labelStyle     = color.New(color.Bold)
	addressStyle   = color.New(color.FgWhite)
	idStyle        = color.New(color.FgHiWhite, color.Bold)
	timestampStyle = color.New(color.Faint)
	allowedStyle   = color.New(color.FgGreen)
	blockedStyle   = color.New(color.FgRed)
	headerStyle    = color.New(color.Bold, color.FgHiWhite)
)

var stateStyles = map[models.ProposalState]*color.Color{
	models.ProposalStatePending:   color.New(color.FgYellow),
	models.ProposalStateActive:    color.New(color.FgCyan, color.Bold),
	models.ProposalStateCanceled:  color.New(color.Faint),
	models.ProposalStateDefeated:  color.New(color.FgRed),
	models.ProposalStateSucceeded: color.New(color.FgGreen),
	models.ProposalStateQueued:    color.New(color.FgBlue, color.Bold),
	models.ProposalStateExpired:   color.New(color.Faint),
	models.ProposalStateExecuted:  color.New(color.FgGreen, color.Bold),
}

// FormatState renders a proposal state with its color
func FormatState(s models.ProposalState) string {
	if style, ok := stateStyles[s]; ok {
		return style.Sprint(s.String())
	}
	return s.String()
}

// FormatError formats an error message with the error icon
func FormatError(message string) string {
	if len(message) > 0 {
		message = strings.ToUpper(message[:1]) + message[1:]
	}
	return color.New(color.FgRed).Sprintf("❌ %s", message)
}

// FormatWarning formats a warning message with the warning icon
func FormatWarning(message string) string {
	return color.New(color.FgYellow).Sprintf("⚠️  %s", message)
}

// FormatSuccess formats a success message with the success icon
func FormatSuccess(message string) string {
	return color.New(color.FgGreen).Sprintf("✅ %s", message)
}

// JSON writes v as indented JSON
func JSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// newTable returns a borderless table writer in the CLI's house style
func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateColumns = false
	t.Style().Options.SeparateRows = false
	t.Style().Box = table.BoxStyle{
		PaddingRight:     "   ",
		MiddleHorizontal: "─",
	}
	return t
}

// shortHash keeps the first and last characters of long hex strings
func shortHash(s string) string {
	if len(s) <= 18 {
		return s
	}
	return s[:10] + "…" + s[len(s)-6:]
}
