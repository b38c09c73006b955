package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	Primary   = lipgloss.Color("#22d3ee")
	Secondary = lipgloss.Color("#7C3AED")
	Success   = lipgloss.Color("#10B981")
	Warning   = lipgloss.Color("#F59E0B")
	Error     = lipgloss.Color("#EF4444")
	Muted     = lipgloss.Color("#6B7280")
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(Primary)
	SuccessStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)
	BoldStyle    = lipgloss.NewStyle().Bold(true)

	SenderStyle = lipgloss.NewStyle().Foreground(Secondary).Bold(true)

	RoomBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 2)
)

var (
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Primary).
				Align(lipgloss.Center)

	tableCellStyle = lipgloss.NewStyle().Padding(0, 1)

	TableRowStyle = tableCellStyle.Foreground(lipgloss.Color("255"))

	TableRowAltStyle = tableCellStyle.Foreground(lipgloss.Color("245"))
)

const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconInfo    = "ℹ️"
	IconRoom    = "🚪"
	IconHost    = "⭐"
	IconChat    = "💬"
)

func PrintError(msg string) {
	fmt.Printf("%s %s\n", ErrorStyle.Render(IconError), ErrorStyle.Render(msg))
}

func PrintWarning(msg string) {
	fmt.Printf("%s %s\n", WarningStyle.Render(IconWarning), WarningStyle.Render(msg))
}

func PrintSuccess(msg string) {
	fmt.Printf("%s %s\n", SuccessStyle.Render(IconSuccess), msg)
}

func PrintInfo(msg string) {
	fmt.Printf("%s %s\n", IconInfo, msg)
}

func PrintInfof(format string, args ...any) {
	PrintInfo(fmt.Sprintf(format, args...))
}
