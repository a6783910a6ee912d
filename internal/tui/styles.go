package tui

import (
	"charm.land/lipgloss/v2"

	"tasnim.dev/eks-lifecycle/internal/tui/theme"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary)

	headerStyle = theme.HeaderStyle

	labelStyle = theme.MutedStyle

	valueStyle = lipgloss.NewStyle().
			Bold(true)

	profileStyle = lipgloss.NewStyle().
			Foreground(theme.Secondary)

	helpStyle = theme.HelpStyle

	errorStyle = theme.ErrorStyle

	doneStyle = theme.SuccessStyle

	dashboardStyle = theme.DashboardStyle
)
