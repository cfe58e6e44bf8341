package app

import "charm.land/lipgloss/v2"

var (
	headerStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	statusStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	userBubbleStyle   = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("69"))
	agentBubbleStyle  = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238"))
	systemLineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	errorLineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	thinkingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	toolLineStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("110"))
	toolErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	toolOutputStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("247"))
	permissionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	permissionDimmed  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	imageMarkerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("140"))
	compactionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("178")).Italic(true)
	streamCursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("120"))
)
