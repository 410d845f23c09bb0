package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34d399"}
	colorDim    = lipgloss.AdaptiveColor{Light: "#64748b", Dark: "#94a3b8"}

	styleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 2)
	styleTitle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	styleLabel = lipgloss.NewStyle().Foreground(colorDim).Width(16)
)

type bannerInfo struct {
	Version       string
	Instance      string
	URL           string
	RootDir       string
	Command       string
	Timeout       time.Duration
	StreamTimeout time.Duration
}

func banner(info bannerInfo) string {
	rows := [][2]string{
		{"URL", info.URL},
		{"Root directory", info.RootDir},
		{"Instance", info.Instance},
		{"Command", info.Command},
		{"Timeouts", fmt.Sprintf("%s / %s (stream)", info.Timeout, info.StreamTimeout)},
	}

	lines := []string{styleTitle.Render("Claude Code Chat " + info.Version), ""}
	for _, row := range rows {
		lines = append(lines, styleLabel.Render(row[0])+row[1])
	}
	return styleBox.Render(strings.Join(lines, "\n"))
}
