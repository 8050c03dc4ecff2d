// Package ui provides terminal styling helpers for CLI output.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/auditoria-ti/specsync/internal/model"
	"github.com/auditoria-ti/specsync/internal/syncer"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

// RenderAccent styles informational markers.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderPass styles success markers.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn styles warning markers.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail styles failure markers.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderMuted styles secondary detail.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// RenderHeader styles section headers.
func RenderHeader(s string) string { return headerStyle.Render(s) }

// RenderAction styles a sync action word with its outcome color.
func RenderAction(a syncer.Action) string {
	switch a {
	case syncer.ActionCreated:
		return passStyle.Render(string(a))
	case syncer.ActionLinked:
		return accentStyle.Render(string(a))
	case syncer.ActionFailed:
		return failStyle.Render(string(a))
	default:
		return mutedStyle.Render(string(a))
	}
}

// RenderProvisioningStatus styles a provisioning status word.
func RenderProvisioningStatus(s model.ProvisioningStatus) string {
	switch s {
	case model.ProvisioningSucceeded:
		return passStyle.Render(string(s))
	case model.ProvisioningFailed:
		return failStyle.Render(string(s))
	case model.ProvisioningRunning:
		return accentStyle.Render(string(s))
	default:
		return mutedStyle.Render(string(s))
	}
}
