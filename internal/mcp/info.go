package mcp

import (
	"fmt"
	"sort"

	"github.com/a3tai/proposal-builder/internal/descriptions"
)

// formatServerInfo renders the proposal_server_info response
func (s *Server) formatServerInfo() string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	text += fmt.Sprintf("📁 Served Directory: %s\n", s.guard.Root())
	text += fmt.Sprintf("📏 Max File Size: %d MB\n\n", s.config.Ingest.MaxFileSize/(1024*1024))

	if len(s.config.Templates) > 0 {
		choices := make([]string, 0, len(s.config.Templates))
		for k := range s.config.Templates {
			choices = append(choices, k)
		}
		sort.Strings(choices)

		text += fmt.Sprintf("📄 Templates (%s):\n", s.config.TemplatesDir)
		for _, k := range choices {
			text += fmt.Sprintf("   %s. %s\n", k, s.config.Templates[k])
		}
		text += "\n"
	}

	text += "🛠️  Available Tools:\n"
	for _, tool := range descriptions.Catalog {
		text += fmt.Sprintf("\n• %s\n", tool.Name)
		text += fmt.Sprintf("  Description: %s\n", tool.Summary)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	text += "\n" + descriptions.UsageGuidance
	return text
}
