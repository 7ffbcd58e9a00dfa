package mcptransport

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/validation"
)

type toolMeta struct {
	title       string
	description string
	readOnly    bool
	destructive bool
	idempotent  bool
	// openWorld is set for tools that reach the changedetection.io API.
	openWorld bool
}

var toolMetadata = map[string]toolMeta{
	validation.ActionListWatches: {
		title:       "List Watches",
		description: "List all website watches configured in changedetection.io",
		readOnly:    true,
		idempotent:  true,
		openWorld:   true,
	},
	validation.ActionGetWatch: {
		title:       "Get Watch",
		description: "Get details of a specific watch, including its last check and change state",
		readOnly:    true,
		idempotent:  true,
		openWorld:   true,
	},
	validation.ActionCreateWatch: {
		title:       "Create Watch",
		description: "Create a new watch that monitors a URL for changes",
		openWorld:   true,
	},
	validation.ActionDeleteWatch: {
		title:       "Delete Watch",
		description: "Delete a watch and its history",
		destructive: true,
		idempotent:  true,
		openWorld:   true,
	},
	validation.ActionTriggerCheck: {
		title:       "Trigger Check",
		description: "Queue an immediate recheck of a watch",
		openWorld:   true,
	},
	validation.ActionGetHistory: {
		title:       "Get History",
		description: "List the recorded snapshots of a watch by timestamp",
		readOnly:    true,
		idempotent:  true,
		openWorld:   true,
	},
	validation.ActionSystemInfo: {
		title:       "System Info",
		description: "Get changedetection.io system information such as version and queue size",
		readOnly:    true,
		idempotent:  true,
		openWorld:   true,
	},
	validation.ActionGetMetrics: {
		title:       "Get Metrics",
		description: "Get server request metrics and rate limiter statistics",
		readOnly:    true,
	},
	validation.ActionHealthCheck: {
		title:       "Health Check",
		description: "Check configuration, changedetection.io reachability and host resources",
		readOnly:    true,
	},
}

// buildTool derives the MCP tool schema from the validator's rules, so the
// advertised parameters always match what is enforced.
func buildTool(spec validation.ActionSpec) mcp.Tool {
	meta, ok := toolMetadata[spec.Name]
	if !ok {
		meta = toolMeta{title: spec.Name, description: spec.Name}
	}

	opts := []mcp.ToolOption{
		mcp.WithDescription(meta.description),
		mcp.WithTitleAnnotation(meta.title),
		mcp.WithReadOnlyHintAnnotation(meta.readOnly),
		mcp.WithDestructiveHintAnnotation(meta.destructive),
		mcp.WithIdempotentHintAnnotation(meta.idempotent),
		mcp.WithOpenWorldHintAnnotation(meta.openWorld),
	}
	for _, rule := range spec.Rules {
		opts = append(opts, mcp.WithString(rule.Name, propertyOptions(rule)...))
	}
	return mcp.NewTool(spec.Name, opts...)
}

func propertyOptions(rule validation.Rule) []mcp.PropertyOption {
	desc := rule.Description
	if len(rule.Aliases) > 0 {
		desc += " (also accepted as " + strings.Join(rule.Aliases, ", ") + ")"
	}
	props := []mcp.PropertyOption{mcp.Description(desc)}
	if rule.Required {
		props = append(props, mcp.Required())
	}
	if rule.MaxLength > 0 {
		props = append(props, mcp.MaxLength(rule.MaxLength))
	}
	switch rule.Type {
	case validation.TypeURL:
		// JSON Schema patterns have no inline flags, so the scheme is matched
		// case-insensitively by hand.
		props = append(props, mcp.Pattern(`^[Hh][Tt][Tt][Pp][Ss]?://`))
	case validation.TypeUUID:
		props = append(props, mcp.Pattern(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`))
	}
	return props
}
