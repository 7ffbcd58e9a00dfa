package validation

// ParamType selects the checks applied to a parameter.
type ParamType int

const (
	TypeURL ParamType = iota
	TypeUUID
	TypeText
)

func (t ParamType) String() string {
	switch t {
	case TypeURL:
		return "url"
	case TypeUUID:
		return "uuid"
	case TypeText:
		return "text"
	default:
		return "unknown"
	}
}

// Rule constrains one parameter of one action.
type Rule struct {
	Name      string
	Type      ParamType
	Required  bool
	MaxLength int
	// Aliases are alternative argument names accepted for Name.
	Aliases []string
	// Description is shown to MCP clients in the tool schema.
	Description string
}

// ActionSpec lists the parameters an action accepts.
type ActionSpec struct {
	Name  string
	Rules []Rule
}

// Action names.
const (
	ActionCreateWatch  = "create_watch"
	ActionGetWatch     = "get_watch"
	ActionListWatches  = "list_watches"
	ActionDeleteWatch  = "delete_watch"
	ActionTriggerCheck = "trigger_check"
	ActionGetHistory   = "get_history"
	ActionSystemInfo   = "system_info"
	ActionGetMetrics   = "get_metrics"
	ActionHealthCheck  = "health_check"
)

// Parameter names.
const (
	ParamURL     = "url"
	ParamTag     = "tag"
	ParamWatchID = "watch_id"
	ParamID      = "id"
)

// defaultActions builds the rule table. Length limits come from the
// validator's configuration.
func defaultActions(maxURLLength, maxTagLength int) []ActionSpec {
	watchID := func() []Rule {
		return []Rule{{
			Name:        ParamWatchID,
			Type:        TypeUUID,
			Required:    true,
			Aliases:     []string{ParamID},
			Description: "UUID of the watch",
		}}
	}

	return []ActionSpec{
		{Name: ActionCreateWatch, Rules: []Rule{
			{Name: ParamURL, Type: TypeURL, Required: true, MaxLength: maxURLLength, Description: "Absolute http(s) URL to monitor"},
			{Name: ParamTag, Type: TypeText, MaxLength: maxTagLength, Description: "Optional tag to group the watch"},
		}},
		{Name: ActionGetWatch, Rules: watchID()},
		{Name: ActionDeleteWatch, Rules: watchID()},
		{Name: ActionTriggerCheck, Rules: watchID()},
		{Name: ActionGetHistory, Rules: watchID()},
		{Name: ActionListWatches},
		{Name: ActionSystemInfo},
		{Name: ActionGetMetrics},
		{Name: ActionHealthCheck},
	}
}
