package dispatcher

import (
	"net/http"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/validation"
)

// route maps a proxied action onto the upstream API. Paths are relative to
// the versioned API root.
type route struct {
	method string
	path   func(p validation.Params) string
	body   func(p validation.Params) any
}

func watchPath(suffix string) func(validation.Params) string {
	return func(p validation.Params) string {
		return "/watch/" + p.Get(validation.ParamWatchID) + suffix
	}
}

func staticPath(path string) func(validation.Params) string {
	return func(validation.Params) string {
		return path
	}
}

var routes = map[string]route{
	validation.ActionListWatches: {method: http.MethodGet, path: staticPath("/watch")},
	validation.ActionCreateWatch: {method: http.MethodPost, path: staticPath("/watch"), body: createWatchBody},
	validation.ActionGetWatch:    {method: http.MethodGet, path: watchPath("")},
	validation.ActionDeleteWatch: {method: http.MethodDelete, path: watchPath("")},
	// trigger is a GET upstream; it queues a recheck.
	validation.ActionTriggerCheck: {method: http.MethodGet, path: watchPath("/trigger")},
	validation.ActionGetHistory:   {method: http.MethodGet, path: watchPath("/history")},
	validation.ActionSystemInfo:   {method: http.MethodGet, path: staticPath("/systeminfo")},
}

func createWatchBody(p validation.Params) any {
	body := map[string]string{validation.ParamURL: p.Get(validation.ParamURL)}
	if tag := p.Get(validation.ParamTag); tag != "" {
		body[validation.ParamTag] = tag
	}
	return body
}

// isLocal reports actions answered without the upstream or the limiter.
func isLocal(action string) bool {
	return action == validation.ActionGetMetrics || action == validation.ActionHealthCheck
}
