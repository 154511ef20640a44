package mcp

// buildToolsList returns the JSON-schema tool registry advertised by
// tools/list, one entry per dispatchable name in toolHandlers.
func (s *Server) buildToolsList() []MCPTool {
	return []MCPTool{
		{
			Name:        "ingest",
			Description: "Store a new knowledge node verbatim, without dedup/similarity checks.",
			InputSchema: schema(
				required("content"),
				prop("content", "string", "The content to store."),
				prop("source_type", "string", "One of the recognized source types (defaults to note)."),
				arrayProp("tags", "string", "Free-form tags."),
			),
		},
		{
			Name:        "smart_ingest",
			Description: "Ingest content through the create/reinforce/update/supersede decision pipeline.",
			InputSchema: schema(
				required("content"),
				prop("content", "string", "The content to ingest."),
				prop("source_type", "string", "One of the recognized source types (defaults to note)."),
				boolProp("force_create", "Skip similarity matching and always create a new node."),
			),
		},
		{
			Name:        "recall",
			Description: "Fetch a node by ID and record an access (bumps access_count and last_accessed_at).",
			InputSchema: schema(required("id"), prop("id", "string", "Node ID.")),
		},
		{
			Name:        "search",
			Description: "Hybrid keyword+vector search with optional filters and context boosting.",
			InputSchema: schema(
				required("query"),
				prop("query", "string", "Search text."),
				intProp("limit", "Max results (default 10)."),
				intProp("offset", "Pagination offset."),
				prop("source_type", "string", "Filter by source type."),
				prop("source_platform", "string", "Filter by source platform."),
				prop("tag", "string", "Filter by tag."),
				numberProp("min_retention", "Minimum retention strength."),
				numberProp("max_retention", "Maximum retention strength."),
				numberProp("keyword_weight", "Keyword channel weight (default 0.5)."),
				numberProp("vector_weight", "Vector channel weight (default 0.5)."),
				prop("project_context", "string", "Current project name, for context boosting."),
				arrayProp("query_topics", "string", "Topics associated with this query, for context boosting."),
			),
		},
		{
			Name:        "review",
			Description: "Submit an FSRS review grade (1=again 2=hard 3=good 4=easy) and reschedule.",
			InputSchema: schema(
				required("id", "grade"),
				prop("id", "string", "Node ID."),
				intProp("grade", "1=again 2=hard 3=good 4=easy."),
			),
		},
		{
			Name:        "stats",
			Description: "Report database size and health warnings.",
			InputSchema: schema(),
		},
		{
			Name:        "consolidate",
			Description: "Run a consolidation pass: decay, promotion, pruning.",
			InputSchema: schema(
				boolProp("apply_decay", "Apply temporal decay before scoring."),
				numberProp("prune_threshold", "Retention floor below which nodes are pruned."),
				numberProp("promote_threshold", "Retention ceiling above which nodes are promoted."),
				intProp("max_process", "Cap on nodes processed this pass."),
			),
		},
		{
			Name:        "context",
			Description: "Capture the current working context and boost a set of result scores against it.",
			InputSchema: schema(
				prop("project_type", "string", ""),
				arrayProp("frameworks", "string", ""),
				prop("project_name", "string", ""),
				prop("git_branch", "string", ""),
				prop("active_file", "string", ""),
				prop("active_module", "string", ""),
				arrayProp("recent_files", "string", ""),
				arrayProp("result_ids", "string", "IDs of search results to boost."),
				arrayProp("result_scores", "number", "Scores paired with result_ids."),
			),
		},
		{
			Name:        "get_knowledge",
			Description: "Fetch a node by ID without recording an access.",
			InputSchema: schema(required("id"), prop("id", "string", "Node ID.")),
		},
		{
			Name:        "delete_knowledge",
			Description: "Permanently delete a node.",
			InputSchema: schema(required("id"), prop("id", "string", "Node ID.")),
		},
		{
			Name:        "get_memory_state",
			Description: "Report the derived lifecycle state (active/dormant/silent/unavailable) of a node.",
			InputSchema: schema(required("id"), prop("id", "string", "Node ID.")),
		},
		{
			Name:        "list_by_state",
			Description: "List node IDs in a given lifecycle state.",
			InputSchema: schema(
				required("state"),
				prop("state", "string", "active, dormant, silent, or unavailable."),
				intProp("limit", "Max IDs to return."),
			),
		},
		{
			Name:        "state_stats",
			Description: "Report node counts per lifecycle state.",
			InputSchema: schema(),
		},
		{
			Name:        "trigger_importance",
			Description: "Apply a manual importance boost (breakthrough, deadline_met, user_feedback, ...).",
			InputSchema: schema(
				required("id", "event_type"),
				prop("id", "string", "Node ID."),
				prop("event_type", "string", "breakthrough, deadline_met, user_feedback, repeated_access, explicit_mark, emotional, novel_connection."),
			),
		},
		{
			Name:        "find_tagged",
			Description: "List nodes that have been synaptically tagged (stability_factor above threshold).",
			InputSchema: schema(
				numberProp("min_strength", "Minimum retention strength (default 0.5)."),
				intProp("limit", "Max results (default 20)."),
			),
		},
		{
			Name:        "tag_stats",
			Description: "Report the count and strength-decile distribution of tagged nodes.",
			InputSchema: schema(),
		},
		{
			Name:        "promote_memory",
			Description: "Boost a node's retention and stability (user confirmed its value).",
			InputSchema: schema(
				required("id"),
				prop("id", "string", "Node ID."),
				prop("reason", "string", "Why this node is being promoted."),
			),
		},
		{
			Name:        "demote_memory",
			Description: "Lower a node's retention and stability without deleting it.",
			InputSchema: schema(
				required("id"),
				prop("id", "string", "Node ID."),
				prop("reason", "string", "Why this node is being demoted."),
			),
		},
		{
			Name:        "request_feedback",
			Description: "Get a truncated preview of a node plus promote/demote/custom options.",
			InputSchema: schema(required("id"), prop("id", "string", "Node ID.")),
		},
		{
			Name:        "intention",
			Description: "Manage prospective-memory intentions: create, fire, snooze, fulfill, cancel, escalate, list.",
			InputSchema: schema(
				required("action"),
				prop("action", "string", "create, fire, snooze, fulfill, cancel, escalate, or list."),
				prop("text", "string", "Natural-language intention text (for create)."),
				prop("id", "string", "Intention ID (for fire/snooze/fulfill/cancel/escalate)."),
				intProp("minutes", "Snooze duration in minutes."),
				prop("status", "string", "Status filter (for list)."),
				prop("project", "string", "Current project (for fire)."),
				arrayProp("files", "string", "Files in scope (for fire)."),
				arrayProp("topics", "string", "Topics in scope (for fire)."),
				arrayProp("events", "string", "Events observed (for fire)."),
				prop("mode", "string", "Session mode (for fire)."),
			),
		},
		{
			Name:        "related_memories",
			Description: "Spread activation outward from a node over its graph edges and return the memories it reaches.",
			InputSchema: schema(
				required("id"),
				prop("id", "string", "Node ID to spread activation from."),
				intProp("max_hops", "Maximum traversal depth (default 3)."),
			),
		},
		{
			Name:        "codebase",
			Description: "Record a query/access and return predicted next memories plus a novelty score.",
			InputSchema: schema(
				prop("project_type", "string", ""),
				prop("project_name", "string", ""),
				prop("git_branch", "string", ""),
				prop("active_file", "string", ""),
				arrayProp("recent_files", "string", ""),
				prop("query", "string", ""),
				arrayProp("tags", "string", ""),
				arrayProp("accessed_ids", "string", ""),
				numberProp("satisfaction", "Query satisfaction, 0-1."),
			),
		},
	}
}

// --- JSON-schema builder helpers -----------------------------------------
//
// Small helpers over map[string]interface{} keep buildToolsList readable;
// MCPTool.InputSchema is an opaque map passed straight through to clients.

func schema(opts ...func(map[string]interface{})) map[string]interface{} {
	s := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func required(names ...string) func(map[string]interface{}) {
	return func(s map[string]interface{}) {
		s["required"] = names
	}
}

func prop(name, typ, description string) func(map[string]interface{}) {
	return func(s map[string]interface{}) {
		s["properties"].(map[string]interface{})[name] = map[string]interface{}{
			"type":        typ,
			"description": description,
		}
	}
}

func intProp(name, description string) func(map[string]interface{}) {
	return prop(name, "integer", description)
}

func numberProp(name, description string) func(map[string]interface{}) {
	return prop(name, "number", description)
}

func boolProp(name, description string) func(map[string]interface{}) {
	return prop(name, "boolean", description)
}

func arrayProp(name, itemType, description string) func(map[string]interface{}) {
	return func(s map[string]interface{}) {
		s["properties"].(map[string]interface{})[name] = map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": itemType},
			"description": description,
		}
	}
}
