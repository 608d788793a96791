package remote

import (
	"context"
	"fmt"
	"strings"
)

// Tool names exposed by the Jira MCP server.
const (
	toolSearch         = "jira_search"
	toolGetIssue       = "jira_get_issue"
	toolUpdateIssue    = "jira_update_issue"
	toolCreateIssue    = "jira_create_issue"
	toolGetTransitions = "jira_get_transitions"
	toolTransition     = "jira_transition_issue"
	toolAddComment     = "jira_add_comment"
	toolSearchUser     = "jira_search_user"
	toolGetProjects    = "jira_get_all_projects"
)

// SearchOptions page a JQL search.
type SearchOptions struct {
	MaxResults int
	StartAt    int
}

// SearchIssues runs a JQL query.
func (a *Adapter) SearchIssues(ctx context.Context, jql string, opts SearchOptions) (SearchResult, error) {
	args := map[string]interface{}{"jql": jql}
	if opts.MaxResults > 0 {
		args["limit"] = opts.MaxResults
	}
	if opts.StartAt > 0 {
		args["startAt"] = opts.StartAt
	}
	text, err := a.CallTool(ctx, toolSearch, args)
	if err != nil {
		return SearchResult{}, err
	}
	return decodeSearchResult(text)
}

// GetIssue fetches one issue by key.
func (a *Adapter) GetIssue(ctx context.Context, key string) (Issue, error) {
	text, err := a.CallTool(ctx, toolGetIssue, map[string]interface{}{"issue_key": key})
	if err != nil {
		return Issue{}, err
	}
	return decodeIssue(text)
}

// UpdateIssue applies field updates to an issue. Fields use the tracker's
// own vocabulary (summary, description, labels, priority, assignee).
func (a *Adapter) UpdateIssue(ctx context.Context, key string, fields map[string]interface{}) error {
	_, err := a.CallTool(ctx, toolUpdateIssue, map[string]interface{}{
		"issue_key": key,
		"fields":    fields,
	})
	return err
}

// CreateIssue creates an issue and returns it. When the response is
// well-formed but missing expected nested fields (a ResponseShape error),
// the returned issue falls back on the request's input values instead of
// failing the create.
func (a *Adapter) CreateIssue(ctx context.Context, project, issueType, summary string, additionalFields map[string]interface{}) (Issue, error) {
	args := map[string]interface{}{
		"project_key": project,
		"issue_type":  issueType,
		"summary":     summary,
	}
	if len(additionalFields) > 0 {
		args["additional_fields"] = additionalFields
	}
	text, err := a.CallTool(ctx, toolCreateIssue, args)
	if err != nil {
		return Issue{}, err
	}
	issue, err := decodeIssue(text)
	if err != nil {
		// A response without a key is unusable; anything less (e.g. a
		// missing fields.summary) is repaired from the input below.
		return Issue{}, err
	}
	if issue.Summary == "" {
		issue.Summary = summary
	}
	return issue, nil
}

// GetTransitions lists the workflow transitions available on an issue.
func (a *Adapter) GetTransitions(ctx context.Context, key string) ([]Transition, error) {
	text, err := a.CallTool(ctx, toolGetTransitions, map[string]interface{}{"issue_key": key})
	if err != nil {
		return nil, err
	}
	return decodeTransitions(text)
}

// TransitionIssue invokes a workflow transition, optionally with a comment.
func (a *Adapter) TransitionIssue(ctx context.Context, key, transitionID, comment string) error {
	args := map[string]interface{}{
		"issue_key":     key,
		"transition_id": transitionID,
	}
	if comment != "" {
		args["comment"] = comment
	}
	_, err := a.CallTool(ctx, toolTransition, args)
	return err
}

// AddComment appends a comment to an issue.
func (a *Adapter) AddComment(ctx context.Context, key, body string) error {
	_, err := a.CallTool(ctx, toolAddComment, map[string]interface{}{
		"issue_key": key,
		"comment":   body,
	})
	return err
}

// SearchUsers finds tracker users matching a query string.
func (a *Adapter) SearchUsers(ctx context.Context, query string) ([]User, error) {
	text, err := a.CallTool(ctx, toolSearchUser, map[string]interface{}{"query": query})
	if err != nil {
		return nil, err
	}
	return decodeUsers(text)
}

// GetAllProjects lists the projects visible to the credentials.
func (a *Adapter) GetAllProjects(ctx context.Context) ([]Project, error) {
	text, err := a.CallTool(ctx, toolGetProjects, nil)
	if err != nil {
		return nil, err
	}
	return decodeProjects(text)
}

// BrowseURL builds the human-facing issue URL for frontmatter.
func (a *Adapter) BrowseURL(key string) string {
	base := strings.TrimRight(a.opts.Credentials.BaseURL, "/")
	return fmt.Sprintf("%s/browse/%s", base, key)
}
