package remote

import (
	"encoding/json"
	"fmt"
	"time"

	"tasksync/internal/api"
)

// issueDoc mirrors the Jira issue JSON returned by the MCP server tools.
type issueDoc struct {
	Key    string `json:"key"`
	ID     string `json:"id"`
	Fields struct {
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Status      *struct {
			Name string `json:"name"`
		} `json:"status"`
		Assignee *struct {
			DisplayName  string `json:"displayName"`
			EmailAddress string `json:"emailAddress"`
			AccountID    string `json:"accountId"`
		} `json:"assignee"`
		Labels   []string `json:"labels"`
		Priority *struct {
			Name string `json:"name"`
		} `json:"priority"`
		IssueType *struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Created string `json:"created"`
		Updated string `json:"updated"`
	} `json:"fields"`
}

// toIssue converts an issueDoc, validating the fields the engine relies on.
// A missing key is a shape error; a missing summary is tolerated by the
// caller that knows the intended value (create falls back to its input).
func (d issueDoc) toIssue() (api.Issue, error) {
	if d.Key == "" {
		return api.Issue{}, &Error{Kind: KindResponseShape, Message: "issue response missing key"}
	}
	issue := api.Issue{
		Key:         d.Key,
		ID:          d.ID,
		Summary:     d.Fields.Summary,
		Description: d.Fields.Description,
		Labels:      d.Fields.Labels,
	}
	if d.Fields.Status != nil {
		issue.Status = d.Fields.Status.Name
	}
	if d.Fields.Assignee != nil {
		switch {
		case d.Fields.Assignee.EmailAddress != "":
			issue.Assignee = d.Fields.Assignee.EmailAddress
		case d.Fields.Assignee.DisplayName != "":
			issue.Assignee = d.Fields.Assignee.DisplayName
		default:
			issue.Assignee = d.Fields.Assignee.AccountID
		}
	}
	if d.Fields.Priority != nil {
		issue.Priority = d.Fields.Priority.Name
	}
	if d.Fields.IssueType != nil {
		issue.IssueType = d.Fields.IssueType.Name
	}
	issue.Created = parseJiraTime(d.Fields.Created)
	issue.Updated = parseJiraTime(d.Fields.Updated)
	return issue, nil
}

// decodeIssue parses a single-issue tool response.
func decodeIssue(text string) (api.Issue, error) {
	var doc issueDoc
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return api.Issue{}, &Error{Kind: KindProtocol, Message: fmt.Sprintf("cannot decode issue response: %v", err)}
	}
	return doc.toIssue()
}

// SearchResult is one page of a JQL search.
type SearchResult struct {
	Issues     []api.Issue
	Total      int
	StartAt    int
	MaxResults int
}

func decodeSearchResult(text string) (SearchResult, error) {
	var doc struct {
		Issues     []issueDoc `json:"issues"`
		Total      int        `json:"total"`
		StartAt    int        `json:"startAt"`
		MaxResults int        `json:"maxResults"`
	}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return SearchResult{}, &Error{Kind: KindProtocol, Message: fmt.Sprintf("cannot decode search response: %v", err)}
	}
	result := SearchResult{Total: doc.Total, StartAt: doc.StartAt, MaxResults: doc.MaxResults}
	for _, d := range doc.Issues {
		issue, err := d.toIssue()
		if err != nil {
			return SearchResult{}, err
		}
		result.Issues = append(result.Issues, issue)
	}
	return result, nil
}

func decodeTransitions(text string) ([]api.Transition, error) {
	var doc struct {
		Transitions []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			To   *struct {
				Name string `json:"name"`
			} `json:"to"`
		} `json:"transitions"`
	}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, &Error{Kind: KindProtocol, Message: fmt.Sprintf("cannot decode transitions response: %v", err)}
	}
	var transitions []api.Transition
	for _, tr := range doc.Transitions {
		t := api.Transition{ID: tr.ID, Name: tr.Name}
		if tr.To != nil {
			t.ToName = tr.To.Name
		}
		transitions = append(transitions, t)
	}
	return transitions, nil
}

func decodeUsers(text string) ([]api.User, error) {
	var docs []struct {
		AccountID    string `json:"accountId"`
		DisplayName  string `json:"displayName"`
		EmailAddress string `json:"emailAddress"`
	}
	if err := json.Unmarshal([]byte(text), &docs); err != nil {
		return nil, &Error{Kind: KindProtocol, Message: fmt.Sprintf("cannot decode users response: %v", err)}
	}
	users := make([]api.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, api.User{AccountID: d.AccountID, DisplayName: d.DisplayName, Email: d.EmailAddress})
	}
	return users, nil
}

func decodeProjects(text string) ([]api.Project, error) {
	var docs []struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(text), &docs); err != nil {
		return nil, &Error{Kind: KindProtocol, Message: fmt.Sprintf("cannot decode projects response: %v", err)}
	}
	projects := make([]api.Project, 0, len(docs))
	for _, d := range docs {
		projects = append(projects, api.Project{Key: d.Key, Name: d.Name})
	}
	return projects, nil
}

// parseJiraTime accepts the timestamp shapes Jira emits. Unparseable
// values come back zero; timestamps are informational only.
func parseJiraTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
