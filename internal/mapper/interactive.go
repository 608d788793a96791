package mapper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/text"

	"tasksync/internal/api"
	"tasksync/internal/remote"
)

// maxShownCandidates bounds the candidate list rendered per task.
const maxShownCandidates = 8

// ErrAborted is returned when the operator quits the interactive session.
var ErrAborted = errors.New("mapping session aborted")

// MapInteractive walks every unmapped local task and lets the operator pick
// a remote candidate, search with custom JQL, skip, or quit.
func (m *Mapper) MapInteractive(ctx context.Context) (AutoResult, error) {
	tasks, err := m.unmappedTasks(ctx)
	if err != nil {
		return AutoResult{}, err
	}
	if len(tasks) == 0 {
		fmt.Println("All local tasks are mapped.")
		return AutoResult{}, nil
	}
	pool, err := m.candidatePool(ctx)
	if err != nil {
		return AutoResult{}, err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "map> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return AutoResult{}, fmt.Errorf("creating prompt: %w", err)
	}
	defer rl.Close()

	var result AutoResult
	for _, task := range tasks {
		issue, err := m.pickCandidate(ctx, rl, task, pool)
		if err != nil {
			if errors.Is(err, ErrAborted) {
				return result, ErrAborted
			}
			return result, err
		}
		if issue == nil {
			result.Skipped = append(result.Skipped, task.ID)
			continue
		}
		if err := m.Bind(ctx, task, *issue, false); err != nil {
			return result, err
		}
		result.Bound = append(result.Bound, Binding{LocalID: task.ID, RemoteKey: issue.Key, Score: TitleScore(task.Title, issue.Summary)})
		pool = removeIssue(pool, issue.Key)
	}
	return result, nil
}

// pickCandidate renders the ranked candidates for one task and reads the
// operator's decision. A nil issue with nil error means skip.
func (m *Mapper) pickCandidate(ctx context.Context, rl *readline.Instance, task api.Task, pool []api.Issue) (*api.Issue, error) {
	candidates := Rank(task, pool)

	for {
		fmt.Printf("\n%s %s\n", text.FgCyan.Sprint(task.ID), text.Bold.Sprint(task.Title))
		shown := candidates
		if len(shown) > maxShownCandidates {
			shown = shown[:maxShownCandidates]
		}
		if len(shown) == 0 {
			fmt.Println(text.Faint.Sprint("  no remote candidates"))
		}
		for i, c := range shown {
			fmt.Printf("  %s %s %s %s\n",
				text.FgYellow.Sprintf("[%d]", i+1),
				c.Issue.Key,
				truncate(c.Issue.Summary, 60),
				text.Faint.Sprintf("(%.2f)", c.Score))
		}
		fmt.Println(text.Faint.Sprint("  number = bind, j = custom JQL, s = skip, q = quit"))

		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return nil, ErrAborted
		}
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}

		switch input := strings.TrimSpace(strings.ToLower(line)); input {
		case "s", "":
			return nil, nil
		case "q":
			return nil, ErrAborted
		case "j":
			extra, err := m.searchMore(ctx, rl)
			if err != nil {
				return nil, err
			}
			if extra != nil {
				candidates = Rank(task, extra)
			}
		default:
			n, err := strconv.Atoi(input)
			if err != nil || n < 1 || n > len(shown) {
				fmt.Println(text.FgRed.Sprint("invalid choice"))
				continue
			}
			issue := shown[n-1].Issue
			return &issue, nil
		}
	}
}

// searchMore prompts for an ad-hoc JQL query and returns the hits. A nil
// slice with nil error means the operator entered nothing.
func (m *Mapper) searchMore(ctx context.Context, rl *readline.Instance) ([]api.Issue, error) {
	rl.SetPrompt("jql> ")
	defer rl.SetPrompt("map> ")

	line, err := rl.Readline()
	if err == readline.ErrInterrupt || err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	jql := strings.TrimSpace(line)
	if jql == "" {
		return nil, nil
	}
	result, err := m.remote.SearchIssues(ctx, jql, remote.SearchOptions{MaxResults: 50})
	if err != nil {
		fmt.Println(text.FgRed.Sprintf("search failed: %v", err))
		return nil, nil
	}
	return result.Issues, nil
}

func truncate(s string, limit int) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx] + "…"
	}
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
