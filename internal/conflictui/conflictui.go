package conflictui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/text"

	"tasksync/internal/config"
	"tasksync/internal/normalize"
)

// displayLimit caps rendered field values. Longer values and multiline
// values show their head plus an ellipsis.
const displayLimit = 70

// ErrCancelled is returned when the operator interrupts the session. The
// caller records it in the op log and leaves the mapping untouched.
var ErrCancelled = errors.New("conflict resolution cancelled")

// Source says where a resolved value came from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
	SourceManual Source = "manual"
)

// FieldConflict is one differing field with its three-way context.
type FieldConflict struct {
	Field  string
	Local  string
	Remote string
	Base   string
}

// Resolution is the operator's decision for one field.
type Resolution struct {
	Field  string
	Source Source
	Value  string
}

// Outcome is the result of a full interactive session.
type Outcome struct {
	Resolutions []Resolution
	// Confirmed is false when the operator declined the preview; nothing
	// may be applied in that case.
	Confirmed bool
	// PersistStrategy carries a strategy the operator agreed to make the
	// default, or empty.
	PersistStrategy config.ConflictStrategy
}

// Detect decomposes a conflicting pair into per-field conflicts. Only
// fields where the two sides currently disagree are reported; the base
// value rides along for display.
func Detect(local, remote, base normalize.Payload) []FieldConflict {
	var conflicts []FieldConflict
	add := func(field, l, r, b string) {
		if l != r {
			conflicts = append(conflicts, FieldConflict{Field: field, Local: l, Remote: r, Base: b})
		}
	}
	add("title", local.Title, remote.Title, base.Title)
	add("description", local.Description, remote.Description, base.Description)
	add("status", local.Status, remote.Status, base.Status)
	add("assignee", local.Assignee, remote.Assignee, base.Assignee)
	add("priority", local.Priority, remote.Priority, base.Priority)
	add("labels", strings.Join(local.Labels, ", "), strings.Join(remote.Labels, ", "), strings.Join(base.Labels, ", "))
	return conflicts
}

// Resolver drives the interactive field-by-field session.
type Resolver struct {
	rl *readline.Instance
	// majorityRatio is the choices-for versus choices-against ratio that
	// triggers the persist-as-default offer.
	majorityRatio int
}

// NewResolver opens the terminal prompt.
func NewResolver() (*Resolver, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "resolve> ",
		InterruptPrompt: "^C",
	})
	if err != nil {
		return nil, fmt.Errorf("creating prompt: %w", err)
	}
	return &Resolver{rl: rl, majorityRatio: 2}, nil
}

// Close releases the terminal.
func (r *Resolver) Close() error {
	return r.rl.Close()
}

// Resolve walks the operator through every conflicting field, previews the
// combined result, and asks for confirmation. No mutation happens here; the
// caller applies the outcome only when Confirmed is true.
func (r *Resolver) Resolve(localID, remoteKey string, conflicts []FieldConflict) (Outcome, error) {
	fmt.Printf("\n%s task %s and issue %s have conflicting changes\n",
		text.FgRed.Sprint("conflict:"), text.Bold.Sprint(localID), text.Bold.Sprint(remoteKey))

	var outcome Outcome
	localPicks, remotePicks := 0, 0
	for _, c := range conflicts {
		res, err := r.resolveField(c)
		if err != nil {
			return Outcome{}, err
		}
		switch res.Source {
		case SourceLocal:
			localPicks++
		case SourceRemote:
			remotePicks++
		}
		outcome.Resolutions = append(outcome.Resolutions, res)
	}

	r.preview(outcome.Resolutions)
	confirmed, err := r.confirm("Apply these values?")
	if err != nil {
		return Outcome{}, err
	}
	outcome.Confirmed = confirmed
	if !confirmed {
		return outcome, nil
	}

	if strategy, ok := r.majorityStrategy(localPicks, remotePicks); ok {
		persist, err := r.confirm(fmt.Sprintf("Make %q the default conflict strategy?", strategy))
		if err != nil {
			return Outcome{}, err
		}
		if persist {
			outcome.PersistStrategy = strategy
		}
	}
	return outcome, nil
}

func (r *Resolver) resolveField(c FieldConflict) (Resolution, error) {
	for {
		fmt.Printf("\n%s\n", text.Bold.Sprint(c.Field))
		if c.Base != "" {
			fmt.Printf("  %s %s\n", text.Faint.Sprint("base:  "), display(c.Base))
		}
		fmt.Printf("  %s %s\n", text.FgGreen.Sprint("local: "), display(c.Local))
		fmt.Printf("  %s %s\n", text.FgBlue.Sprint("remote:"), display(c.Remote))
		fmt.Println(text.Faint.Sprint("  l = local, r = remote, m = enter manually"))

		line, err := r.rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return Resolution{}, ErrCancelled
		}
		if err != nil {
			return Resolution{}, fmt.Errorf("reading input: %w", err)
		}

		switch strings.TrimSpace(strings.ToLower(line)) {
		case "l":
			return Resolution{Field: c.Field, Source: SourceLocal, Value: c.Local}, nil
		case "r":
			return Resolution{Field: c.Field, Source: SourceRemote, Value: c.Remote}, nil
		case "m":
			value, err := r.readManual()
			if err != nil {
				return Resolution{}, err
			}
			return Resolution{Field: c.Field, Source: SourceManual, Value: value}, nil
		default:
			fmt.Println(text.FgRed.Sprint("invalid choice"))
		}
	}
}

// readManual reads a single-line replacement value. Multiline editing is
// not supported.
func (r *Resolver) readManual() (string, error) {
	r.rl.SetPrompt("value> ")
	defer r.rl.SetPrompt("resolve> ")
	line, err := r.rl.Readline()
	if err == readline.ErrInterrupt || err == io.EOF {
		return "", ErrCancelled
	}
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (r *Resolver) preview(resolutions []Resolution) {
	fmt.Printf("\n%s\n", text.Bold.Sprint("resolved values"))
	for _, res := range resolutions {
		fmt.Printf("  %-12s %s %s\n", res.Field, display(res.Value), text.Faint.Sprintf("(%s)", res.Source))
	}
}

func (r *Resolver) confirm(question string) (bool, error) {
	r.rl.SetPrompt(question + " [y/N] ")
	defer r.rl.SetPrompt("resolve> ")
	line, err := r.rl.Readline()
	if err == readline.ErrInterrupt || err == io.EOF {
		return false, ErrCancelled
	}
	if err != nil {
		return false, fmt.Errorf("reading input: %w", err)
	}
	answer := strings.TrimSpace(strings.ToLower(line))
	return answer == "y" || answer == "yes", nil
}

// majorityStrategy maps a lopsided pick distribution onto a strategy worth
// persisting.
func (r *Resolver) majorityStrategy(localPicks, remotePicks int) (config.ConflictStrategy, bool) {
	switch {
	case remotePicks == 0 && localPicks == 0:
		return "", false
	case localPicks >= remotePicks*r.majorityRatio && localPicks > remotePicks:
		return config.StrategyPreferLocal, true
	case remotePicks >= localPicks*r.majorityRatio && remotePicks > localPicks:
		return config.StrategyPreferRemote, true
	}
	return "", false
}

// display renders a value for the terminal: first line only, capped at the
// display limit.
func display(s string) string {
	if s == "" {
		return text.Faint.Sprint("<empty>")
	}
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx] + "…"
	}
	if len(s) > displayLimit {
		s = s[:displayLimit] + "…"
	}
	return s
}
