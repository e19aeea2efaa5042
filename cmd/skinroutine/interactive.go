package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/dshills/skinroutine/internal/profile"
	"github.com/dshills/skinroutine/internal/quiz"
)

var errQuizAborted = errors.New("input ended before the quiz was complete")

func printQuestions(w io.Writer, format string) error {
	qs := quiz.Questions()
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(qs)
	case "text":
		for _, q := range qs {
			fmt.Fprintf(w, "%d. %s [%s]\n", q.ID, q.Prompt, q.Type)
			if len(q.Options) > 0 {
				fmt.Fprintf(w, "   Options: %s\n", strings.Join(q.Options, ", "))
			}
		}
		return nil
	default:
		return codeError(exitInput, "invalid flags: --format must be text or json, got %q", format)
	}
}

// runInteractive asks every question on out and reads answers from in until
// the quiz is complete. Typing "back" returns to the previous question.
func runInteractive(e *quiz.Engine, in io.Reader, out io.Writer) (*profile.Profile, error) {
	sc := bufio.NewScanner(in)
	for !e.Complete() {
		q := e.Current()
		fmt.Fprintf(out, "\n[%d/%d] %s\n", e.Index()+1, e.Len(), q.Prompt)
		for i, opt := range q.Options {
			fmt.Fprintf(out, "  %d) %s\n", i+1, opt)
		}
		fmt.Fprintf(out, "%s> ", hint(q))

		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, err
			}
			return nil, errQuizAborted
		}
		line := strings.TrimSpace(sc.Text())
		if strings.EqualFold(line, "back") {
			e.Back()
			continue
		}

		value, ok, err := parseAnswer(q, line)
		if err != nil {
			fmt.Fprintf(out, "  ! %s\n", err)
			continue
		}
		if ok {
			if err := e.RecordAnswer(q.ID, value); err != nil {
				fmt.Fprintf(out, "  ! %s\n", err)
				continue
			}
		}
		if err := e.Next(); err != nil {
			fmt.Fprintln(out, "  ! Please pick one of the options.")
		}
	}
	fmt.Fprintln(out, "\nQuiz complete.")
	return e.Finish()
}

func hint(q quiz.Question) string {
	switch q.Type {
	case quiz.SingleSelect:
		return "(number or name) "
	case quiz.MultiSelect:
		return "(comma separated, blank for none) "
	case quiz.Toggle:
		return "(y/N) "
	}
	if q.Placeholder != "" {
		return "(" + q.Placeholder + ") "
	}
	return ""
}

// parseAnswer converts a typed line into the value RecordAnswer expects. ok
// is false when the line leaves the current answer unchanged.
func parseAnswer(q quiz.Question, line string) (any, bool, error) {
	switch q.Type {
	case quiz.SingleSelect:
		if line == "" {
			return nil, false, nil
		}
		v, err := matchOption(q.Options, line)
		return v, err == nil, err
	case quiz.MultiSelect:
		vs := []string{}
		for _, part := range strings.Split(line, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			v, err := matchOption(q.Options, part)
			if err != nil {
				return nil, false, err
			}
			vs = append(vs, v)
		}
		return vs, true, nil
	case quiz.Toggle:
		switch strings.ToLower(line) {
		case "y", "yes":
			return true, true, nil
		case "", "n", "no":
			return false, true, nil
		}
		return nil, false, fmt.Errorf("answer y or n")
	default:
		return line, true, nil
	}
}

// matchOption accepts a 1-based option number or an option name in any case.
func matchOption(options []string, in string) (string, error) {
	if n, err := strconv.Atoi(in); err == nil {
		if n < 1 || n > len(options) {
			return "", fmt.Errorf("pick a number between 1 and %d", len(options))
		}
		return options[n-1], nil
	}
	if i := slices.IndexFunc(options, func(o string) bool { return strings.EqualFold(o, in) }); i >= 0 {
		return options[i], nil
	}
	return "", fmt.Errorf("%q is not one of the options", in)
}
