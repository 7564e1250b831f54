package expr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// builtinFunc receives its arguments already recursively evaluated.
type builtinFunc func(e *Evaluator, args []string) (string, error)

var builtins = map[string]builtinFunc{
	"COUNTER":     counterFunc,
	"FORMAT_DATE": formatDateFunc,
	"UPPER":       upperFunc,
	"LOWER":       lowerFunc,
	"TRIM":        trimFunc,
	"REPLACE":     replaceFunc,
	"SUBSTR":      substrFunc,
	"IF":          ifFunc,
}

func counterFunc(e *Evaluator, args []string) (string, error) {
	if len(args) < 1 || args[0] == "" {
		return "", fmt.Errorf("expr: COUNTER requires a name argument")
	}
	if e.Counters == nil {
		return "", fmt.Errorf("expr: COUNTER(%s) called but no counter store is configured", args[0])
	}

	start := int64(1)
	step := int64(1)
	if len(args) >= 2 && args[1] != "" {
		v, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return "", fmt.Errorf("expr: COUNTER start %q is not an integer", args[1])
		}
		start = v
	}
	if len(args) >= 3 && args[2] != "" {
		v, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return "", fmt.Errorf("expr: COUNTER step %q is not an integer", args[2])
		}
		step = v
	}

	v, err := e.Counters.GetAndIncrement(args[0], start, step)
	if err != nil {
		return "", fmt.Errorf("expr: COUNTER(%s): %w", args[0], err)
	}
	return strconv.FormatInt(v, 10), nil
}

// dateLayoutTranslations maps the pattern tokens accepted by FORMAT_DATE
// onto Go's reference-date layout elements.
var dateLayoutTranslations = []struct {
	token, layout string
}{
	{"YYYY", "2006"},
	{"MM", "01"},
	{"DD", "02"},
	{"HH", "15"},
	{"mm", "04"},
	{"ss", "05"},
}

// parseLayouts lists the formats FORMAT_DATE tries, in order, to parse its
// input value (built-in Date/DateISO/DateTime/DateTimeISO all fall within
// this set, so chaining FORMAT_DATE off another built-in always works).
var parseLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02_15-04-05",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006",
	"2006-01-02T15:04:05",
}

func formatDateFunc(e *Evaluator, args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("expr: FORMAT_DATE requires exactly 2 arguments, got %d", len(args))
	}
	value, pattern := args[0], args[1]

	var parsed time.Time
	var err error
	ok := false
	for _, layout := range parseLayouts {
		parsed, err = time.Parse(layout, value)
		if err == nil {
			ok = true
			break
		}
	}
	if !ok {
		return "", fmt.Errorf("expr: FORMAT_DATE could not parse %q as a date", value)
	}

	layout := pattern
	for _, t := range dateLayoutTranslations {
		layout = strings.ReplaceAll(layout, t.token, t.layout)
	}
	return parsed.Format(layout), nil
}

func upperFunc(e *Evaluator, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expr: UPPER requires exactly 1 argument, got %d", len(args))
	}
	return strings.ToUpper(args[0]), nil
}

func lowerFunc(e *Evaluator, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expr: LOWER requires exactly 1 argument, got %d", len(args))
	}
	return strings.ToLower(args[0]), nil
}

func trimFunc(e *Evaluator, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expr: TRIM requires exactly 1 argument, got %d", len(args))
	}
	return strings.TrimSpace(args[0]), nil
}

func replaceFunc(e *Evaluator, args []string) (string, error) {
	if len(args) != 3 {
		return "", fmt.Errorf("expr: REPLACE requires exactly 3 arguments, got %d", len(args))
	}
	src, from, to := args[0], args[1], args[2]
	return strings.ReplaceAll(src, from, to), nil
}

func substrFunc(e *Evaluator, args []string) (string, error) {
	if len(args) != 3 {
		return "", fmt.Errorf("expr: SUBSTR requires exactly 3 arguments, got %d", len(args))
	}
	src := args[0]
	start, err := strconv.Atoi(args[1])
	if err != nil {
		return "", fmt.Errorf("expr: SUBSTR start %q is not an integer", args[1])
	}
	length, err := strconv.Atoi(args[2])
	if err != nil {
		return "", fmt.Errorf("expr: SUBSTR length %q is not an integer", args[2])
	}

	runes := []rune(src)
	if start < 0 {
		start = 0
	}
	if start > len(runes) {
		start = len(runes)
	}
	end := start + length
	if length < 0 || end > len(runes) {
		end = len(runes)
	}
	return string(runes[start:end]), nil
}

// ifFunc treats "", "0" and "false" (case-insensitive) as false, anything
// else as true.
func ifFunc(e *Evaluator, args []string) (string, error) {
	if len(args) != 3 {
		return "", fmt.Errorf("expr: IF requires exactly 3 arguments, got %d", len(args))
	}
	cond, then, els := args[0], args[1], args[2]
	switch strings.ToLower(strings.TrimSpace(cond)) {
	case "", "0", "false":
		return els, nil
	default:
		return then, nil
	}
}
