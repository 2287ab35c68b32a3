// Package zenity shells out to the zenity command to present modal
// dialogs. It is the sole implementation of the dialog capability the
// dispatcher depends on: present(kind, options) -> (accepted, rawOutput).
package zenity

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mactep/aw-watcher-ask/internal/models"
)

// reapGrace is added to the dialog timeout before the subprocess itself
// is killed, so zenity gets to exit with its own timeout code first.
const reapGrace = 5 * time.Second

var kindFlags = map[models.DialogKind]string{
	models.KindCalendar:       "--calendar",
	models.KindEntry:          "--entry",
	models.KindError:          "--error",
	models.KindInfo:           "--info",
	models.KindFileSelection:  "--file-selection",
	models.KindList:           "--list",
	models.KindNotification:   "--notification",
	models.KindProgress:       "--progress",
	models.KindWarning:        "--warning",
	models.KindScale:          "--scale",
	models.KindTextInfo:       "--text-info",
	models.KindColorSelection: "--color-selection",
	models.KindQuestion:       "--question",
	models.KindPassword:       "--password",
	models.KindForms:          "--forms",
}

// FormField is one field of a forms dialog, in render order.
type FormField struct {
	Kind   models.FieldKind
	Label  string
	Values []string // combo only
}

// Options is the closed set of dialog options the watcher passes through,
// plus an escape-hatch map for unrecognized zenity flags.
type Options struct {
	Title   string
	Text    string
	Timeout int // seconds; zero means no --timeout flag
	Fields  []FormField

	// Scale bounds. Value defaults to the midpoint when bounds are set.
	MinValue *int
	MaxValue *int
	Value    *int

	// Extras are forwarded verbatim as --key=value (or --key for "").
	Extras map[string]string
}

// CLI presents dialogs by running the zenity binary.
type CLI struct {
	log *zap.SugaredLogger
}

func NewCLI(log *zap.SugaredLogger) *CLI {
	return &CLI{log: log}
}

// Present runs one dialog and collapses every declined/timeout/failure
// outcome to accepted == false.
func (c *CLI) Present(kind models.DialogKind, opts Options) (bool, string) {
	args, err := buildArgs(kind, opts)
	if err != nil {
		c.log.Errorw("cannot build zenity invocation", "error", err)
		return false, ""
	}
	c.log.Debugw("running zenity", "args", args)

	if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		c.log.Warn("DISPLAY is not set, zenity may not display windows")
	}

	// The subprocess is always bounded, even without a dialog timeout: a
	// hung zenity must never block the schedule forever.
	ctx, cancel := context.WithTimeout(context.Background(), runDeadline(opts.Timeout))
	defer cancel()

	cmd := exec.CommandContext(ctx, "zenity", args...)
	out, err := cmd.Output()
	if err == nil {
		return true, strings.TrimSpace(string(out))
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.log.Warn("zenity subprocess timed out")
		return false, ""
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		switch exitErr.ExitCode() {
		case 1:
			c.log.Debug("zenity dialog closed by user")
		case 5:
			c.log.Debug("zenity dialog timed out")
		default:
			c.log.Warnw("zenity exited with unexpected code", "code", exitErr.ExitCode())
		}
		return false, ""
	}
	c.log.Errorw("failed to run zenity", "error", err)
	return false, ""
}

// runDeadline bounds the subprocess lifetime: the dialog timeout plus a
// grace period for zenity to exit with its own timeout code.
func runDeadline(timeout int) time.Duration {
	return time.Duration(timeout)*time.Second + reapGrace
}

func buildArgs(kind models.DialogKind, opts Options) ([]string, error) {
	flag, ok := kindFlags[kind]
	if !ok {
		return nil, errors.New("unknown dialog kind " + string(kind))
	}
	args := []string{flag}

	if opts.Title != "" {
		args = append(args, "--title", opts.Title)
	}
	if opts.Text != "" {
		args = append(args, "--text", opts.Text)
	}
	if opts.Timeout > 0 {
		args = append(args, "--timeout", strconv.Itoa(opts.Timeout))
	}

	if kind == models.KindForms {
		for _, f := range opts.Fields {
			switch f.Kind {
			case models.FieldCombo:
				args = append(args, "--add-combo", f.Label)
				if len(f.Values) > 0 {
					args = append(args, "--combo-values", strings.Join(f.Values, "|"))
				}
			default:
				args = append(args, "--add-entry", f.Label)
			}
		}
	}

	value := opts.Value
	if opts.MinValue != nil {
		args = append(args, "--min-value="+strconv.Itoa(*opts.MinValue))
	}
	if opts.MaxValue != nil {
		args = append(args, "--max-value="+strconv.Itoa(*opts.MaxValue))
	}
	if value == nil && opts.MinValue != nil && opts.MaxValue != nil {
		mid := (*opts.MinValue + *opts.MaxValue) / 2
		value = &mid
	}
	if value != nil {
		args = append(args, "--value="+strconv.Itoa(*value))
	}

	// Deterministic order keeps invocations reproducible in logs.
	keys := make([]string, 0, len(opts.Extras))
	for k := range opts.Extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := opts.Extras[k]; v != "" {
			args = append(args, "--"+k+"="+v)
		} else {
			args = append(args, "--"+k)
		}
	}
	return args, nil
}
