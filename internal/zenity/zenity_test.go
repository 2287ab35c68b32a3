package zenity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mactep/aw-watcher-ask/internal/models"
)

func intp(n int) *int { return &n }

func TestBuildArgsEntry(t *testing.T) {
	args, err := buildArgs(models.KindEntry, Options{
		Title:   "My question",
		Text:    "How are you?",
		Timeout: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--entry",
		"--title", "My question",
		"--text", "How are you?",
		"--timeout", "60",
	}, args)
}

func TestBuildArgsForms(t *testing.T) {
	args, err := buildArgs(models.KindForms, Options{
		Title: "Check",
		Fields: []FormField{
			{Kind: models.FieldCombo, Label: "Mood", Values: []string{"1", "2", "3"}},
			{Kind: models.FieldEntry, Label: "Reason"},
			{Kind: models.FieldEntry, Label: "Notes"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--forms",
		"--title", "Check",
		"--add-combo", "Mood",
		"--combo-values", "1|2|3",
		"--add-entry", "Reason",
		"--add-entry", "Notes",
	}, args)
}

func TestBuildArgsScaleDefaultsToMidpoint(t *testing.T) {
	args, err := buildArgs(models.KindScale, Options{
		MinValue: intp(1),
		MaxValue: intp(9),
	})
	require.NoError(t, err)
	assert.Contains(t, args, "--min-value=1")
	assert.Contains(t, args, "--max-value=9")
	assert.Contains(t, args, "--value=5")
}

func TestBuildArgsScaleExplicitValue(t *testing.T) {
	args, err := buildArgs(models.KindScale, Options{
		MinValue: intp(0),
		MaxValue: intp(10),
		Value:    intp(2),
	})
	require.NoError(t, err)
	assert.Contains(t, args, "--value=2")
	assert.NotContains(t, args, "--value=5")
}

func TestBuildArgsExtrasAreSortedAndFormatted(t *testing.T) {
	args, err := buildArgs(models.KindQuestion, Options{
		Extras: map[string]string{
			"width":    "400",
			"no-wrap":  "",
			"ok-label": "Sure",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--question",
		"--no-wrap",
		"--ok-label=Sure",
		"--width=400",
	}, args)
}

func TestRunDeadlineAlwaysBounded(t *testing.T) {
	assert.Equal(t, reapGrace, runDeadline(0), "no dialog timeout still bounds the subprocess")
	assert.Equal(t, 60*time.Second+reapGrace, runDeadline(60))
}

func TestBuildArgsUnknownKind(t *testing.T) {
	_, err := buildArgs(models.DialogKind("popup"), Options{})
	assert.Error(t, err)
}
