package observability

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/story-manager/internal/db"
	"github.com/jonathan/story-manager/internal/story"
)

func TestPrintMigrationStatus(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintMigrationStatus(1, false)
	output := buf.String()
	assert.Contains(t, output, "SCHEMA MIGRATIONS")
	assert.Contains(t, output, "Version:  1")
	assert.Contains(t, output, "clean")

	buf.Reset()
	p.PrintMigrationStatus(0, false)
	assert.Contains(t, buf.String(), "no migrations applied")

	buf.Reset()
	p.PrintMigrationStatus(2, true)
	assert.Contains(t, buf.String(), "DIRTY")
}

func TestPrintStories(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	stories := []story.Story{
		{
			ID:    1,
			Title: "Welcome Story",
			Languages: []story.Language{
				{ID: 1, Code: "en", Contents: []story.Content{
					{ID: 1, FormatID: 1, Content: "Hi"},
					{ID: 2, FormatID: 2, Content: "/media/audio/hi.mp3"},
				}},
			},
			Formats: []story.Format{{ID: 1, Type: "text"}, {ID: 2, Type: "audio"}},
		},
		{ID: 2, Title: "Empty", Languages: []story.Language{}, Formats: []story.Format{{ID: 1, Type: "text"}}},
	}

	p.PrintStories(stories)
	output := buf.String()

	assert.Contains(t, output, "STORIES")
	assert.Contains(t, output, "Total stories: 2")
	assert.Contains(t, output, "#1  Welcome Story")
	assert.Contains(t, output, "en: text, audio")
	assert.Contains(t, output, "(no languages)")
}

func TestPrintStories_Truncates(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	var stories []story.Story
	for i := 1; i <= 8; i++ {
		stories = append(stories, story.Story{ID: int64(i), Title: fmt.Sprintf("Story %d", i)})
	}
	stories[0].Title = strings.Repeat("x", 100)

	p.PrintStories(stories)
	output := buf.String()

	assert.Contains(t, output, "... and 3 more stories")
	assert.NotContains(t, output, "Story 6")
	assert.Contains(t, output, "...")
	assert.NotContains(t, output, strings.Repeat("x", 100))
}

func TestPrintStories_MultiByteTitles(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintStories([]story.Story{
		{ID: 1, Title: "Приветствие", Languages: []story.Language{}},
		{ID: 2, Title: strings.Repeat("物語", 40), Languages: []story.Language{}},
	})

	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		assert.True(t, utf8.ValidString(line), "line %q is not valid UTF-8", line)
		assert.Equal(t, boxWidth, utf8.RuneCountInString(line), "line %q", line)
	}
	assert.Contains(t, buf.String(), "#1  Приветствие")
}

func TestPrintOpeners(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintOpeners([]db.Opener{{
		ID: 1, Text: "Hi there!", Context: "greeting",
		ContinueOptions: []db.ContinueOption{{ID: 1, Text: "Hello!", Weight: 1}},
	}})
	output := buf.String()

	assert.Contains(t, output, "OPENERS")
	assert.Contains(t, output, "#1  Hi there! [greeting]")
	assert.Contains(t, output, "Hello! (1.00)")
}

func TestPrintEmptyInputs(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintStories(nil)
	p.PrintOpeners(nil)
	assert.Empty(t, buf.String())
}
