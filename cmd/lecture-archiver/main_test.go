package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/lecture-archiver"
)

func TestPrompt_RetriesUntilValid(t *testing.T) {
	assert := assert_.New(t)
	in := strings.NewReader("not a url\nhttps://echo360.net.au/courses\nhttps://echo360.net.au/section/s1/home\n")
	var out bytes.Buffer

	match, err := prompt(context.Background(), in, &out)
	require.NoError(t, err)
	assert.Equal(lecture_archiver.Section("s1"), match.Target)
	assert.Equal(lecture_archiver.Origin("https://echo360.net.au"), match.Origin)
	assert.Equal(3, strings.Count(out.String(), "Enter URL: "))
	assert.Equal(2, strings.Count(out.String(), "Invalid URL"))
	assert.Contains(out.String(), "/lesson/xxxxxx/classroom")
}

func TestPrompt_LastLineWithoutNewline(t *testing.T) {
	match, err := prompt(context.Background(), strings.NewReader("https://echo360.net.au/lesson/l1/classroom"), &bytes.Buffer{})
	require.NoError(t, err)
	assert_.Equal(t, lecture_archiver.Lesson("l1"), match.Target)
}

func TestPrompt_EndOfInput(t *testing.T) {
	_, err := prompt(context.Background(), strings.NewReader("bad\n"), &bytes.Buffer{})
	assert_.ErrorContains(t, err, "no URL entered")
}

func TestMatchAll(t *testing.T) {
	assert := assert_.New(t)

	matches, err := matchAll([]string{
		"https://echo360.net.au/section/s1/home",
		"https://echo360.net.au/lesson/l1/classroom",
	})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(lecture_archiver.Section("s1"), matches[0].Target)
	assert.Equal(lecture_archiver.Lesson("l1"), matches[1].Target)

	_, err = matchAll([]string{
		"https://echo360.net.au/section/s1/home",
		"https://echo360.org.uk/lesson/l1/classroom",
	})
	assert.ErrorIs(err, lecture_archiver.ErrInvalidURL)
	assert.ErrorContains(err, "echo360.org.uk")

	_, err = matchAll([]string{"https://echo360.net.au/section/s1/home", "nope"})
	assert.ErrorIs(err, lecture_archiver.ErrInvalidURL)
}
