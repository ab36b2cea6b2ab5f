package lecture_archiver

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
)

const (
	DefaultTargetDir         = "output"
	DefaultLessonDirTemplate = "Lecture {{.Number}}"
)

// DownloadConfig decides where downloaded files go.
type DownloadConfig struct {
	TargetDir         string
	LessonDirTemplate *template.Template
}

func NewDownloadConfig() *DownloadConfig {
	return &DownloadConfig{
		TargetDir:         DefaultTargetDir,
		LessonDirTemplate: template.Must(parseLessonDirTemplate(DefaultLessonDirTemplate)),
	}
}

// WithLessonDirTemplate replaces the template used to name each lesson's directory in a section download. The
// template is executed with .Number (1-based position in the syllabus) and .LessonID.
func (c *DownloadConfig) WithLessonDirTemplate(text string) (*DownloadConfig, error) {
	t, err := parseLessonDirTemplate(text)
	if err != nil {
		return nil, err
	}
	res := *c
	res.LessonDirTemplate = t
	return &res, nil
}

func parseLessonDirTemplate(text string) (*template.Template, error) {
	t, err := template.New("lesson_dir").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid lesson directory template: %w", err)
	}
	return t, nil
}

// LessonLabel is the label of the lesson at a 1-based position in a section.
func LessonLabel(number int) string {
	return fmt.Sprintf("Lecture %d", number)
}

// GetLessonDir returns the directory for the lesson at a 1-based position in a section.
func (c *DownloadConfig) GetLessonDir(number int, lessonID string) (string, error) {
	args := lessonDirTemplateArgs{
		Number:   number,
		LessonID: lessonID,
	}
	builder := strings.Builder{}
	if err := c.LessonDirTemplate.Execute(&builder, &args); err != nil {
		return "", err
	}
	name := strings.TrimSpace(builder.String())
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid lesson directory name %q", name)
	}
	return filepath.Join(c.TargetDir, name), nil
}

type lessonDirTemplateArgs struct {
	Number   int
	LessonID string
}
