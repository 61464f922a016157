package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"lingua-backend/internal/lessons"
	"lingua-backend/internal/models"
)

// ImportResult reports a workbook import. Rows that could not be read are
// listed in Errors; they do not abort the import.
type ImportResult struct {
	TotalProcessed int              `json:"total_processed"`
	Imported       []*models.Lesson `json:"imported"`
	Errors         []string         `json:"errors"`
}

// ParseLessonWorkbook reads the first sheet of an .xlsx file. The first row
// is a header naming the columns (any order): title, grammar_focus, content,
// vocabulary (comma or semicolon separated) and optional xp_reward.
func ParseLessonWorkbook(r io.Reader, courseID uuid.UUID) ([]*models.Lesson, []string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("workbook is empty")
	}

	index := make(map[string]int)
	for i, h := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := index["title"]; !ok {
		return nil, nil, fmt.Errorf("header row must contain a title column")
	}

	cell := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []*models.Lesson
	var rowErrs []string
	for n, row := range rows[1:] {
		rowNum := n + 2
		title := cell(row, "title")
		if title == "" {
			if isBlankRow(row) {
				continue
			}
			rowErrs = append(rowErrs, fmt.Sprintf("Row %d: title is required", rowNum))
			continue
		}

		focus := lessons.ParseGrammarFocus(cell(row, "grammar_focus"))
		template := lessons.FallbackLesson(title, focus, "")

		content := cell(row, "content")
		if content == "" {
			content = template.Content
		}
		vocab := splitList(cell(row, "vocabulary"))
		if len(vocab) == 0 {
			vocab = template.Vocabulary
		}

		xp := 0
		if raw := cell(row, "xp_reward"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 0 {
				rowErrs = append(rowErrs, fmt.Sprintf("Row %d: invalid xp_reward %q", rowNum, raw))
				continue
			}
			xp = v
		}

		exercises, _ := json.Marshal(template.Exercises)
		out = append(out, &models.Lesson{
			CourseID:      courseID,
			Title:         title,
			GrammarFocus:  string(focus),
			Content:       content,
			Vocabulary:    vocab,
			ExercisesJSON: exercises,
			XPReward:      xp,
		})
	}
	return out, rowErrs, nil
}

func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

type LessonImporter struct {
	lessons lessonWriter
}

func NewLessonImporter(lessons lessonWriter) *LessonImporter {
	return &LessonImporter{lessons: lessons}
}

// Import stores every readable row in order.
func (i *LessonImporter) Import(ctx context.Context, courseID uuid.UUID, r io.Reader) (*ImportResult, error) {
	parsed, rowErrs, err := ParseLessonWorkbook(r, courseID)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"file": err.Error()}}
	}

	result := &ImportResult{
		TotalProcessed: len(parsed) + len(rowErrs),
		Imported:       make([]*models.Lesson, 0, len(parsed)),
		Errors:         rowErrs,
	}
	if result.Errors == nil {
		result.Errors = []string{}
	}
	for _, l := range parsed {
		if err := i.lessons.CreateLesson(ctx, l); err != nil {
			return nil, fmt.Errorf("failed to save lesson %q: %w", l.Title, err)
		}
		result.Imported = append(result.Imported, l)
	}
	return result, nil
}
