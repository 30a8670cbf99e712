// Package corpus loads the verse corpus from a delimited file.
package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"alkitab/internal/domain"
)

// Column sets the loader accepts. The long-form schema is preferred; the
// short-form generic names are the fallback.
var (
	longForm  = schema{book: "Nama ayat", chapter: "Bagian", verse: "Ayat", text: "Isi"}
	shortForm = schema{book: "book", chapter: "chapter", verse: "verse", text: "text"}
)

// markupToken is stripped from verse bodies with a plain substring removal.
const markupToken = "<t/>"

type schema struct {
	book, chapter, verse, text string
}

// Load reads the corpus file at path and returns its verses in file order.
// It fails with domain.ErrDataNotFound when the file is absent and with
// domain.ErrSchema when neither column set is present or a row has an empty
// required cell. On any error no verses are returned.
func Load(path string) ([]domain.VerseRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDataNotFound, path)
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: %s is empty", domain.ErrSchema, path)
		}
		return nil, err
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var verses []domain.VerseRecord
	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		v, err := cols.record(row, line)
		if err != nil {
			return nil, err
		}
		verses = append(verses, v)
	}
	return verses, nil
}

// columnIndexes maps the resolved schema to positions in the header row.
type columnIndexes struct {
	book, chapter, verse, text int
}

func resolveColumns(header []string) (*columnIndexes, error) {
	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[strings.TrimSpace(name)] = i
	}
	for _, s := range []schema{longForm, shortForm} {
		idx := columnIndexes{}
		ok := true
		for _, bind := range []struct {
			name string
			dst  *int
		}{
			{s.book, &idx.book},
			{s.chapter, &idx.chapter},
			{s.verse, &idx.verse},
			{s.text, &idx.text},
		} {
			i, found := pos[bind.name]
			if !found {
				ok = false
				break
			}
			*bind.dst = i
		}
		if ok {
			return &idx, nil
		}
	}
	return nil, fmt.Errorf("%w: columns %v match neither %v nor %v",
		domain.ErrSchema, header, longForm.names(), shortForm.names())
}

func (s schema) names() []string {
	return []string{s.book, s.chapter, s.verse, s.text}
}

func (c *columnIndexes) record(row []string, line int) (domain.VerseRecord, error) {
	// Cells are kept verbatim; trimming is only for the emptiness check, so
	// the stored text is exactly the input minus the markup token.
	get := func(i int) (string, bool) {
		if i >= len(row) {
			return "", false
		}
		cell := row[i]
		return cell, strings.TrimSpace(cell) != ""
	}
	book, ok1 := get(c.book)
	chapter, ok2 := get(c.chapter)
	verse, ok3 := get(c.verse)
	text, ok4 := get(c.text)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		// An empty cell fails the whole load; partial corpora are worse
		// than no corpus for retrieval quality.
		return domain.VerseRecord{}, fmt.Errorf("%w: row %d has an empty cell", domain.ErrSchema, line)
	}
	return domain.VerseRecord{
		Book:      book,
		Chapter:   chapter,
		Verse:     verse,
		Text:      strings.ReplaceAll(text, markupToken, ""),
		Reference: book + " " + chapter + ":" + verse,
	}, nil
}
