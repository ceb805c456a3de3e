// Package offertsv converts offers to and from tab separated lines.
//
// A line holds, in order: title, description, creation date (RFC 3339), image,
// offer type, price, categories joined by ";", author name, author email,
// author avatar and author type.
package offertsv

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/maruel/buyandsell/internal/models"
)

// NumFields is the number of tab separated fields on a line.
const NumFields = 11

// CategorySeparator joins category names inside the categories field.
const CategorySeparator = ";"

// Author describes the offer's author as exported.
type Author struct {
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	AvatarPath string          `json:"avatarPath"`
	Type       models.UserType `json:"type"`
}

// Row is one exported offer.
type Row struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Created     time.Time        `json:"created"`
	Image       string           `json:"image"`
	Type        models.OfferType `json:"type"`
	Price       int              `json:"price"`
	Categories  []string         `json:"categories"`
	Author      Author           `json:"author"`
}

// ParseError reports the field that failed to parse.
type ParseError struct {
	Line  int // 1-based, 0 when unknown
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: invalid %s: %v", e.Line, e.Field, e.Err)
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var fieldSanitizer = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

// Format renders r as a single line without the trailing newline. Tabs and
// line breaks inside values are replaced by spaces.
func Format(r *Row) string {
	cats := make([]string, len(r.Categories))
	for i, c := range r.Categories {
		cats[i] = strings.ReplaceAll(c, CategorySeparator, ",")
	}
	fields := [NumFields]string{
		r.Title,
		r.Description,
		r.Created.UTC().Format(time.RFC3339),
		r.Image,
		string(r.Type),
		strconv.Itoa(r.Price),
		strings.Join(cats, CategorySeparator),
		r.Author.Name,
		r.Author.Email,
		r.Author.AvatarPath,
		string(r.Author.Type),
	}
	for i, f := range fields {
		fields[i] = fieldSanitizer.Replace(f)
	}
	return strings.Join(fields[:], "\t")
}

// Parse decodes a line produced by Format.
func Parse(line string) (*Row, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(fields) != NumFields {
		return nil, &ParseError{Field: "line", Err: fmt.Errorf("got %d fields, want %d", len(fields), NumFields)}
	}
	created, err := time.Parse(time.RFC3339, fields[2])
	if err != nil {
		return nil, &ParseError{Field: "created", Err: err}
	}
	typ := models.OfferType(fields[4])
	if err := typ.Validate(); err != nil {
		return nil, &ParseError{Field: "type", Err: err}
	}
	price, err := strconv.Atoi(fields[5])
	if err != nil {
		return nil, &ParseError{Field: "price", Err: err}
	}
	var cats []string
	for c := range strings.SplitSeq(fields[6], CategorySeparator) {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}
	if len(cats) == 0 {
		return nil, &ParseError{Field: "categories", Err: errors.New("at least one category is required")}
	}
	authorType := models.UserType(fields[10])
	if err := authorType.Validate(); err != nil {
		return nil, &ParseError{Field: "author type", Err: err}
	}
	if fields[8] == "" {
		return nil, &ParseError{Field: "author email", Err: errors.New("empty")}
	}
	return &Row{
		Title:       fields[0],
		Description: fields[1],
		Created:     created,
		Image:       fields[3],
		Type:        typ,
		Price:       price,
		Categories:  cats,
		Author: Author{
			Name:       fields[7],
			Email:      fields[8],
			AvatarPath: fields[9],
			Type:       authorType,
		},
	}, nil
}
