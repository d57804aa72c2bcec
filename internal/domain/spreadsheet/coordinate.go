package spreadsheet

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
)

var ErrMalformedCoordinate = fmt.Errorf("malformed cell coordinate")

// Coordinate is a 1-based cell position.
type Coordinate struct {
	Column int
	Row    int
}

// Location renders the coordinate in A1 notation.
func (c Coordinate) Location() string {
	letters, err := LettersFromColumnIndex(c.Column)
	if err != nil {
		return fmt.Sprintf("?%d", c.Row)
	}
	return letters + strconv.Itoa(c.Row)
}

// ParseCoordinate reads an A1-style reference such as "B12". Column letters are case-insensitive.
func ParseCoordinate(text string) (Coordinate, error) {
	s := strings.TrimSpace(text)
	split := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	if split == -1 {
		return Coordinate{}, fmt.Errorf("%w: %q has no row number", ErrMalformedCoordinate, text)
	}
	if split == 0 {
		return Coordinate{}, fmt.Errorf("%w: %q has no column letters", ErrMalformedCoordinate, text)
	}

	column, err := ColumnIndexFromLetters(s[:split])
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: %q: %v", ErrMalformedCoordinate, text, err)
	}
	digits := s[split:]
	if strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }) != -1 {
		return Coordinate{}, fmt.Errorf("%w: %q has a non-numeric row", ErrMalformedCoordinate, text)
	}
	row, err := strconv.Atoi(digits)
	if err != nil || row < 1 {
		return Coordinate{}, fmt.Errorf("%w: %q has an invalid row number", ErrMalformedCoordinate, text)
	}
	return Coordinate{Column: column, Row: row}, nil
}

// ColumnIndexFromLetters converts bijective base-26 letters to a column index (A=1, AA=27).
func ColumnIndexFromLetters(letters string) (int, error) {
	for _, r := range letters {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			return 0, fmt.Errorf("%w: %q is not a column name", ErrMalformedCoordinate, letters)
		}
	}
	n, err := excelize.ColumnNameToNumber(letters)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedCoordinate, err)
	}
	return n, nil
}

// LettersFromColumnIndex is the inverse of ColumnIndexFromLetters.
func LettersFromColumnIndex(index int) (string, error) {
	name, err := excelize.ColumnNumberToName(index)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCoordinate, err)
	}
	return name, nil
}

// Region is one rectangular block of a parse template.
type Region struct {
	BeginPoint string `json:"beginPoint" yaml:"begin"`
	EndPoint   string `json:"endPoint" yaml:"end"`
}

func (r Region) Bounds() (Coordinate, Coordinate, error) {
	begin, err := ParseCoordinate(r.BeginPoint)
	if err != nil {
		return Coordinate{}, Coordinate{}, err
	}
	end, err := ParseCoordinate(r.EndPoint)
	if err != nil {
		return Coordinate{}, Coordinate{}, err
	}
	return begin, end, nil
}
