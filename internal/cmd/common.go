package cmd

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/lessonforge/lessonforge/internal/book"
)

func readInput(fileName string) ([]byte, error) {
	if fileName == "-" {
		data, err := io.ReadAll(os.Stdin)
		return data, errors.Wrap(err, "failed to read from stdin")
	}
	data, err := os.ReadFile(fileName)
	return data, errors.Wrapf(err, "failed to read file %q", fileName)
}

func loadBook(fileName string) (*book.Book, error) {
	data, err := readInput(fileName)
	if err != nil {
		return nil, err
	}
	return book.Load(data)
}
