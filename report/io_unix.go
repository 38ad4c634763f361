package report

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isDirectoryNotEmpty(err error) bool {
	return errors.Is(err, unix.ENOTEMPTY)
}
