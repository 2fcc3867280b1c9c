package stream

import (
	"regexp"
	"strconv"
	"strings"

	"scenecast/internal/pkg/errors"
	"scenecast/internal/ports"
)

var rangePattern = regexp.MustCompile(`^bytes=(\d*)-(\d*)$`)

// ParseRange resolves a Range header against an object of size bytes.
//
// A nil range with a nil error means the whole object should be sent: the
// header is absent, malformed, or names several ranges. An error means the
// range cannot be satisfied and carries the object size in the "size" field.
//
// Ends past the object are clamped to size-1 and suffix ranges longer than
// the object cover all of it. A start at or past the end, "bytes=<size>-"
// included, has no byte to serve and is unsatisfiable rather than clamped.
func ParseRange(header string, size int64) (*ports.ByteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}
	m := rangePattern.FindStringSubmatch(header)
	if m == nil {
		return nil, nil
	}
	rawStart, rawEnd := m[1], m[2]

	switch {
	case rawStart == "" && rawEnd == "":
		return nil, nil

	case rawStart == "":
		// suffix: the last n bytes
		n, err := strconv.ParseInt(rawEnd, 10, 64)
		if err != nil {
			return nil, nil
		}
		if n == 0 || size == 0 {
			return nil, unsatisfiable(size)
		}
		if n > size {
			n = size
		}
		return &ports.ByteRange{Start: size - n, End: size - 1}, nil
	}

	start, err := strconv.ParseInt(rawStart, 10, 64)
	if err != nil {
		return nil, nil
	}
	end := size - 1
	if rawEnd != "" {
		e, err := strconv.ParseInt(rawEnd, 10, 64)
		if err != nil {
			return nil, nil
		}
		if e < start {
			return nil, nil
		}
		end = min(e, size-1)
	}
	if start >= size {
		return nil, unsatisfiable(size)
	}
	return &ports.ByteRange{Start: start, End: end}, nil
}

func unsatisfiable(size int64) error {
	return errors.Newf(errors.CodeRangeNotSatisfy, "range not satisfiable for object of %d bytes", size).
		WithField("size", size)
}

// UnsatisfiedSize reports the object size carried by a range error.
func UnsatisfiedSize(err error) (int64, bool) {
	if !errors.IsCode(err, errors.CodeRangeNotSatisfy) {
		return 0, false
	}
	size, ok := errors.GetFields(err)["size"].(int64)
	return size, ok
}
