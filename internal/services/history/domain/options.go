package domain

import (
	"time"

	"github.com/go-playground/validator/v10"

	perr "taghist/internal/platform/errors"
)

// Options is the validated run configuration assembled from flags and env
type Options struct {
	// Columns is the projection, empty means the default set
	Columns []string

	// Epoch swaps the default datetime column for seconds since epoch
	Epoch bool

	// SeparateLines forces the one-row-per-side layout even when no
	// side dependent column is configured
	SeparateLines bool

	// Header controls the leading header row
	Header bool

	// Filter dimensions, empty means unrestricted
	UIDs      []uint64
	Kinds     []string
	TagKeys   []string
	TagValues []string

	// Output selects the csv destination, "-" for stdout
	Output string `validate:"required"`

	// Compression is the csv compression policy
	Compression string `validate:"oneof=none auto gzip"`

	// ProgressEvery is the interval between progress log lines,
	// zero disables them
	ProgressEvery time.Duration `validate:"min=0"`
}

// Defaults returns options the way a bare invocation runs
func Defaults() Options {
	return Options{
		Header:        true,
		Output:        "-",
		Compression:   "auto",
		ProgressEvery: 0,
	}
}

var validate = validator.New()

// Validate checks the option struct tags
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return perr.Wrap(err, perr.ErrorCodeValidation, "invalid run options")
	}
	return nil
}
