package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/lint"
	"github.com/jingkaihe/skilldesk/pkg/presenter"
)

// errValidation signals a non-zero exit after the issues were printed
var errValidation = errors.New("validation failed")

// printReports writes every report, as text or JSON, and returns
// errValidation when any report has errors
func printReports(w io.Writer, reports []lint.Report, asJSON bool) error {
	valid := true
	for _, r := range reports {
		if !r.Valid() {
			valid = false
		}
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return errors.Wrap(err, "failed to encode reports")
		}
	} else {
		for _, r := range reports {
			errs, warns := r.Count(lint.SeverityError), r.Count(lint.SeverityWarning)
			for _, issue := range r.Sorted() {
				fmt.Fprintln(w, "  "+issue.String())
			}
			switch {
			case errs > 0:
				presenter.Error(errors.Errorf("%d error(s), %d warning(s)", errs, warns), r.Path)
			case warns > 0:
				presenter.Warning(fmt.Sprintf("%s: valid with %d warning(s)", r.Path, warns))
			default:
				presenter.Success(r.Path + ": valid")
			}
		}
	}

	if !valid {
		return errValidation
	}
	return nil
}
