package sqlguard

import (
	"fmt"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/munuiq/insights-engine/pkg/apperrors"
)

// ScreenFreeText runs a SQL injection check on caller-supplied free
// text (the question, mention labels) before it is spliced into a
// prompt. name identifies the field in the error.
func ScreenFreeText(name, text string) error {
	isSQLi, fingerprint := libinjection.IsSQLi(text)
	if isSQLi {
		return fmt.Errorf("%s matches SQL injection fingerprint %s: %w",
			name, string(fingerprint), apperrors.ErrRejectedQuery)
	}
	return nil
}
