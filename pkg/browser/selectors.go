package browser

import (
	"time"

	errs "sunograb/pkg/errors"
)

// Candidates is an ordered list of selector strategies for one logical UI
// element. The host UI's locators are not stable, so each lookup walks the
// list with a bounded wait per strategy and settles on the first selector
// that resolves.
type Candidates []string

// Resolve returns the first selector in the chain that matches a visible
// element within perCandidate wait. Failing every candidate yields a
// classified element error, which is fatal to the run for required fields.
func (c Candidates) Resolve(d Driver, perCandidate time.Duration) (string, error) {
	for _, selector := range c {
		if err := d.WaitVisible(selector, perCandidate); err == nil {
			return selector, nil
		}
	}
	return "", errs.Newf(errs.ErrorTypeElement, "no candidate selector resolved (tried %d)", len(c))
}
