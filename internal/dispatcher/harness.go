package dispatcher

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/phetsims/aqua/internal/snapshot"
)

// harnessHTML maps a Test's Type to its per-type runner HTML, per
// SPEC_FULL.md §6's expansion of spec.md's "url (a relative URL of the
// per-type harness HTML...)" requirement.
func harnessHTML(t snapshot.Type) string {
	switch t {
	case snapshot.TypeSimTest:
		return "sim-test.html"
	case snapshot.TypeQUnitTest:
		return "qunit-test.html"
	case snapshot.TypePageloadTest:
		return "pageload-test.html"
	case snapshot.TypeWrapperTest:
		return "wrapper-test.html"
	default:
		return "no-test.html"
	}
}

// HarnessURL builds the relative URL a dispatched Test's client should
// load: the per-type harness HTML rooted at /{snapshotName}/{repo}/...,
// with "url" and "simQueryParameters" query parameters URL-encoded per
// spec.md §6.
func HarnessURL(test *snapshot.Test, snapshotName string, old bool) string {
	if len(test.Names) == 0 {
		return "no-test.html"
	}
	repo := test.Names[0]
	base := fmt.Sprintf("/%s/%s/", snapshotName, repo)

	innerPath := strings.Join(test.Names, "/")
	params := url.Values{}
	params.Set("url", base+innerPath)
	if old {
		params.Set("simQueryParameters", "ea&audioVolume=0&webgl=false")
	} else {
		params.Set("simQueryParameters", "ea&audioVolume=0")
	}

	return base + harnessHTML(test.Type) + "?" + params.Encode()
}
