package mime

import (
	"fmt"

	"golang.org/x/text/encoding/ianaindex"
)

// CanonicalCharset resolves name against the IANA character set registry
// and returns its canonical MIME name. An unrecognized name is an error;
// callers treat that as a header-validation failure rather than a
// collaborator fault.
func CanonicalCharset(name string) (string, error) {
	enc, err := ianaindex.MIME.Encoding(name)
	if err != nil || enc == nil {
		return "", fmt.Errorf("unrecognized character set: %s", name)
	}
	canonical, err := ianaindex.MIME.Name(enc)
	if err != nil {
		return "", fmt.Errorf("unrecognized character set: %s", name)
	}
	return canonical, nil
}
