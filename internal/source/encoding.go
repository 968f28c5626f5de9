package source

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// decodeReader wraps r with a charset decoder when name selects something
// other than UTF-8. Activity logs exported by legacy tooling are occasionally
// ISO-8859-1; the catalog is always UTF-8.
func decodeReader(r io.Reader, name string) (io.Reader, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return r, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("source: unknown encoding %q", name)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
