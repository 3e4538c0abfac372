package static

import (
	_ "embed"
)

//go:embed index.html
var indexHTML []byte

// IndexPage returns the embedded landing page.
func IndexPage() []byte {
	return indexHTML
}
