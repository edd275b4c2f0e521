package cache

import (
	"fmt"
	"strconv"
	"strings"
)

// GenerateKeyWithParams creates a cache key with multiple parameters.
// Nil values and nil float pointers render as "-" so optional inputs still produce stable keys.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, param := range params {
		b.WriteByte(':')
		switch v := param.(type) {
		case nil:
			b.WriteByte('-')
		case string:
			b.WriteString(v)
		case *float64:
			if v == nil {
				b.WriteByte('-')
				continue
			}
			b.WriteString(strconv.FormatFloat(*v, 'f', -1, 64))
		default:
			fmt.Fprintf(&b, "%v", v)
		}
	}
	return b.String()
}
