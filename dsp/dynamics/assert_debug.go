//go:build compdebug

package dynamics

import "fmt"

func assertf(ok bool, format string, args ...any) {
	if !ok {
		panic(fmt.Sprintf("dynamics: "+format, args...))
	}
}
