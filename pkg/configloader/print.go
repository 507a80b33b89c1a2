// pkg/configloader/print.go
package configloader

import (
	"encoding/json"
	"fmt"
	"io"
)

// PrintConfig выводит конфиг в читаемом виде (удобно в DevMode).
func PrintConfig(w io.Writer, v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, "Loaded configuration:\n", string(b))
}
