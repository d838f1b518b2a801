package app

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"kestrel/hal"
	"kestrel/kernel"
)

// panicColumns is the width panic reports are wrapped to on the log.
const panicColumns = 96

func panicHandler(h hal.HAL) func(kernel.PanicInfo) {
	return func(info kernel.PanicInfo) {
		l := h.Logger()
		if l == nil {
			return
		}

		lines := []string{
			"Kestrel Panic:",
			fmt.Sprintf("thread: %v", info.Thread),
			fmt.Sprintf("panic: %v", info.Value),
		}
		if len(info.Stack) > 0 {
			lines = append(lines, "stack:")
			for _, line := range strings.Split(string(info.Stack), "\n") {
				if line == "" {
					continue
				}
				lines = append(lines, line)
			}
		} else {
			lines = append(lines, "stack: unavailable")
		}

		for _, line := range lines {
			for len(line) > 0 {
				chunk, rest := takeRunes(line, panicColumns)
				l.WriteLineString(chunk)
				line = strings.TrimLeft(rest, " ")
			}
		}
	}
}

func takeRunes(s string, n int) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	if len(s) <= n {
		return s, ""
	}
	var i, count int
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		if size <= 0 {
			break
		}
		i += size
		count++
	}
	if i >= len(s) {
		return s, ""
	}
	return s[:i], s[i:]
}
