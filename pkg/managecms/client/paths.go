package client

import (
	"strings"

	"github.com/tendant/simple-manage/pkg/managecms"
)

// escape quotes the characters gjson and sjson treat as path syntax.
func escape(component string) string {
	var b strings.Builder
	for _, r := range component {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', ':', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func fieldPath(field managecms.FieldType, locale managecms.Locale) string {
	return "fields." + escape(string(field)) + "." + escape(string(locale))
}

func filePath(locale managecms.Locale) string {
	return "fields.file." + escape(string(locale))
}
