package dbuskit

import (
	"unicode"
	"unicode/utf8"
)

// CanonicalSelector derives the canonical host selector for a D-Bus
// method from its member name and the names of its in-args:
// lowercase-first, camelCase, in the host's Objective-C-derived
// selector idiom. The D-Bus member name already encodes its
// arguments in its camelCase spelling (e.g. "SetFooWithBar" for
// in-args foo, bar), so the in-arg names are not re-appended; they
// only decide whether a trailing ":" is added, marking the selector
// as one that takes arguments.
//
// The member name's first rune is lower-cased only when it is a
// Unicode letter; a non-letter (a digit, an underscore) is passed
// through unchanged, since there is no well-defined "lower case" for
// it and forcing a transform would make the derivation unstable
// across method names that happen to start with a digit.
func CanonicalSelector(member string, inArgNames []string) string {
	sel := lowercaseFirstLetter(member)
	if len(inArgNames) > 0 {
		sel += ":"
	}
	return sel
}

// SetterSelector derives the canonical selector for a property
// setter: "set" followed by the property name with its first rune
// upper-cased if it is a letter.
func SetterSelector(propertyName string) string {
	return "set" + capitalizeFirstLetter(propertyName)
}

func capitalizeFirstLetter(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsLetter(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func lowercaseFirstLetter(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsLetter(r) {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
