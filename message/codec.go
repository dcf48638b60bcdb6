package message

import "context"

// Defect messages reported by Validate.
const (
	DefectFormatNotSpecified  = "The message format is not specified."
	DefectFileNotSpecified    = "A file which contains a message is not specified"
	DefectContentNotSpecified = "A message content is not specified."
)

// Validate checks raw text against the rules of kind and returns the
// defects found, in order. A nil result means the input is valid.
func Validate(kind Kind, raw string) []string {
	var defects []string
	rules, known := kinds[kind]
	if !known {
		defects = append(defects, DefectFormatNotSpecified)
	}

	if raw == "" {
		if kind == KindText {
			return defects
		}
		if kind == KindBinaryFile {
			return append(defects, DefectFileNotSpecified)
		}
		return append(defects, DefectContentNotSpecified)
	}

	if known && rules.check != nil {
		if defect := rules.check(raw); defect != "" {
			defects = append(defects, defect)
		}
	}
	return defects
}

// Build converts raw text into a wire message. Kinds that pass Validate
// only fail here when a BinaryFile reference cannot be read.
func Build(ctx context.Context, kind Kind, raw string, project Project) (Message, error) {
	rules, ok := kinds[kind]
	if !ok {
		return Message{}, &ConversionError{Kind: kind, Msg: DefectFormatNotSpecified}
	}
	return rules.build(ctx, raw, project)
}

// Accepts reports whether raw may be assigned as the message text while
// kind is selected. Only numeric kinds restrict assignment.
func Accepts(kind Kind, raw string) bool {
	rules, ok := kinds[kind]
	if !ok || !rules.numeric {
		return true
	}
	return rules.check(raw) == ""
}

// Coerce returns the text to keep after switching to kind. Numeric kinds
// reset unparseable text to "0"; every other kind keeps raw unchanged.
func Coerce(kind Kind, raw string) string {
	if Accepts(kind, raw) {
		return raw
	}
	return "0"
}
