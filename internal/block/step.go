package block

// Kind discriminates the step value shapes the engine recognises directly.
// All other shapes are routed to the dispatch collaborator untouched.
type Kind int

const (
	KindScalar  Kind = iota // plain string/number/bool
	KindDisplay             // {zDisplay: ...}
	KindData                // {zData: ...}
	KindFunc                // {zFunc: ...}
	KindLink                // {zLink: ...}
	KindDialog              // {zDialog: ...}
	KindNested              // nested plain block
	KindList                // sequence value
	KindNil                 // null step
)

// Discriminator keys for tagged dispatch objects.
const (
	TagDisplay = "zDisplay"
	TagData    = "zData"
	TagFunc    = "zFunc"
	TagLink    = "zLink"
	TagDialog  = "zDialog"
)

// Classify inspects a step value and returns its kind plus the payload.
// For tagged kinds the payload is the value under the discriminator key;
// for nested blocks it is the *Block itself.
func Classify(v any) (Kind, any) {
	switch val := v.(type) {
	case nil:
		return KindNil, nil
	case *Block:
		for _, tag := range []string{TagDisplay, TagData, TagFunc, TagLink, TagDialog} {
			if payload, ok := val.Get(tag); ok {
				return tagKind(tag), payload
			}
		}
		return KindNested, val
	case map[string]any:
		for _, tag := range []string{TagDisplay, TagData, TagFunc, TagLink, TagDialog} {
			if payload, ok := val[tag]; ok {
				return tagKind(tag), payload
			}
		}
		return KindNested, val
	case []any:
		return KindList, val
	default:
		return KindScalar, val
	}
}

func tagKind(tag string) Kind {
	switch tag {
	case TagDisplay:
		return KindDisplay
	case TagData:
		return KindData
	case TagFunc:
		return KindFunc
	case TagLink:
		return KindLink
	case TagDialog:
		return KindDialog
	}
	return KindScalar
}

// RBACValue extracts the zRBAC metadata attached to a step value, if any.
func RBACValue(v any) (any, bool) {
	switch val := v.(type) {
	case *Block:
		return val.Get(MetaRBAC)
	case map[string]any:
		r, ok := val[MetaRBAC]
		return r, ok
	}
	return nil, false
}
