package managecms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"
)

// FieldType identifies which field of an entry a mutation targets.
type FieldType string

const (
	FieldName      FieldType = "name"
	FieldShortText FieldType = "shortText"
	FieldTitle     FieldType = "title"
	FieldSubtitle  FieldType = "subtitle"
	FieldText      FieldType = "text"
	FieldKeywords  FieldType = "keywords"
	FieldURL       FieldType = "url"
	FieldImage     FieldType = "image"
	FieldButtons   FieldType = "buttons"
	FieldFollowUp  FieldType = "followup"
	FieldPriority  FieldType = "priority"
)

// ValueKind is the discriminator of a FieldValue.
type ValueKind string

const (
	KindText      ValueKind = "text"
	KindRichText  ValueKind = "richText"
	KindNumber    ValueKind = "number"
	KindReference ValueKind = "reference"
	KindRaw       ValueKind = "raw"
)

// Symbol fields are limited like short strings in most headless stores.
const maxSymbolLength = 256

type fieldDef struct {
	kind      ValueKind
	maxLength int
	multiple  bool
	linkType  string
}

var fieldDefs = map[FieldType]fieldDef{
	FieldName:      {kind: KindText, maxLength: maxSymbolLength},
	FieldShortText: {kind: KindText, maxLength: maxSymbolLength},
	FieldTitle:     {kind: KindText, maxLength: maxSymbolLength},
	FieldSubtitle:  {kind: KindText, maxLength: maxSymbolLength},
	FieldURL:       {kind: KindText, maxLength: maxSymbolLength},
	FieldText:      {kind: KindRichText},
	FieldKeywords:  {kind: KindRaw},
	FieldImage:     {kind: KindReference, linkType: LinkTypeAsset},
	FieldButtons:   {kind: KindReference, multiple: true, linkType: LinkTypeEntry},
	FieldFollowUp:  {kind: KindReference, linkType: LinkTypeEntry},
	FieldPriority:  {kind: KindNumber},
}

// IsKnown reports whether the field type is one of the predefined fields.
func (f FieldType) IsKnown() bool {
	_, ok := fieldDefs[f]
	return ok
}

// Kind returns the value kind the field holds. Unknown fields hold raw JSON.
func (f FieldType) Kind() ValueKind {
	if def, ok := fieldDefs[f]; ok {
		return def.kind
	}
	return KindRaw
}

// FieldValue is the tagged union of values a field can hold. The concrete
// types are TextValue, RichTextValue, NumberValue, ReferenceValue and RawValue.
type FieldValue interface {
	Kind() ValueKind
	IsEmpty() bool
	fieldValue()
}

// TextValue is a short plain string.
type TextValue string

// RichTextValue is long-form text such as markdown.
type RichTextValue string

// NumberValue is a numeric field value.
type NumberValue float64

// ReferenceValue links to one or more entries or assets.
type ReferenceValue []Link

// RawValue is an opaque JSON document for kinds the store does not model.
type RawValue json.RawMessage

const (
	LinkTypeEntry = "Entry"
	LinkTypeAsset = "Asset"
)

// Link points at another entry or asset.
type Link struct {
	LinkType string `json:"linkType"`
	ID       string `json:"id"`
}

// EntryLink returns a reference to a single entry.
func EntryLink(ids ...string) ReferenceValue {
	return links(LinkTypeEntry, ids)
}

// AssetLink returns a reference to a single asset.
func AssetLink(ids ...string) ReferenceValue {
	return links(LinkTypeAsset, ids)
}

func links(linkType string, ids []string) ReferenceValue {
	ref := make(ReferenceValue, 0, len(ids))
	for _, id := range ids {
		ref = append(ref, Link{LinkType: linkType, ID: id})
	}
	return ref
}

func (TextValue) Kind() ValueKind      { return KindText }
func (RichTextValue) Kind() ValueKind  { return KindRichText }
func (NumberValue) Kind() ValueKind    { return KindNumber }
func (ReferenceValue) Kind() ValueKind { return KindReference }
func (RawValue) Kind() ValueKind       { return KindRaw }

func (v TextValue) IsEmpty() bool      { return v == "" }
func (v RichTextValue) IsEmpty() bool  { return v == "" }
func (v NumberValue) IsEmpty() bool    { return false }
func (v ReferenceValue) IsEmpty() bool { return len(v) == 0 }
func (v RawValue) IsEmpty() bool       { return IsEmptyRaw(json.RawMessage(v)) }

func (TextValue) fieldValue()      {}
func (RichTextValue) fieldValue()  {}
func (NumberValue) fieldValue()    {}
func (ReferenceValue) fieldValue() {}
func (RawValue) fieldValue()       {}

// ValidateValue checks value against the rules of field.
func ValidateValue(field FieldType, value FieldValue) error {
	if value == nil {
		return fmt.Errorf("%w: nil value for field %s", ErrInvalidValue, field)
	}
	if n, ok := value.(NumberValue); ok && !finite(float64(n)) {
		return fmt.Errorf("%w: field %s must be a finite number", ErrInvalidValue, field)
	}

	def, known := fieldDefs[field]
	if !known {
		// Unknown fields accept anything the wire format can carry.
		return nil
	}

	if value.Kind() != def.kind {
		return fmt.Errorf("%w: field %s expects %s, got %s", ErrInvalidValue, field, def.kind, value.Kind())
	}

	switch v := value.(type) {
	case TextValue:
		if def.maxLength > 0 && utf8.RuneCountInString(string(v)) > def.maxLength {
			return fmt.Errorf("%w: field %s is limited to %d characters", ErrInvalidValue, field, def.maxLength)
		}
	case ReferenceValue:
		if !def.multiple && len(v) > 1 {
			return fmt.Errorf("%w: field %s holds a single reference", ErrInvalidValue, field)
		}
		for _, link := range v {
			if link.ID == "" {
				return fmt.Errorf("%w: field %s has a link without id", ErrInvalidValue, field)
			}
			if def.linkType != "" && link.LinkType != def.linkType {
				return fmt.Errorf("%w: field %s links to %s, got %s", ErrInvalidValue, field, def.linkType, link.LinkType)
			}
		}
	case RawValue:
		if len(v) > 0 && !json.Valid(v) {
			return fmt.Errorf("%w: field %s is not valid JSON", ErrInvalidValue, field)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

type linkSys struct {
	Type     string `json:"type"`
	LinkType string `json:"linkType"`
	ID       string `json:"id"`
}

type linkDoc struct {
	Sys linkSys `json:"sys"`
}

// EncodeValue renders value in its JSON wire form for field. Links are
// written as {"sys":{"type":"Link",...}} documents; multi-reference fields
// always encode as an array.
func EncodeValue(field FieldType, value FieldValue) (json.RawMessage, error) {
	switch v := value.(type) {
	case TextValue:
		return json.Marshal(string(v))
	case RichTextValue:
		return json.Marshal(string(v))
	case NumberValue:
		if !finite(float64(v)) {
			return nil, fmt.Errorf("%w: field %s must be a finite number", ErrInvalidValue, field)
		}
		return json.Marshal(float64(v))
	case ReferenceValue:
		docs := make([]linkDoc, len(v))
		for i, link := range v {
			docs[i] = linkDoc{Sys: linkSys{Type: "Link", LinkType: link.LinkType, ID: link.ID}}
		}
		if def, ok := fieldDefs[field]; ok && !def.multiple && len(docs) == 1 {
			return json.Marshal(docs[0])
		}
		return json.Marshal(docs)
	case RawValue:
		if len(v) == 0 {
			return json.RawMessage("null"), nil
		}
		if !json.Valid(v) {
			return nil, fmt.Errorf("%w: field %s is not valid JSON", ErrInvalidValue, field)
		}
		return append(json.RawMessage(nil), v...), nil
	case nil:
		return nil, fmt.Errorf("%w: nil value for field %s", ErrInvalidValue, field)
	default:
		return nil, fmt.Errorf("%w: unsupported value type %T", ErrInvalidValue, value)
	}
}

// DecodeValue parses the JSON wire form of field into the matching FieldValue.
func DecodeValue(field FieldType, raw json.RawMessage) (FieldValue, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty value for field %s", ErrInvalidValue, field)
	}

	switch field.Kind() {
	case KindText, KindRichText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: field %s expects a string", ErrInvalidValue, field)
		}
		if field.Kind() == KindText {
			return TextValue(s), nil
		}
		return RichTextValue(s), nil
	case KindNumber:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("%w: field %s expects a number", ErrInvalidValue, field)
		}
		return NumberValue(n), nil
	case KindReference:
		var docs []linkDoc
		if raw[0] == '[' {
			if err := json.Unmarshal(raw, &docs); err != nil {
				return nil, fmt.Errorf("%w: field %s expects links", ErrInvalidValue, field)
			}
		} else {
			var doc linkDoc
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("%w: field %s expects a link", ErrInvalidValue, field)
			}
			docs = []linkDoc{doc}
		}
		ref := make(ReferenceValue, 0, len(docs))
		for _, doc := range docs {
			if doc.Sys.Type != "" && doc.Sys.Type != "Link" {
				return nil, fmt.Errorf("%w: field %s has a %s where a Link was expected", ErrInvalidValue, field, doc.Sys.Type)
			}
			ref = append(ref, Link{LinkType: doc.Sys.LinkType, ID: doc.Sys.ID})
		}
		return ref, nil
	default:
		if !json.Valid(raw) {
			return nil, fmt.Errorf("%w: field %s is not valid JSON", ErrInvalidValue, field)
		}
		return RawValue(append(json.RawMessage(nil), raw...)), nil
	}
}

// IsEmptyRaw reports whether a raw JSON value carries no content: absent,
// null, "", [] or {}.
func IsEmptyRaw(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return true
	}
	switch string(raw) {
	case "null", `""`, "[]", "{}":
		return true
	}
	if raw[0] == '[' || raw[0] == '{' {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err == nil {
			switch t := v.(type) {
			case []interface{}:
				return len(t) == 0
			case map[string]interface{}:
				return len(t) == 0
			}
		}
	}
	return false
}
