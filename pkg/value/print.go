package value

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

const (
	prettyIndent    = "\t"
	prettyTabWidth  = 4
	prettyLineLimit = 80
)

// Serialize returns the compact text form of v. Object keys are emitted in
// sorted order so equal content always produces equal text.
func Serialize(v *Value) string {
	var sb strings.Builder
	writeCompact(&sb, v)
	return sb.String()
}

// SerializePretty returns an indented text form of v. Containers whose
// compact form fits on the current line are kept on one line.
func SerializePretty(v *Value) string {
	var sb strings.Builder
	writePretty(&sb, v, 0)
	return sb.String()
}

func writeCompact(sb *strings.Builder, v *Value) {
	switch v.Kind() {
	case KindObject:
		sb.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeString(sb, k)
			sb.WriteByte(':')
			writeCompact(sb, v.object[k])
		}
		sb.WriteByte('}')
	case KindList:
		sb.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeCompact(sb, item)
		}
		sb.WriteByte(']')
	default:
		writeScalar(sb, v)
	}
}

func writePretty(sb *strings.Builder, v *Value, depth int) {
	kind := v.Kind()
	if kind != KindObject && kind != KindList {
		writeScalar(sb, v)
		return
	}
	compact := Serialize(v)
	if v.Len() == 0 || depth*prettyTabWidth+len(compact) <= prettyLineLimit {
		sb.WriteString(compact)
		return
	}
	indent := strings.Repeat(prettyIndent, depth+1)
	if kind == KindObject {
		sb.WriteString("{\n")
		for i, k := range v.Keys() {
			sb.WriteString(indent)
			writeString(sb, k)
			sb.WriteString(": ")
			writePretty(sb, v.object[k], depth+1)
			if i < len(v.object)-1 {
				sb.WriteByte(',')
			}
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.Repeat(prettyIndent, depth))
		sb.WriteByte('}')
		return
	}
	sb.WriteString("[\n")
	for i, item := range v.list {
		sb.WriteString(indent)
		writePretty(sb, item, depth+1)
		if i < len(v.list)-1 {
			sb.WriteByte(',')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(strings.Repeat(prettyIndent, depth))
	sb.WriteByte(']')
}

func writeScalar(sb *strings.Builder, v *Value) {
	switch v.Kind() {
	case KindString:
		writeString(sb, v.str)
	case KindNumber:
		if v.isFloat {
			sb.WriteString(formatFloat(v.float))
		} else {
			sb.WriteString(strconv.FormatInt(v.integer, 10))
		}
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.boolean))
	default:
		sb.WriteString("null")
	}
}

// formatFloat writes a decimal literal that always carries a fractional part.
// Non-finite numbers have no literal form and are written as 0.0.
func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0.0"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func writeString(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
}

// Digest is a content hash of a Value.
type Digest [sha256.Size]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest decodes the hex form produced by Digest.String.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, &ParseError{Reason: "invalid digest: " + err.Error()}
	}
	if len(b) != len(d) {
		return d, &ParseError{Reason: "invalid digest length " + strconv.Itoa(len(b))}
	}
	copy(d[:], b)
	return d, nil
}

// Hash returns the digest of the compact serialization of v.
func Hash(v *Value) Digest {
	return sha256.Sum256([]byte(Serialize(v)))
}

func (v *Value) Hash() Digest {
	return Hash(v)
}

// Equal reports whether two Values have identical content.
func Equal(a, b *Value) bool {
	return Hash(a) == Hash(b)
}
