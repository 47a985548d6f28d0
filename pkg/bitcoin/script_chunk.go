package bitcoin

import (
	"encoding/binary"
	"fmt"
)

// ChunkKind distinguishes the two possible shapes of a parsed script
// element (spec §3).
type ChunkKind int

const (
	// ChunkOpcode is a single opcode byte with no associated payload.
	ChunkOpcode ChunkKind = iota
	// ChunkData is a byte string produced by a push opcode.
	ChunkData
)

// Chunk is one parser unit: either a bare opcode or a pushed byte
// string, together with the byte offset at which its opcode began in
// the original program. Equality on chunks is (Kind, Data) — Offset is
// positional metadata, not part of the value.
type Chunk struct {
	Kind   ChunkKind
	Op     ScriptOpcode // valid when Kind == ChunkOpcode
	Data   []byte       // valid when Kind == ChunkData
	Offset int          // byte offset of the opcode byte in the source program
}

// Equal reports whether two chunks carry the same (kind, bytes), ignoring
// their offsets.
func (c Chunk) Equal(other Chunk) bool {
	if c.Kind != other.Kind {
		return false
	}
	if c.Kind == ChunkOpcode {
		return c.Op == other.Op
	}
	return equalsRange(c.Data, other.Data)
}

// IsPush reports whether the chunk is a data push, including OP_0 (which
// the parser represents as an empty data chunk per spec §4.5).
func (c Chunk) IsPush() bool {
	return c.Kind == ChunkData
}

// equalsRange does a straightforward byte-for-byte comparison. Split out
// as its own function because the interpreter and the signature-hash
// stripping code both need exactly this comparison on raw slices.
func equalsRange(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ParsedScript is an immutable parsed program: its chunk sequence plus
// the original byte image, retained verbatim (spec §3's invariant that
// the retained bytes are never re-synthesized from chunks when the
// caller supplied them).
type ParsedScript struct {
	Chunks []Chunk
	Raw    []byte
}

// ParseScript decodes raw into an ordered chunk sequence (spec §4.1). On
// a truncated push it returns ErrMalformedScript together with the
// partial chunk sequence parsed so far — the partial parse still
// corresponds byte-for-byte to the consumed prefix, per spec §3.
func ParseScript(raw []byte) (ParsedScript, error) {
	ps := ParsedScript{Raw: raw}
	i := 0
	for i < len(raw) {
		offset := i
		op := ScriptOpcode(raw[i])
		i++

		var length int
		switch {
		case op < ScriptOpcode(OP_PUSHDATA1):
			// OP_0 (0x00) is itself a push of the empty byte string, not a
			// control opcode (spec §4.5); it falls into this range too.
			length = int(op)
		case op == OP_PUSHDATA1:
			if i+1 > len(raw) {
				return ps, scriptError(ErrMalformedScript, "truncated OP_PUSHDATA1 length byte")
			}
			length = int(raw[i])
			i++
		case op == OP_PUSHDATA2:
			if i+2 > len(raw) {
				return ps, scriptError(ErrMalformedScript, "truncated OP_PUSHDATA2 length bytes")
			}
			length = int(binary.LittleEndian.Uint16(raw[i : i+2]))
			i += 2
		case op == OP_PUSHDATA4:
			if i+4 > len(raw) {
				return ps, scriptError(ErrMalformedScript, "truncated OP_PUSHDATA4 length bytes")
			}
			length = int(binary.LittleEndian.Uint32(raw[i : i+4]))
			i += 4
		default:
			ps.Chunks = append(ps.Chunks, Chunk{Kind: ChunkOpcode, Op: op, Offset: offset})
			continue
		}

		if i+length > len(raw) {
			return ps, scriptError(ErrMalformedScript, fmt.Sprintf("push of %d bytes exceeds remaining script", length))
		}
		data := raw[i : i+length]
		i += length
		ps.Chunks = append(ps.Chunks, Chunk{Kind: ChunkData, Data: data, Offset: offset})
	}
	return ps, nil
}

// Serialize re-encodes chunks using canonical push-opcode selection
// (spec §4.2). It is used only for scripts built fresh from a builder;
// callers holding retained wire bytes must return those bytes directly
// rather than calling Serialize, since canonical selection can compress
// a non-minimal push.
func Serialize(chunks []Chunk) []byte {
	var out []byte
	for _, c := range chunks {
		if c.Kind == ChunkOpcode {
			out = append(out, byte(c.Op))
			continue
		}
		out = append(out, serializeDataPush(c.Data)...)
	}
	return out
}

// serializeDataPush encodes a single data chunk's canonical push prefix
// plus payload (spec §4.2).
func serializeDataPush(data []byte) []byte {
	l := len(data)
	var out []byte
	switch {
	case l < int(OP_PUSHDATA1):
		out = append(out, byte(l))
	case l <= 0xff:
		out = append(out, byte(OP_PUSHDATA1), byte(l))
	case l <= 0xffff:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(l))
		out = append(out, byte(OP_PUSHDATA2))
		out = append(out, buf...)
	default:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(l))
		out = append(out, byte(OP_PUSHDATA4))
		out = append(out, buf...)
	}
	return append(out, data...)
}

// ScriptBuilder assembles a chunk sequence for a script built fresh
// (rather than parsed from the wire), to be encoded with Serialize.
type ScriptBuilder struct {
	chunks []Chunk
}

// NewScriptBuilder returns an empty builder.
func NewScriptBuilder() *ScriptBuilder {
	return &ScriptBuilder{}
}

// AddOp appends an opcode chunk.
func (b *ScriptBuilder) AddOp(op ScriptOpcode) *ScriptBuilder {
	b.chunks = append(b.chunks, Chunk{Kind: ChunkOpcode, Op: op, Offset: -1})
	return b
}

// AddData appends a data chunk.
func (b *ScriptBuilder) AddData(data []byte) *ScriptBuilder {
	b.chunks = append(b.chunks, Chunk{Kind: ChunkData, Data: data, Offset: -1})
	return b
}

// AddInt64 appends the MPI-reversed encoding of n as a data push. Small
// values 0 and -1..16 use the dedicated small-int opcodes instead of a
// raw push, matching how the reference implementation's script builder
// canonicalizes constants.
func (b *ScriptBuilder) AddInt64(n int64) *ScriptBuilder {
	if n == 0 {
		return b.AddOp(OP_0)
	}
	if n == -1 {
		return b.AddOp(OP_1NEGATE)
	}
	if n >= 1 && n <= 16 {
		return b.AddOp(opcodeForSmallInt(int(n)))
	}
	return b.AddData(encodeScriptNum(n))
}

// Script returns the canonical wire encoding of the built chunks.
func (b *ScriptBuilder) Script() []byte {
	return Serialize(b.chunks)
}

// Chunks returns the chunk sequence assembled so far.
func (b *ScriptBuilder) Chunks() []Chunk {
	return append([]Chunk(nil), b.chunks...)
}
