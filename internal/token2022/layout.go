package token2022

// Account layout sizes.
const (
	// MintSize is the size of a base SPL mint.
	MintSize = 82
	// AccountSize is the size of a base token account; extended mints are
	// padded to it so that both account kinds share the extension offset.
	AccountSize = 165
	// AccountTypeSize is the one-byte account type that follows the padding.
	AccountTypeSize = 1
	// TLVHeaderSize is the extension type (u16) plus length (u16).
	TLVHeaderSize = 4
	// MetadataPointerSize is authority (32) plus metadata address (32).
	MetadataPointerSize = 64
)

// ExtensionType identifies a TLV entry.
type ExtensionType uint16

const (
	ExtensionUninitialized   ExtensionType = 0
	ExtensionMetadataPointer ExtensionType = 18
	ExtensionTokenMetadata   ExtensionType = 19
)

// AccountTypeMint marks an extended mint.
const AccountTypeMint byte = 1

// Layout describes the space a metadata-bearing mint needs.
type Layout struct {
	// MintLen is the size allocated by createAccount: the mint with the
	// metadata-pointer extension.
	MintLen int
	// MetadataLen is the TLV entry the metadata initialize instruction
	// appends by reallocating the account.
	MetadataLen int
}

// TotalLen is the final account size once metadata is written. Rent must be
// paid for this size up front.
func (l Layout) TotalLen() int {
	return l.MintLen + l.MetadataLen
}

// MintLenWithMetadataPointer is the size of a mint carrying only the
// metadata-pointer extension.
func MintLenWithMetadataPointer() int {
	return AccountSize + AccountTypeSize + TLVHeaderSize + MetadataPointerSize
}

// MetadataLen is the size of the TLV entry holding m.
func MetadataLen(m Metadata) int {
	return TLVHeaderSize + m.PackedLen()
}

// NewLayout sizes a mint that points its metadata at itself.
func NewLayout(m Metadata) Layout {
	return Layout{
		MintLen:     MintLenWithMetadataPointer(),
		MetadataLen: MetadataLen(m),
	}
}
