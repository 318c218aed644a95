package token2022

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Mint is a decoded Token-2022 mint account.
type Mint struct {
	MintAuthority   *solana.PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *solana.PublicKey

	// Extensions, when present.
	MetadataPointer *MetadataPointer
	Metadata        *Metadata
}

// MetadataPointer is the metadata-pointer extension.
type MetadataPointer struct {
	Authority       *solana.PublicKey
	MetadataAddress *solana.PublicKey
}

// DecodeMint parses a mint account owned by the Token-2022 program.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) < MintSize {
		return nil, fmt.Errorf("mint data too short: %d bytes", len(data))
	}

	r := reader{data: data}
	m := &Mint{}
	m.MintAuthority = r.optionalKey()
	m.Supply = r.u64()
	m.Decimals = r.u8()
	m.IsInitialized = r.u8() == 1
	m.FreezeAuthority = r.optionalKey()
	if r.err != nil {
		return nil, fmt.Errorf("invalid mint: %w", r.err)
	}

	if len(data) == MintSize {
		return m, nil
	}

	if len(data) <= AccountSize {
		return nil, fmt.Errorf("invalid extended mint size: %d bytes", len(data))
	}
	if data[AccountSize] != AccountTypeMint {
		return nil, fmt.Errorf("account type %d is not a mint", data[AccountSize])
	}

	if err := m.decodeExtensions(data[AccountSize+AccountTypeSize:]); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mint) decodeExtensions(tlv []byte) error {
	r := reader{data: tlv}
	for r.remaining() >= TLVHeaderSize {
		typ := ExtensionType(r.u16())
		length := int(r.u16())
		if typ == ExtensionUninitialized {
			return nil
		}
		value := r.take(length)
		if r.err != nil {
			return fmt.Errorf("invalid extension %d: %w", typ, r.err)
		}

		switch typ {
		case ExtensionMetadataPointer:
			if len(value) != MetadataPointerSize {
				return fmt.Errorf("invalid metadata pointer size: %d", len(value))
			}
			vr := reader{data: value}
			m.MetadataPointer = &MetadataPointer{
				Authority:       nonZero(vr.publicKey()),
				MetadataAddress: nonZero(vr.publicKey()),
			}
		case ExtensionTokenMetadata:
			md, err := UnpackMetadata(value)
			if err != nil {
				return err
			}
			m.Metadata = md
		}
	}
	return nil
}

// Pack serializes the mint, including any extensions set on it.
func (m Mint) Pack() []byte {
	base := make([]byte, MintSize)
	putOptionalKey(base[0:36], m.MintAuthority)
	binary.LittleEndian.PutUint64(base[36:44], m.Supply)
	base[44] = m.Decimals
	if m.IsInitialized {
		base[45] = 1
	}
	putOptionalKey(base[46:82], m.FreezeAuthority)

	if m.MetadataPointer == nil && m.Metadata == nil {
		return base
	}

	out := make([]byte, AccountSize, AccountSize+AccountTypeSize+TLVHeaderSize+MetadataPointerSize)
	copy(out, base)
	out = append(out, AccountTypeMint)

	if m.MetadataPointer != nil {
		out = binary.LittleEndian.AppendUint16(out, uint16(ExtensionMetadataPointer))
		out = binary.LittleEndian.AppendUint16(out, MetadataPointerSize)
		out = appendKeyOrZero(out, m.MetadataPointer.Authority)
		out = appendKeyOrZero(out, m.MetadataPointer.MetadataAddress)
	}
	if m.Metadata != nil {
		packed := m.Metadata.Pack()
		out = binary.LittleEndian.AppendUint16(out, uint16(ExtensionTokenMetadata))
		out = binary.LittleEndian.AppendUint16(out, uint16(len(packed)))
		out = append(out, packed...)
	}
	return out
}

// COption<Pubkey>: u32 tag followed by the key.
func (r *reader) optionalKey() *solana.PublicKey {
	tag := r.u32()
	key := r.publicKey()
	if r.err != nil || tag == 0 {
		return nil
	}
	return &key
}

func putOptionalKey(dst []byte, key *solana.PublicKey) {
	if key == nil {
		return
	}
	binary.LittleEndian.PutUint32(dst[0:4], 1)
	copy(dst[4:36], key[:])
}

func appendKeyOrZero(buf []byte, key *solana.PublicKey) []byte {
	if key == nil {
		return append(buf, make([]byte, 32)...)
	}
	return append(buf, key[:]...)
}

func nonZero(key solana.PublicKey) *solana.PublicKey {
	if key.IsZero() {
		return nil
	}
	return &key
}
