package token2022

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Token metadata interface instruction discriminators: the first 8 bytes of
// sha256("spl_token_metadata_interface:<name>").
var (
	initializeMetadataDiscriminator      = interfaceDiscriminator("initialize_account")
	updateMetadataAuthorityDiscriminator = interfaceDiscriminator("update_the_authority")
)

func interfaceDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("spl_token_metadata_interface:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// Metadata is the token metadata stored in the mint's TLV area.
type Metadata struct {
	// UpdateAuthority is nil once the metadata is immutable.
	UpdateAuthority    *solana.PublicKey
	Mint               solana.PublicKey
	Name               string
	Symbol             string
	URI                string
	AdditionalMetadata [][2]string
}

// PackedLen is the size of the borsh-packed metadata.
func (m Metadata) PackedLen() int {
	n := 32 + 32 + borshStringLen(m.Name) + borshStringLen(m.Symbol) + borshStringLen(m.URI) + 4
	for _, kv := range m.AdditionalMetadata {
		n += borshStringLen(kv[0]) + borshStringLen(kv[1])
	}
	return n
}

// Pack serializes the metadata the way the Token-2022 program stores it.
func (m Metadata) Pack() []byte {
	buf := make([]byte, 0, m.PackedLen())
	if m.UpdateAuthority != nil {
		buf = append(buf, m.UpdateAuthority[:]...)
	} else {
		buf = append(buf, make([]byte, 32)...)
	}
	buf = append(buf, m.Mint[:]...)
	buf = appendBorshString(buf, m.Name)
	buf = appendBorshString(buf, m.Symbol)
	buf = appendBorshString(buf, m.URI)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.AdditionalMetadata)))
	for _, kv := range m.AdditionalMetadata {
		buf = appendBorshString(buf, kv[0])
		buf = appendBorshString(buf, kv[1])
	}
	return buf
}

// UnpackMetadata parses metadata packed by Pack.
func UnpackMetadata(data []byte) (*Metadata, error) {
	r := reader{data: data}

	authority := r.publicKey()
	mint := r.publicKey()
	name := r.string()
	symbol := r.string()
	uri := r.string()
	count := r.u32()
	if r.err != nil {
		return nil, fmt.Errorf("invalid token metadata: %w", r.err)
	}

	m := &Metadata{
		Mint:   mint,
		Name:   name,
		Symbol: symbol,
		URI:    uri,
	}
	if !authority.IsZero() {
		m.UpdateAuthority = &authority
	}

	for i := uint32(0); i < count; i++ {
		k := r.string()
		v := r.string()
		if r.err != nil {
			return nil, fmt.Errorf("invalid additional metadata %d: %w", i, r.err)
		}
		m.AdditionalMetadata = append(m.AdditionalMetadata, [2]string{k, v})
	}

	return m, nil
}

// Reference: spl-token-metadata-interface src/instruction.rs Initialize
func InitializeMetadata(metadata, updateAuthority, mint, mintAuthority solana.PublicKey, name, symbol, uri string) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` Metadata
	//   1. `[]` Update authority
	//   2. `[]` Mint
	//   3. `[signer]` Mint authority
	data := make([]byte, 0, 8+borshStringLen(name)+borshStringLen(symbol)+borshStringLen(uri))
	data = append(data, initializeMetadataDiscriminator[:]...)
	data = appendBorshString(data, name)
	data = appendBorshString(data, symbol)
	data = appendBorshString(data, uri)

	return solana.NewInstruction(
		ProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(metadata, true, false),
			solana.NewAccountMeta(updateAuthority, false, false),
			solana.NewAccountMeta(mint, false, false),
			solana.NewAccountMeta(mintAuthority, false, true),
		},
		data,
	)
}

// UpdateMetadataAuthority sets or, when newAuthority is nil, removes the
// metadata update authority. Removing it makes the metadata immutable.
//
// Reference: spl-token-metadata-interface src/instruction.rs UpdateAuthority
func UpdateMetadataAuthority(metadata, currentAuthority solana.PublicKey, newAuthority *solana.PublicKey) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` Metadata account
	//   1. `[signer]` Current update authority
	data := make([]byte, 8+32)
	copy(data, updateMetadataAuthorityDiscriminator[:])
	if newAuthority != nil {
		copy(data[8:], newAuthority[:])
	}

	return solana.NewInstruction(
		ProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(metadata, true, false),
			solana.NewAccountMeta(currentAuthority, false, true),
		},
		data,
	)
}

// IsInitializeMetadata reports whether data is a metadata Initialize instruction.
func IsInitializeMetadata(data []byte) bool {
	return len(data) >= 8 && [8]byte(data[:8]) == initializeMetadataDiscriminator
}

// IsUpdateMetadataAuthority reports whether data is a metadata UpdateAuthority instruction.
func IsUpdateMetadataAuthority(data []byte) bool {
	return len(data) >= 8 && [8]byte(data[:8]) == updateMetadataAuthorityDiscriminator
}

func borshStringLen(s string) int {
	return 4 + len(s)
}

func appendBorshString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// reader is a bounds-checked little-endian cursor. The first failure sticks.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("need %d bytes at offset %d, have %d", n, r.off, len(r.data)-r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) publicKey() solana.PublicKey {
	b := r.take(32)
	if b == nil {
		return solana.PublicKey{}
	}
	return solana.PublicKeyFromBytes(b)
}

func (r *reader) string() string {
	n := r.u32()
	return string(r.take(int(n)))
}

func (r *reader) remaining() int {
	return len(r.data) - r.off
}
