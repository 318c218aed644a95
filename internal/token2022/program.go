// Package token2022 encodes the Token-2022 and token-metadata-interface
// instructions used to create a token with embedded metadata, sizes the mint
// account, and decodes mint accounts read back from the cluster.
package token2022

import (
	"encoding/binary"
	"math"

	"github.com/gagliardetto/solana-go"
)

// ProgramID is the Token-2022 program.
var ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

// AssociatedTokenProgramID is the associated token account program.
var AssociatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

// Command is the first byte of a Token-2022 instruction.
type Command byte

const (
	CommandInitializeMint Command = 0
	CommandSetAuthority   Command = 6
	CommandMintTo         Command = 7

	// CommandMetadataPointerExtension prefixes metadata-pointer instructions;
	// the second data byte selects the sub-instruction.
	CommandMetadataPointerExtension Command = 39

	CommandUnknown = Command(math.MaxUint8)
)

// metadata-pointer sub-instructions
const (
	metadataPointerInitialize byte = 0
)

// AuthorityType selects the authority changed by SetAuthority.
type AuthorityType byte

const (
	AuthorityMintTokens    AuthorityType = 0
	AuthorityFreezeAccount AuthorityType = 1
)

func (a AuthorityType) String() string {
	switch a {
	case AuthorityMintTokens:
		return "mint"
	case AuthorityFreezeAccount:
		return "freeze"
	default:
		return "unknown"
	}
}

// Reference: spl-token-2022 program/src/extension/metadata_pointer/instruction.rs
func InitializeMetadataPointer(mint, authority, metadataAddress solana.PublicKey) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The mint to initialize.
	data := make([]byte, 2+32+32)
	data[0] = byte(CommandMetadataPointerExtension)
	data[1] = metadataPointerInitialize
	copy(data[2:], authority[:])
	copy(data[34:], metadataAddress[:])

	return solana.NewInstruction(
		ProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(mint, true, false),
		},
		data,
	)
}

// Reference: spl-token-2022 program/src/instruction.rs InitializeMint
func InitializeMint(mint solana.PublicKey, decimals uint8, mintAuthority solana.PublicKey, freezeAuthority *solana.PublicKey) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The mint to initialize.
	//   1. `[]` Rent sysvar
	data := make([]byte, 1+1+32+1+32)
	data[0] = byte(CommandInitializeMint)
	data[1] = decimals
	copy(data[2:], mintAuthority[:])
	if freezeAuthority != nil {
		data[34] = 1
		copy(data[35:], freezeAuthority[:])
	}

	return solana.NewInstruction(
		ProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(mint, true, false),
			solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
		},
		data,
	)
}

// Reference: spl-token-2022 program/src/instruction.rs MintTo
func MintTo(mint, destination, authority solana.PublicKey, amount uint64) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The mint.
	//   1. `[writable]` The account to mint tokens to.
	//   2. `[signer]` The mint's minting authority.
	data := make([]byte, 1+8)
	data[0] = byte(CommandMintTo)
	binary.LittleEndian.PutUint64(data[1:], amount)

	return solana.NewInstruction(
		ProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(mint, true, false),
			solana.NewAccountMeta(destination, true, false),
			solana.NewAccountMeta(authority, false, true),
		},
		data,
	)
}

// SetAuthority changes or, when newAuthority is nil, removes an authority.
//
// Reference: spl-token-2022 program/src/instruction.rs SetAuthority
func SetAuthority(account, currentAuthority solana.PublicKey, authorityType AuthorityType, newAuthority *solana.PublicKey) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The mint or account to change the authority of.
	//   1. `[signer]` The current authority of the mint or account.
	data := []byte{byte(CommandSetAuthority), byte(authorityType), 0}
	if newAuthority != nil {
		data[2] = 1
		data = append(data, newAuthority[:]...)
	}

	return solana.NewInstruction(
		ProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(account, true, false),
			solana.NewAccountMeta(currentAuthority, false, true),
		},
		data,
	)
}

// FindAssociatedTokenAddress derives the Token-2022 associated token account of
// wallet for mint.
func FindAssociatedTokenAddress(wallet, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{wallet[:], ProgramID[:], mint[:]},
		AssociatedTokenProgramID,
	)
}

// CreateAssociatedTokenAccountIdempotent creates the wallet's Token-2022 associated
// token account for mint unless it already exists.
//
// Reference: associated-token-account program/src/instruction.rs CreateIdempotent
func CreateAssociatedTokenAccountIdempotent(payer, wallet, mint solana.PublicKey) (solana.Instruction, solana.PublicKey, error) {
	ata, _, err := FindAssociatedTokenAddress(wallet, mint)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}

	// Accounts expected by this instruction:
	//
	//   0. `[writable,signer]` Funding account
	//   1. `[writable]` Associated token account address to be created
	//   2. `[]` Wallet address for the new associated token account
	//   3. `[]` The token mint for the new associated token account
	//   4. `[]` System program
	//   5. `[]` SPL Token program
	ix := solana.NewInstruction(
		AssociatedTokenProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(ata, true, false),
			solana.NewAccountMeta(wallet, false, false),
			solana.NewAccountMeta(mint, false, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
			solana.NewAccountMeta(ProgramID, false, false),
		},
		[]byte{1},
	)
	return ix, ata, nil
}

// GetCommand returns the command encoded in Token-2022 instruction data.
func GetCommand(data []byte) Command {
	if len(data) == 0 {
		return CommandUnknown
	}
	return Command(data[0])
}
