package txbuilder

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/swapforge/internal/errors"
	"github.com/lugondev/swapforge/internal/token2022"
)

// InstructionSummary is a readable view of a compiled instruction.
type InstructionSummary struct {
	Program  solana.PublicKey   `json:"program"`
	Name     string             `json:"name"`
	Accounts []solana.PublicKey `json:"accounts"`
	Data     []byte             `json:"data"`
}

// Decode parses a base64 transaction produced by Encode.
func Decode(serialized string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(serialized)
	if err != nil {
		return nil, errors.DecodeFailed("transaction encoding", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, errors.DecodeFailed("transaction", err)
	}
	return tx, nil
}

// Describe lists the instructions of tx with their programs and accounts resolved.
func Describe(tx *solana.Transaction) ([]InstructionSummary, error) {
	keys := tx.Message.AccountKeys
	out := make([]InstructionSummary, 0, len(tx.Message.Instructions))

	for i, ci := range tx.Message.Instructions {
		program, err := tx.Message.ResolveProgramIDIndex(ci.ProgramIDIndex)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}

		accounts := make([]solana.PublicKey, 0, len(ci.Accounts))
		for _, idx := range ci.Accounts {
			if int(idx) >= len(keys) {
				return nil, fmt.Errorf("instruction %d: account index %d out of range", i, idx)
			}
			accounts = append(accounts, keys[idx])
		}

		data := []byte(ci.Data)
		out = append(out, InstructionSummary{
			Program:  program,
			Name:     instructionName(program, data),
			Accounts: accounts,
			Data:     data,
		})
	}
	return out, nil
}

func instructionName(program solana.PublicKey, data []byte) string {
	switch {
	case program.Equals(solana.SystemProgramID):
		if len(data) < 4 {
			return "system:unknown"
		}
		switch binary.LittleEndian.Uint32(data) {
		case 0:
			return "system:createAccount"
		case 2:
			return "system:transfer"
		}
		return "system:unknown"

	case program.Equals(token2022.AssociatedTokenProgramID):
		if len(data) == 1 && data[0] == 1 {
			return "ata:createIdempotent"
		}
		return "ata:create"

	case program.Equals(token2022.ProgramID):
		if token2022.IsInitializeMetadata(data) {
			return "tokenMetadata:initialize"
		}
		if token2022.IsUpdateMetadataAuthority(data) {
			return "tokenMetadata:updateAuthority"
		}
		switch token2022.GetCommand(data) {
		case token2022.CommandInitializeMint:
			return "token2022:initializeMint"
		case token2022.CommandMintTo:
			return "token2022:mintTo"
		case token2022.CommandSetAuthority:
			if len(data) > 1 {
				return "token2022:setAuthority:" + token2022.AuthorityType(data[1]).String()
			}
			return "token2022:setAuthority"
		case token2022.CommandMetadataPointerExtension:
			return "token2022:initializeMetadataPointer"
		}
		return "token2022:unknown"
	}
	return "unknown"
}
