package locks

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
)

const (
	// PubKeyHashLen is the expected length of a P2PKH address hash.
	PubKeyHashLen = 20

	// maxHeightNumLen bounds the script number push for an unlock height.
	maxHeightNumLen = 5
)

// BuildScript constructs a CLTV locking script:
//
//	<unlock_height> OP_CHECKLOCKTIMEVERIFY OP_DROP
//	OP_DUP OP_HASH160 <pubkey_hash> OP_EQUALVERIFY OP_CHECKSIG
//
// The coin is unspendable until the chain reaches unlock_height, then
// spends like ordinary P2PKH.
func BuildScript(unlockHeight uint32, pubKeyHash []byte) ([]byte, error) {
	if unlockHeight == 0 {
		return nil, fmt.Errorf("%w: unlock height must be > 0", ErrScriptBuild)
	}
	if len(pubKeyHash) != PubKeyHashLen {
		return nil, fmt.Errorf("%w: pubkey hash must be %d bytes, got %d",
			ErrScriptBuild, PubKeyHashLen, len(pubKeyHash))
	}

	s := &script.Script{}

	if err := s.AppendPushData(encodeScriptNum(unlockHeight)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScriptBuild, err)
	}
	if err := s.AppendOpcodes(script.OpCHECKLOCKTIMEVERIFY); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScriptBuild, err)
	}
	if err := s.AppendOpcodes(script.OpDROP); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScriptBuild, err)
	}
	if err := s.AppendOpcodes(script.OpDUP); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScriptBuild, err)
	}
	if err := s.AppendOpcodes(script.OpHASH160); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScriptBuild, err)
	}
	if err := s.AppendPushData(pubKeyHash); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScriptBuild, err)
	}
	if err := s.AppendOpcodes(script.OpEQUALVERIFY); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScriptBuild, err)
	}
	if err := s.AppendOpcodes(script.OpCHECKSIG); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScriptBuild, err)
	}

	return s.Bytes(), nil
}

// ParseScript extracts the unlock height and pubkey hash from a CLTV
// locking script built by BuildScript. Returns ErrNotLockScript for
// anything else.
func ParseScript(lockingScript []byte) (uint32, []byte, error) {
	s := script.NewFromBytes(lockingScript)
	chunks, err := s.Chunks()
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrNotLockScript, err)
	}

	// <height> CLTV DROP DUP HASH160 <pkh> EQUALVERIFY CHECKSIG
	if len(chunks) != 8 {
		return 0, nil, fmt.Errorf("%w: %d chunks", ErrNotLockScript, len(chunks))
	}
	if len(chunks[0].Data) == 0 || len(chunks[0].Data) > maxHeightNumLen {
		return 0, nil, fmt.Errorf("%w: bad height push", ErrNotLockScript)
	}
	if chunks[1].Op != script.OpCHECKLOCKTIMEVERIFY ||
		chunks[2].Op != script.OpDROP ||
		chunks[3].Op != script.OpDUP ||
		chunks[4].Op != script.OpHASH160 {
		return 0, nil, fmt.Errorf("%w: opcode sequence", ErrNotLockScript)
	}
	if len(chunks[5].Data) != PubKeyHashLen {
		return 0, nil, fmt.Errorf("%w: pubkey hash length %d", ErrNotLockScript, len(chunks[5].Data))
	}
	if chunks[6].Op != script.OpEQUALVERIFY || chunks[7].Op != script.OpCHECKSIG {
		return 0, nil, fmt.Errorf("%w: opcode sequence", ErrNotLockScript)
	}

	height, err := decodeScriptNum(chunks[0].Data)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrNotLockScript, err)
	}

	return height, chunks[5].Data, nil
}

// IsLockScript reports whether the script parses as a CLTV lock.
func IsLockScript(lockingScript []byte) bool {
	_, _, err := ParseScript(lockingScript)
	return err == nil
}

// encodeScriptNum encodes a positive height as a minimal script number
// (little-endian, sign bit padded).
func encodeScriptNum(n uint32) []byte {
	var out []byte
	v := n
	for v > 0 {
		out = append(out, byte(v&0xff))
		v >>= 8
	}
	// A set high bit on the last byte would read as negative.
	if out[len(out)-1]&0x80 != 0 {
		out = append(out, 0x00)
	}
	return out
}

// decodeScriptNum decodes a minimal positive script number.
func decodeScriptNum(data []byte) (uint32, error) {
	if len(data) == 0 || len(data) > maxHeightNumLen {
		return 0, fmt.Errorf("script number length %d", len(data))
	}
	if data[len(data)-1]&0x80 != 0 {
		return 0, fmt.Errorf("negative script number")
	}
	var v uint64
	for i := len(data) - 1; i >= 0; i-- {
		v = v<<8 | uint64(data[i])
	}
	if v > 0xffffffff {
		return 0, fmt.Errorf("script number %d exceeds uint32", v)
	}
	return uint32(v), nil
}
